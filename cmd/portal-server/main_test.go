package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hkit/portal/internal/domain/auditevent"
	"github.com/hkit/portal/internal/platform/middleware"
)

type captureEventRepo struct {
	events []*auditevent.Event
}

func (r *captureEventRepo) Create(_ context.Context, e *auditevent.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *captureEventRepo) GetByID(context.Context, uuid.UUID) (*auditevent.Event, error) {
	return nil, auditevent.ErrNotFound
}

func (r *captureEventRepo) List(context.Context, auditevent.Filter, int, int) ([]*auditevent.Event, int, error) {
	return nil, 0, nil
}

func TestAuditStore_RecordChange(t *testing.T) {
	repo := &captureEventRepo{}
	store := &auditStore{svc: auditevent.NewService(repo)}

	actor := uuid.New()
	entry := middleware.AuditEntry{
		UserID:     actor.String(),
		Action:     "registrations.create",
		Method:     http.MethodPost,
		Path:       "/api/v1/registrations/facility",
		RemoteIP:   "203.0.113.9",
		RequestID:  "req-42",
		StatusCode: http.StatusCreated,
		Timestamp:  time.Now().UTC(),
	}

	if err := store.RecordChange(entry); err != nil {
		t.Fatalf("RecordChange returned error: %v", err)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}

	e := repo.events[0]
	if e.Action != "registrations.create" {
		t.Errorf("unexpected action %q", e.Action)
	}
	if e.Outcome != auditevent.OutcomeSuccess {
		t.Errorf("expected success outcome, got %q", e.Outcome)
	}
	if e.ActorID == nil || *e.ActorID != actor {
		t.Errorf("expected actor %s, got %v", actor, e.ActorID)
	}
	if e.RequestID != "req-42" {
		t.Errorf("expected request id to carry over, got %q", e.RequestID)
	}
}

func TestAuditStore_RecordChangeFailureOutcome(t *testing.T) {
	repo := &captureEventRepo{}
	store := &auditStore{svc: auditevent.NewService(repo)}

	entry := middleware.AuditEntry{
		Action:     "facilities.update",
		Method:     http.MethodPatch,
		Path:       "/api/v1/facilities/abc/status",
		StatusCode: http.StatusForbidden,
		Timestamp:  time.Now().UTC(),
	}

	if err := store.RecordChange(entry); err != nil {
		t.Fatalf("RecordChange returned error: %v", err)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}

	e := repo.events[0]
	if e.Outcome != auditevent.OutcomeFailure {
		t.Errorf("expected failure outcome for 403, got %q", e.Outcome)
	}
	if e.ActorID != nil {
		t.Errorf("expected nil actor for unauthenticated entry, got %v", e.ActorID)
	}
}
