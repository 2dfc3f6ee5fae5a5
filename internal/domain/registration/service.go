package registration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hkit/portal/internal/platform/metrics"
)

type Service struct {
	requests RequestRepository
	approver *Approver
}

func NewService(requests RequestRepository, approver *Approver) *Service {
	return &Service{requests: requests, approver: approver}
}

// Submit records a public registration request. Nothing is provisioned
// until an overseer resolves it.
func (s *Service) Submit(ctx context.Context, reqType string, payload map[string]interface{}) (*Request, error) {
	if err := ValidateType(reqType); err != nil {
		return nil, err
	}
	if err := validatePayload(reqType, payload); err != nil {
		return nil, err
	}

	req := &Request{Type: reqType, Payload: payload}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string) ([]*Request, error) {
	if status != "" && status != StatusPending && status != StatusApproved && status != StatusRejected {
		return nil, fmt.Errorf("invalid status filter: %s", status)
	}
	return s.requests.List(ctx, status)
}

// Approve runs the provisioning workflow and records the outcome metric.
func (s *Service) Approve(ctx context.Context, p ApproveParams) (*ApproveResult, error) {
	res, err := s.approver.Approve(ctx, p)
	if err != nil {
		metrics.CountResolution("failed")
		return res, err
	}
	metrics.CountResolution("approved")
	return res, nil
}

// Reject resolves a pending request without provisioning anything.
func (s *Service) Reject(ctx context.Context, id, approverID uuid.UUID) error {
	if err := s.requests.MarkRejected(ctx, id, approverID); err != nil {
		return err
	}
	metrics.CountResolution("rejected")
	return nil
}

func validatePayload(reqType string, payload map[string]interface{}) error {
	var required []string
	switch reqType {
	case TypeFacility:
		required = []string{"facility_name", "facility_type", "region", "contact_email", "admin_name"}
	case TypeDeveloper:
		required = []string{"name", "email", "organization"}
	}
	for _, key := range required {
		if v, ok := payload[key].(string); !ok || v == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	return nil
}
