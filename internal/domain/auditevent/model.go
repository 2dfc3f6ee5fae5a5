// Package auditevent records who did what in the portal: logins, approvals,
// rejections, user management and facility changes. Events are write-once.
package auditevent

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("audit event not found")

// Actions recorded by the portal.
const (
	ActionLogin               = "auth.login"
	ActionLoginFailed         = "auth.login_failed"
	ActionLogout              = "auth.logout"
	ActionRegistrationSubmit  = "registration.submit"
	ActionRegistrationApprove = "registration.approve"
	ActionRegistrationReject  = "registration.reject"
	ActionUserCreate          = "user.create"
	ActionUserUpdate          = "user.update"
	ActionUserDelete          = "user.delete"
	ActionFacilityStatus      = "facility.status_change"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// Event maps to the audit_events table.
type Event struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	Action     string                 `db:"action" json:"action"`
	Outcome    string                 `db:"outcome" json:"outcome"`
	ActorID    *uuid.UUID             `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail string                 `db:"actor_email" json:"actor_email,omitempty"`
	TargetType string                 `db:"target_type" json:"target_type,omitempty"`
	TargetID   *uuid.UUID             `db:"target_id" json:"target_id,omitempty"`
	RemoteIP   string                 `db:"remote_ip" json:"remote_ip,omitempty"`
	RequestID  string                 `db:"request_id" json:"request_id,omitempty"`
	Detail     map[string]interface{} `db:"detail" json:"detail,omitempty"`
	Recorded   time.Time              `db:"recorded" json:"recorded"`
}

// Filter narrows a listing query. Zero values mean "no constraint".
type Filter struct {
	Action  string
	ActorID *uuid.UUID
	Outcome string
	Since   time.Time
	Until   time.Time
}
