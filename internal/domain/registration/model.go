package registration

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("registration request not found")

	// ErrNotPending is returned when approving or rejecting a request that
	// was already resolved. Resolution is terminal and happens exactly once.
	ErrNotPending = errors.New("registration request is not pending")
)

// Request types.
const (
	TypeFacility  = "facility"
	TypeDeveloper = "developer"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidateType rejects unknown request discriminants.
func ValidateType(t string) error {
	if t != TypeFacility && t != TypeDeveloper {
		return fmt.Errorf("invalid request type: %s", t)
	}
	return nil
}

// Request maps to the registration_requests table. Payload holds the
// applicant's submitted fields; its shape depends on Type.
type Request struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	Type        string                 `db:"type" json:"type"`
	Payload     map[string]interface{} `db:"payload" json:"payload"`
	Status      string                 `db:"status" json:"status"`
	SubmittedAt time.Time              `db:"submitted_at" json:"submitted_at"`
	ResolvedAt  *time.Time             `db:"resolved_at" json:"resolved_at,omitempty"`
	ApprovedBy  *uuid.UUID             `db:"approved_by" json:"approved_by,omitempty"`
}

// PartialError reports an approval where provisioning succeeded but the
// final request bookkeeping failed. The created account and facility are
// left in place.
type PartialError struct {
	UserID     uuid.UUID
	FacilityID *uuid.UUID
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("approval partially applied (user %s provisioned): %v", e.UserID, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }
