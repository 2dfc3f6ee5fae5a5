package facility

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("facility not found")

// Verification statuses.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

var validStatuses = map[string]bool{
	StatusPending:  true,
	StatusVerified: true,
	StatusRejected: true,
}

// ValidateStatus rejects anything outside the closed status set.
func ValidateStatus(s string) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid facility status: %s", s)
	}
	return nil
}

// Facility maps to the facilities table.
type Facility struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Type            string    `db:"type" json:"type"`
	Region          string    `db:"region" json:"region"`
	Status          string    `db:"status" json:"status"`
	ComplianceScore int       `db:"compliance_score" json:"compliance_score"`
	Administrators  int       `db:"administrators" json:"administrators"`
	ContactEmail    *string   `db:"contact_email" json:"contact_email,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
