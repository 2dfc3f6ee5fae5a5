package profile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of portal roles. The zero value means the user has
// no role assigned yet (a pending registration, or a degraded profile load).
type Role string

const (
	RoleUnset           Role = ""
	RoleMoH             Role = "MoH"
	RoleFacilityAdmin   Role = "FacilityAdmin"
	RoleDeveloper       Role = "Developer"
	RoleDataAnalyst     Role = "DataAnalyst"
	RoleSystemDeveloper Role = "SystemDeveloper"
)

var validRoles = map[Role]bool{
	RoleMoH:             true,
	RoleFacilityAdmin:   true,
	RoleDeveloper:       true,
	RoleDataAnalyst:     true,
	RoleSystemDeveloper: true,
}

// ParseRole converts a string into a Role, rejecting anything outside the
// closed set. The empty string parses to RoleUnset.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUnset, nil
	}
	r := Role(s)
	if !validRoles[r] {
		return RoleUnset, fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

// IsSet reports whether the role carries an actual assignment.
func (r Role) IsSet() bool { return r != RoleUnset }

// Internal reports whether the role belongs to ministry staff. Internal
// roles are the ones manageable through the MoH user administration
// operations.
func (r Role) Internal() bool {
	return r == RoleMoH || r == RoleDataAnalyst || r == RoleSystemDeveloper
}

// Profile maps to the profiles table.
type Profile struct {
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Email        string     `db:"email" json:"email"`
	FirstName    *string    `db:"first_name" json:"first_name,omitempty"`
	LastName     *string    `db:"last_name" json:"last_name,omitempty"`
	Role         Role       `db:"role" json:"role"`
	FacilityID   *uuid.UUID `db:"facility_id" json:"facility_id,omitempty"`
	FacilityName *string    `json:"facility_name,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts, skipping missing ones.
func (p *Profile) FullName() string {
	first, last := "", ""
	if p.FirstName != nil {
		first = *p.FirstName
	}
	if p.LastName != nil {
		last = *p.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}
