// Package mohusers implements ministry-side staff administration: listing,
// creating, updating and removing internal accounts (MoH, DataAnalyst,
// SystemDeveloper).
package mohusers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hkit/portal/internal/domain/identity"
	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/password"
)

var internalRoles = []profile.Role{
	profile.RoleMoH,
	profile.RoleDataAnalyst,
	profile.RoleSystemDeveloper,
}

// IdentityAdmin is the slice of the identity service this package needs.
type IdentityAdmin interface {
	CreateUser(ctx context.Context, p identity.CreateUserParams) (*identity.User, error)
	UpdateCredentials(ctx context.Context, userID uuid.UUID, email, password *string) (*identity.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	identities IdentityAdmin
	profiles   profile.ProfileRepository
}

func NewService(identities IdentityAdmin, profiles profile.ProfileRepository) *Service {
	return &Service{identities: identities, profiles: profiles}
}

// ListUsers returns all internal staff profiles.
func (s *Service) ListUsers(ctx context.Context) ([]*profile.Profile, error) {
	return s.profiles.ListByRoles(ctx, internalRoles)
}

// CreateUserParams describes a new internal account. Password is optional;
// a temporary one is generated when absent.
type CreateUserParams struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
	Role      profile.Role
}

// CreateUserResult carries the created account and, when generated, the
// temporary password. It is returned exactly once and never stored in
// clear.
type CreateUserResult struct {
	User              *identity.User `json:"user"`
	TemporaryPassword string         `json:"temporary_password,omitempty"`
}

func (s *Service) CreateUser(ctx context.Context, p CreateUserParams) (*CreateUserResult, error) {
	if !p.Role.Internal() {
		return nil, fmt.Errorf("role %s is not an internal role", p.Role)
	}

	pw := p.Password
	generated := false
	if pw == "" {
		var err error
		pw, err = password.Generate(password.DefaultLength)
		if err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		generated = true
	}

	u, err := s.identities.CreateUser(ctx, identity.CreateUserParams{
		Email:     p.Email,
		Password:  pw,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	})
	if err != nil {
		return nil, err
	}

	res := &CreateUserResult{User: u}
	if generated {
		res.TemporaryPassword = pw
	}
	return res, nil
}

// UpdateUserParams holds the mutable fields of an internal account. Nil
// fields are left untouched.
type UpdateUserParams struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *profile.Role
}

func (s *Service) UpdateUser(ctx context.Context, userID uuid.UUID, p UpdateUserParams) (*profile.Profile, error) {
	current, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !current.Role.Internal() {
		return nil, fmt.Errorf("user %s is not internal staff", userID)
	}

	if p.Email != nil || p.Password != nil {
		if _, err := s.identities.UpdateCredentials(ctx, userID, p.Email, p.Password); err != nil {
			return nil, err
		}
	}
	if p.FirstName != nil || p.LastName != nil {
		first, last := current.FirstName, current.LastName
		if p.FirstName != nil {
			first = p.FirstName
		}
		if p.LastName != nil {
			last = p.LastName
		}
		if err := s.profiles.UpdateNames(ctx, userID, first, last); err != nil {
			return nil, err
		}
	}
	if p.Role != nil {
		if !p.Role.Internal() {
			return nil, fmt.Errorf("role %s is not an internal role", *p.Role)
		}
		if err := s.profiles.SetRole(ctx, userID, *p.Role); err != nil {
			return nil, err
		}
	}

	return s.profiles.GetByUserID(ctx, userID)
}

// DeleteUser removes an internal account entirely.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	current, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !current.Role.Internal() {
		return fmt.Errorf("user %s is not internal staff", userID)
	}
	return s.identities.DeleteUser(ctx, userID)
}
