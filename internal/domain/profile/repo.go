package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no profile row exists for a user.
var ErrNotFound = errors.New("profile not found")

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateNames(ctx context.Context, userID uuid.UUID, firstName, lastName *string) error
	SetRole(ctx context.Context, userID uuid.UUID, role Role) error
	SetFacility(ctx context.Context, userID uuid.UUID, facilityID *uuid.UUID) error
	ListByRoles(ctx context.Context, roles []Role) ([]*Profile, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}
