package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	profiles ProfileRepository
	resolver *Resolver
}

func NewService(profiles ProfileRepository) *Service {
	return &Service{
		profiles: profiles,
		resolver: NewResolver(profiles),
	}
}

// Resolver returns the retrying profile resolver backed by this service's
// repository.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// UpdateNames changes only the display name fields. Role and facility
// assignments go through the registration and user-management flows, never
// through profile self-service.
func (s *Service) UpdateNames(ctx context.Context, userID uuid.UUID, firstName, lastName *string) (*Profile, error) {
	if firstName == nil && lastName == nil {
		return nil, fmt.Errorf("nothing to update")
	}
	if err := s.profiles.UpdateNames(ctx, userID, firstName, lastName); err != nil {
		return nil, err
	}
	return s.profiles.GetByUserID(ctx, userID)
}

// RoleFor returns the user's role as a string for authorization checks. A
// missing profile resolves to no role rather than an error.
func (s *Service) RoleFor(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("parse user id: %w", err)
	}
	p, err := s.profiles.GetByUserID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(p.Role), nil
}
