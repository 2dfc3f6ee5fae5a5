package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hkit/portal/internal/domain/profile"
)

type Service struct {
	facilities FacilityRepository
}

func NewService(facilities FacilityRepository) *Service {
	return &Service{facilities: facilities}
}

// ListForViewer returns facilities scoped to what the caller may see:
// ministry staff see everything, a facility administrator sees only their
// own facility, everyone else sees nothing.
func (s *Service) ListForViewer(ctx context.Context, role profile.Role, facilityID *uuid.UUID) ([]*Facility, error) {
	switch {
	case role.Internal():
		return s.facilities.List(ctx)
	case role == profile.RoleFacilityAdmin:
		if facilityID == nil {
			return nil, nil
		}
		f, err := s.facilities.GetByID(ctx, *facilityID)
		if err == ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*Facility{f}, nil
	default:
		return nil, nil
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.facilities.GetByID(ctx, id)
}

// Create validates and inserts a facility. Used both administratively and
// by the registration approval workflow.
func (s *Service) Create(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Status == "" {
		f.Status = StatusPending
	}
	if err := ValidateStatus(f.Status); err != nil {
		return err
	}
	return s.facilities.Create(ctx, f)
}

// UpdateStatus moves a facility between verification states. Verifying a
// facility seeds the compliance baseline and guarantees a counted
// administrator.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Facility, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}

	f, err := s.facilities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f.Status = status
	if status == StatusVerified {
		if f.ComplianceScore == 0 {
			f.ComplianceScore = 70
		}
		if f.Administrators < 1 {
			f.Administrators = 1
		}
	}
	if err := s.facilities.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a facility row. Exposed for the approval workflow's
// compensation path.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.facilities.Delete(ctx, id)
}
