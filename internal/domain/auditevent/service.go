package auditevent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo EventRepository
}

func NewService(repo EventRepository) *Service {
	return &Service{repo: repo}
}

// Record writes an audit event. Auditing never fails the audited
// operation: errors are logged and swallowed.
func (s *Service) Record(ctx context.Context, e *Event) {
	if err := s.repo.Create(ctx, e); err != nil {
		log.Error().Err(err).Str("action", e.Action).Msg("failed to record audit event")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
