package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultResolveAttempts = 5
	defaultResolveDelay    = 50 * time.Millisecond
)

// Sleeper waits for a duration, returning early with the context error if
// the context is cancelled. Injected so tests run without real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver loads a user's profile, retrying briefly while the row or its
// role assignment has not landed yet. Profile rows are created moments after
// the auth user, so a login racing that write sees either no row or a null
// role for a few tens of milliseconds.
type Resolver struct {
	repo     ProfileRepository
	attempts int
	delay    time.Duration
	sleep    Sleeper
}

func NewResolver(repo ProfileRepository) *Resolver {
	return &Resolver{
		repo:     repo,
		attempts: defaultResolveAttempts,
		delay:    defaultResolveDelay,
		sleep:    defaultSleeper,
	}
}

// WithSleeper replaces the delay function. For tests.
func (r *Resolver) WithSleeper(s Sleeper) *Resolver {
	r.sleep = s
	return r
}

// WithAttempts overrides the retry count and delay.
func (r *Resolver) WithAttempts(attempts int, delay time.Duration) *Resolver {
	r.attempts = attempts
	r.delay = delay
	return r
}

// Resolve fetches the profile for userID, retrying on a missing row, a
// storage failure or an unset role. When every attempt comes back
// incomplete it degrades: the last-seen profile (or a skeleton carrying
// only the user ID) is returned with the role unset rather than failing
// the login. Only context cancellation aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var last *Profile

	for attempt := 1; attempt <= r.attempts; attempt++ {
		p, err := r.repo.GetByUserID(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			// retry
		case err != nil:
			// A backend hiccup must not lock the user out; treat it
			// like a missing row and let the degrade path run.
			log.Warn().Err(err).
				Str("user_id", userID.String()).
				Int("attempt", attempt).
				Msg("profile fetch failed, retrying")
		case p.Role.IsSet():
			return p, nil
		default:
			last = p
		}

		if attempt < r.attempts {
			if err := r.sleep(ctx, r.delay); err != nil {
				return nil, err
			}
		}
	}

	log.Warn().
		Str("user_id", userID.String()).
		Int("attempts", r.attempts).
		Msg("profile incomplete after retries, continuing without role")

	if last != nil {
		return last, nil
	}
	return &Profile{UserID: userID, Role: RoleUnset}, nil
}
