package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hkit/portal/internal/domain/identity"
	"github.com/hkit/portal/internal/domain/profile"
)

// AuthClient is the slice of the identity service the manager needs.
type AuthClient interface {
	SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error)
	SignOut(ctx context.Context, sessionID uuid.UUID) error
}

// ProfileResolver loads a profile with the retry-and-degrade policy.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)
}

// Event is published on every state change.
type Event struct {
	State   State
	Profile *profile.Profile
}

// Snapshot is a point-in-time copy of the manager's state.
type Snapshot struct {
	State     State
	UserID    uuid.UUID
	SessionID uuid.UUID
	Token     string
	Profile   *profile.Profile
}

// Manager is the single owner of session state. All mutation goes through
// its methods; observers get copies via Snapshot and Subscribe, never
// references into the manager.
type Manager struct {
	auth     AuthClient
	profiles ProfileResolver

	mu          sync.Mutex
	state       State
	userID      uuid.UUID
	sessionID   uuid.UUID
	token       string
	profile     *profile.Profile
	generation  uint64
	subscribers map[int]chan Event
	nextSubID   int
}

func NewManager(auth AuthClient, profiles ProfileResolver) *Manager {
	return &Manager{
		auth:        auth,
		profiles:    profiles,
		state:       StateInitializing,
		subscribers: make(map[int]chan Event),
	}
}

// Start settles the initial state. With a stored session it re-resolves the
// profile; without one it lands on unauthenticated.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInitializing {
		m.mu.Unlock()
		return nil
	}
	if m.userID == uuid.Nil {
		m.setStateLocked(StateUnauthenticated, nil)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.RefreshProfile(ctx)
}

// Restore seeds a previously issued session before Start. Used when a
// client reconnects with a stored token.
func (m *Manager) Restore(userID, sessionID uuid.UUID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInitializing {
		return
	}
	m.userID = userID
	m.sessionID = sessionID
	m.token = token
}

// Login signs in and resolves the profile. A rejected sign-in surfaces the
// error and leaves the current state untouched. The profile fetch runs
// outside the lock under a generation stamp: if a logout or a newer login
// lands while it is in flight, its result is discarded instead of
// clobbering the newer state.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	res, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.userID = res.User.ID
	m.token = res.Token
	m.sessionID = res.SessionID
	m.setStateLocked(StateAuthenticatedPendingProfile, nil)
	m.mu.Unlock()

	return m.resolveProfile(ctx, res.User.ID, gen)
}

// Logout revokes the session remotely and clears local state. Remote
// failure does not keep the user signed in locally.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.generation++
	m.clearLocked()
	m.mu.Unlock()

	if sessionID != uuid.Nil {
		if err := m.auth.SignOut(ctx, sessionID); err != nil {
			log.Warn().Err(err).Msg("remote sign-out failed, local session cleared anyway")
		}
	}
}

// RefreshProfile re-resolves the profile for the current user, for example
// after a registration was approved.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	m.mu.Lock()
	if m.userID == uuid.Nil {
		m.setStateLocked(StateUnauthenticated, nil)
		m.mu.Unlock()
		return nil
	}
	m.generation++
	gen := m.generation
	userID := m.userID
	m.setStateLocked(StateAuthenticatedPendingProfile, m.profile)
	m.mu.Unlock()

	return m.resolveProfile(ctx, userID, gen)
}

func (m *Manager) resolveProfile(ctx context.Context, userID uuid.UUID, gen uint64) error {
	prof, err := m.profiles.Resolve(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		// A newer login/logout won the race; drop this result.
		return nil
	}
	if err != nil {
		m.clearLocked()
		return err
	}
	if prof.Role.IsSet() {
		m.setStateLocked(StateAuthenticatedWithRole, prof)
	} else {
		m.setStateLocked(StateAuthenticatedNoRole, prof)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		State:     m.state,
		UserID:    m.userID,
		SessionID: m.sessionID,
		Token:     m.token,
	}
	if m.profile != nil {
		cp := *m.profile
		snap.Profile = &cp
	}
	return snap
}

// Subscribe returns a channel of state-change events and an unsubscribe
// function. The channel is buffered; a slow consumer loses events rather
// than blocking the manager.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Event, 16)
	m.subscribers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
}

func (m *Manager) clearLocked() {
	m.userID = uuid.Nil
	m.sessionID = uuid.Nil
	m.token = ""
	m.setStateLocked(StateUnauthenticated, nil)
}

func (m *Manager) setStateLocked(state State, prof *profile.Profile) {
	m.state = state
	m.profile = prof

	ev := Event{State: state}
	if prof != nil {
		cp := *prof
		ev.Profile = &cp
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
