package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/auth"
)

type Service struct {
	users    UserRepository
	sessions SessionRepository
	profiles profile.ProfileRepository
	tokens   *auth.TokenIssuer
}

func NewService(users UserRepository, sessions SessionRepository, profiles profile.ProfileRepository, tokens *auth.TokenIssuer) *Service {
	return &Service{users: users, sessions: sessions, profiles: profiles, tokens: tokens}
}

// SignInResult is the outcome of a successful sign-in.
type SignInResult struct {
	Token     string
	SessionID uuid.UUID
	User      *User
}

// SignIn verifies credentials, opens a session row and returns a signed
// token for it.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess := &Session{
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(s.tokens.TTL()),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Issue(u.ID.String(), sess.ID.String())
	if err != nil {
		return nil, err
	}

	// Best-effort activity bookkeeping; a failed touch never blocks sign-in.
	if err := s.users.TouchLastSignIn(ctx, u.ID); err != nil {
		log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("failed to update last sign-in")
	}

	return &SignInResult{Token: token, SessionID: sess.ID, User: u}, nil
}

// SignOut revokes the session. Revoking an already-dead session is not an
// error for the caller: the local state is cleared regardless.
func (s *Service) SignOut(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Revoke(ctx, sessionID)
	if errors.Is(err, ErrSessionInvalid) {
		return nil
	}
	return err
}

// VerifySession implements auth.SessionVerifier.
func (s *Service) VerifySession(ctx context.Context, sessionID, userID string) error {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionInvalid
	}
	sess, err := s.sessions.GetByID(ctx, sid)
	if err != nil {
		return err
	}
	if sess.UserID.String() != userID {
		return ErrSessionInvalid
	}
	if !sess.Live(time.Now().UTC()) {
		return ErrSessionInvalid
	}
	return nil
}

// CreateUserParams describes an admin-created account. The account is
// created pre-confirmed with its profile row in place, so the new user can
// sign in immediately with the temporary password.
type CreateUserParams struct {
	Email      string
	Password   string
	FirstName  *string
	LastName   *string
	Role       profile.Role
	FacilityID *uuid.UUID
}

func (s *Service) CreateUser(ctx context.Context, p CreateUserParams) (*User, error) {
	email := strings.TrimSpace(strings.ToLower(p.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(p.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := &User{
		Email:            email,
		PasswordHash:     string(hash),
		EmailConfirmedAt: &now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	prof := &profile.Profile{
		UserID:     u.ID,
		Email:      email,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Role:       p.Role,
		FacilityID: p.FacilityID,
	}
	if err := s.profiles.Create(ctx, prof); err != nil {
		// roll back the orphaned auth user
		_ = s.users.Delete(ctx, u.ID)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return u, nil
}

// SignUpMoH is the self-service registration path for ministry staff.
func (s *Service) SignUpMoH(ctx context.Context, email, password string, firstName, lastName *string) (*User, error) {
	return s.CreateUser(ctx, CreateUserParams{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      profile.RoleMoH,
	})
}

// UpdateCredentials changes the email and/or password of an existing user.
func (s *Service) UpdateCredentials(ctx context.Context, userID uuid.UUID, email, password *string) (*User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if email != nil {
		e := strings.TrimSpace(strings.ToLower(*email))
		if e == "" {
			return nil, fmt.Errorf("email cannot be empty")
		}
		u.Email = e
	}
	if password != nil {
		if len(*password) < 8 {
			return nil, fmt.Errorf("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes the account. Sessions and the profile row go with it
// via foreign keys; existing tokens die on the next VerifySession check.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	return s.users.Delete(ctx, userID)
}

// GetUser returns the account by ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}
