package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/auth"
)

// --- in-memory repositories ---

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) TouchLastSignIn(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now().UTC()
	u.LastSignInAt = &now
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

type mockSessionRepo struct {
	sessions map[uuid.UUID]*Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[uuid.UUID]*Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionInvalid
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepo) Revoke(_ context.Context, id uuid.UUID) error {
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return ErrSessionInvalid
	}
	now := time.Now().UTC()
	s.RevokedAt = &now
	return nil
}

func (m *mockSessionRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	for _, s := range m.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

type mockProfileRepo struct {
	profiles map[uuid.UUID]*profile.Profile
	failNext bool
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[uuid.UUID]*profile.Profile)}
}

func (m *mockProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	if m.failNext {
		m.failNext = false
		return errors.New("insert failed")
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*profile.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) UpdateNames(_ context.Context, userID uuid.UUID, first, last *string) error {
	p, ok := m.profiles[userID]
	if !ok {
		return profile.ErrNotFound
	}
	p.FirstName = first
	p.LastName = last
	return nil
}

func (m *mockProfileRepo) SetRole(_ context.Context, userID uuid.UUID, role profile.Role) error {
	p, ok := m.profiles[userID]
	if !ok {
		return profile.ErrNotFound
	}
	p.Role = role
	return nil
}

func (m *mockProfileRepo) SetFacility(_ context.Context, userID uuid.UUID, facilityID *uuid.UUID) error {
	p, ok := m.profiles[userID]
	if !ok {
		return profile.ErrNotFound
	}
	p.FacilityID = facilityID
	return nil
}

func (m *mockProfileRepo) ListByRoles(_ context.Context, roles []profile.Role) ([]*profile.Profile, error) {
	var out []*profile.Profile
	for _, p := range m.profiles {
		for _, role := range roles {
			if p.Role == role {
				cp := *p
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (m *mockProfileRepo) Delete(_ context.Context, userID uuid.UUID) error {
	delete(m.profiles, userID)
	return nil
}

func newTestService() (*Service, *mockUserRepo, *mockSessionRepo, *mockProfileRepo) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	profiles := newMockProfileRepo()
	tokens := auth.NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	return NewService(users, sessions, profiles, tokens), users, sessions, profiles
}

func seedUser(t *testing.T, users *mockUserRepo, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &User{Email: email, PasswordHash: string(hash)}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// --- tests ---

func TestSignIn(t *testing.T) {
	svc, users, sessions, _ := newTestService()
	u := seedUser(t, users, "jo@example.org", "correct-horse-1!")

	res, err := svc.SignIn(context.Background(), "jo@example.org", "correct-horse-1!")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a token")
	}
	if res.User.ID != u.ID {
		t.Errorf("expected user %s, got %s", u.ID, res.User.ID)
	}
	if _, ok := sessions.sessions[res.SessionID]; !ok {
		t.Errorf("expected session row %s to exist", res.SessionID)
	}
	if len(sessions.sessions) != 1 {
		t.Errorf("expected 1 session row, got %d", len(sessions.sessions))
	}
	if users.users[u.ID].LastSignInAt == nil {
		t.Error("expected last sign-in to be recorded")
	}
}

func TestSignInCaseInsensitiveEmail(t *testing.T) {
	svc, users, _, _ := newTestService()
	seedUser(t, users, "jo@example.org", "correct-horse-1!")

	if _, err := svc.SignIn(context.Background(), "JO@Example.ORG", "correct-horse-1!"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc, users, _, _ := newTestService()
	seedUser(t, users, "jo@example.org", "correct-horse-1!")

	_, err := svc.SignIn(context.Background(), "jo@example.org", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.SignIn(context.Background(), "nobody@example.org", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	svc, users, sessions, _ := newTestService()
	u := seedUser(t, users, "jo@example.org", "correct-horse-1!")

	_, err := svc.SignIn(context.Background(), "jo@example.org", "correct-horse-1!")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	var sessionID uuid.UUID
	for id := range sessions.sessions {
		sessionID = id
	}
	if err := svc.SignOut(context.Background(), sessionID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if err := svc.VerifySession(context.Background(), sessionID.String(), u.ID.String()); err == nil {
		t.Error("expected revoked session to fail verification")
	}

	// Signing out again is not an error: local state clears regardless.
	if err := svc.SignOut(context.Background(), sessionID); err != nil {
		t.Errorf("repeated SignOut: %v", err)
	}
}

func TestVerifySession(t *testing.T) {
	svc, _, sessions, _ := newTestService()
	userID := uuid.New()
	sess := &Session{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := sessions.Create(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	if err := svc.VerifySession(context.Background(), sess.ID.String(), userID.String()); err != nil {
		t.Errorf("live session: %v", err)
	}
	if err := svc.VerifySession(context.Background(), sess.ID.String(), uuid.New().String()); err == nil {
		t.Error("expected wrong-user verification to fail")
	}
	if err := svc.VerifySession(context.Background(), "not-a-uuid", userID.String()); err == nil {
		t.Error("expected malformed session id to fail")
	}

	expired := &Session{UserID: userID, ExpiresAt: time.Now().Add(-time.Minute)}
	if err := sessions.Create(context.Background(), expired); err != nil {
		t.Fatal(err)
	}
	if err := svc.VerifySession(context.Background(), expired.ID.String(), userID.String()); err == nil {
		t.Error("expected expired session to fail")
	}
}

func TestCreateUser(t *testing.T) {
	svc, _, _, profiles := newTestService()
	first, last := "Jane", "Doe"

	u, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email:     "Jane@Example.org",
		Password:  "Temp1234!pwd",
		FirstName: &first,
		LastName:  &last,
		Role:      profile.RoleFacilityAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "jane@example.org" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.EmailConfirmedAt == nil {
		t.Error("admin-created accounts must be pre-confirmed")
	}

	p, err := profiles.GetByUserID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("profile row missing: %v", err)
	}
	if p.Role != profile.RoleFacilityAdmin {
		t.Errorf("expected FacilityAdmin profile, got %q", p.Role)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, users, _, _ := newTestService()
	seedUser(t, users, "jo@example.org", "correct-horse-1!")

	_, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email:    "jo@example.org",
		Password: "Temp1234!pwd",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateUserRollsBackOnProfileFailure(t *testing.T) {
	svc, users, _, profiles := newTestService()
	profiles.failNext = true

	_, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email:    "jo@example.org",
		Password: "Temp1234!pwd",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(users.users) != 0 {
		t.Error("expected auth user rolled back after profile insert failure")
	}
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.CreateUser(context.Background(), CreateUserParams{
		Email:    "jo@example.org",
		Password: "short",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSignUpMoHAssignsRole(t *testing.T) {
	svc, _, _, profiles := newTestService()

	u, err := svc.SignUpMoH(context.Background(), "staff@moh.gov", "Temp1234!pwd", nil, nil)
	if err != nil {
		t.Fatalf("SignUpMoH: %v", err)
	}
	p, err := profiles.GetByUserID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Role != profile.RoleMoH {
		t.Errorf("expected MoH role, got %q", p.Role)
	}
}

func TestUpdateCredentials(t *testing.T) {
	svc, users, _, _ := newTestService()
	u := seedUser(t, users, "jo@example.org", "correct-horse-1!")

	newEmail := "new@example.org"
	newPassword := "Changed123!pw"
	updated, err := svc.UpdateCredentials(context.Background(), u.ID, &newEmail, &newPassword)
	if err != nil {
		t.Fatalf("UpdateCredentials: %v", err)
	}
	if updated.Email != "new@example.org" {
		t.Errorf("unexpected email %q", updated.Email)
	}

	if _, err := svc.SignIn(context.Background(), "new@example.org", newPassword); err != nil {
		t.Errorf("sign in with new credentials: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "new@example.org", "correct-horse-1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password must stop working, got %v", err)
	}
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	svc, users, sessions, _ := newTestService()
	u := seedUser(t, users, "jo@example.org", "correct-horse-1!")

	_, err := svc.SignIn(context.Background(), "jo@example.org", "correct-horse-1!")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if len(users.users) != 0 {
		t.Error("expected user removed")
	}
	for _, s := range sessions.sessions {
		if s.RevokedAt == nil {
			t.Error("expected all sessions revoked")
		}
	}
}
