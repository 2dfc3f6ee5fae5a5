package registration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hkit/portal/internal/domain/facility"
	"github.com/hkit/portal/internal/domain/identity"
	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/notification"
)

// --- test doubles ---

type mockRequestRepo struct {
	requests map[uuid.UUID]*Request
	markErr  error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = StatusPending
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) List(_ context.Context, status string) ([]*Request, error) {
	var out []*Request
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) MarkApproved(_ context.Context, id, approvedBy uuid.UUID) error {
	return m.resolve(id, approvedBy, StatusApproved)
}

func (m *mockRequestRepo) MarkRejected(_ context.Context, id, approvedBy uuid.UUID) error {
	return m.resolve(id, approvedBy, StatusRejected)
}

func (m *mockRequestRepo) resolve(id, approvedBy uuid.UUID, status string) error {
	if m.markErr != nil {
		return m.markErr
	}
	r, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusPending {
		return ErrNotPending
	}
	r.Status = status
	r.ApprovedBy = &approvedBy
	return nil
}

type fakeIdentities struct {
	created   map[uuid.UUID]identity.CreateUserParams
	createErr error
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{created: make(map[uuid.UUID]identity.CreateUserParams)}
}

func (f *fakeIdentities) CreateUser(_ context.Context, p identity.CreateUserParams) (*identity.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := &identity.User{ID: uuid.New(), Email: p.Email}
	f.created[u.ID] = p
	return u, nil
}

func (f *fakeIdentities) DeleteUser(_ context.Context, userID uuid.UUID) error {
	delete(f.created, userID)
	return nil
}

type fakeFacilities struct {
	created   map[uuid.UUID]*facility.Facility
	createErr error
}

func newFakeFacilities() *fakeFacilities {
	return &fakeFacilities{created: make(map[uuid.UUID]*facility.Facility)}
}

func (f *fakeFacilities) Create(_ context.Context, fac *facility.Facility) error {
	if f.createErr != nil {
		return f.createErr
	}
	if fac.ID == uuid.Nil {
		fac.ID = uuid.New()
	}
	cp := *fac
	f.created[fac.ID] = &cp
	return nil
}

func (f *fakeFacilities) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.created, id)
	return nil
}

type fakeProfiles struct {
	roles      map[uuid.UUID]profile.Role
	facilities map[uuid.UUID]*uuid.UUID
	setRoleErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		roles:      make(map[uuid.UUID]profile.Role),
		facilities: make(map[uuid.UUID]*uuid.UUID),
	}
}

func (f *fakeProfiles) SetRole(_ context.Context, userID uuid.UUID, role profile.Role) error {
	if f.setRoleErr != nil {
		return f.setRoleErr
	}
	f.roles[userID] = role
	return nil
}

func (f *fakeProfiles) SetFacility(_ context.Context, userID uuid.UUID, facilityID *uuid.UUID) error {
	f.facilities[userID] = facilityID
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendFromTemplate(_ context.Context, templateID string, _ map[string]string, recipient string) (*notification.Email, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, recipient+":"+templateID)
	return &notification.Email{Recipient: recipient, TemplateID: templateID}, nil
}

type saga struct {
	requests   *mockRequestRepo
	identities *fakeIdentities
	facilities *fakeFacilities
	profiles   *fakeProfiles
	notifier   *fakeNotifier
	approver   *Approver
}

func newSaga() *saga {
	s := &saga{
		requests:   newMockRequestRepo(),
		identities: newFakeIdentities(),
		facilities: newFakeFacilities(),
		profiles:   newFakeProfiles(),
		notifier:   &fakeNotifier{},
	}
	s.approver = NewApprover(s.requests, s.identities, s.facilities, s.profiles, s.notifier)
	return s
}

func (s *saga) seedFacilityRequest(t *testing.T) *Request {
	t.Helper()
	req := &Request{
		Type: TypeFacility,
		Payload: map[string]interface{}{
			"facility_name": "Central Clinic",
			"facility_type": "clinic",
			"region":        "Central",
			"contact_email": "admin@clinic.org",
			"admin_name":    "Jane Doe",
		},
	}
	if err := s.requests.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	return req
}

func facilityApproveParams(requestID uuid.UUID) ApproveParams {
	return ApproveParams{
		RequestID:  requestID,
		Email:      "admin@clinic.org",
		Password:   "Temp1234!pwd",
		Name:       "Jane Doe",
		Role:       profile.RoleFacilityAdmin,
		ApproverID: uuid.New(),
	}
}

// --- tests ---

func TestApproveFacilityRequest(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	params := facilityApproveParams(req.ID)

	res, err := s.approver.Approve(context.Background(), params)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if len(s.identities.created) != 1 {
		t.Fatalf("expected exactly 1 identity, got %d", len(s.identities.created))
	}
	created := s.identities.created[res.UserID]
	if created.Email != "admin@clinic.org" {
		t.Errorf("unexpected email %q", created.Email)
	}
	if created.FirstName == nil || *created.FirstName != "Jane" {
		t.Errorf("expected first name Jane, got %v", created.FirstName)
	}
	if created.LastName == nil || *created.LastName != "Doe" {
		t.Errorf("expected last name Doe, got %v", created.LastName)
	}

	if len(s.facilities.created) != 1 {
		t.Fatalf("expected exactly 1 facility, got %d", len(s.facilities.created))
	}
	if res.FacilityID == nil {
		t.Fatal("expected facility id in result")
	}
	f := s.facilities.created[*res.FacilityID]
	if f.Status != facility.StatusVerified {
		t.Errorf("expected verified facility, got %q", f.Status)
	}
	if f.Administrators != 1 {
		t.Errorf("expected 1 administrator, got %d", f.Administrators)
	}
	if f.Name != "Central Clinic" {
		t.Errorf("unexpected facility name %q", f.Name)
	}

	if s.profiles.roles[res.UserID] != profile.RoleFacilityAdmin {
		t.Errorf("expected FacilityAdmin role, got %q", s.profiles.roles[res.UserID])
	}
	if got := s.profiles.facilities[res.UserID]; got == nil || *got != *res.FacilityID {
		t.Errorf("expected facility affiliation %s, got %v", res.FacilityID, got)
	}

	stored := s.requests.requests[req.ID]
	if stored.Status != StatusApproved {
		t.Errorf("expected approved status, got %q", stored.Status)
	}
	if stored.ApprovedBy == nil || *stored.ApprovedBy != params.ApproverID {
		t.Errorf("expected approver %s recorded, got %v", params.ApproverID, stored.ApprovedBy)
	}

	if len(s.notifier.sent) != 1 {
		t.Errorf("expected 1 welcome email, got %d", len(s.notifier.sent))
	}
}

func TestApproveSingleTokenName(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	params := facilityApproveParams(req.ID)
	params.Name = "Madonna"

	res, err := s.approver.Approve(context.Background(), params)
	if err != nil {
		t.Fatalf("single-token names must provision cleanly: %v", err)
	}

	created := s.identities.created[res.UserID]
	if created.FirstName == nil || *created.FirstName != "Madonna" {
		t.Errorf("expected first name Madonna, got %v", created.FirstName)
	}
	if created.LastName != nil {
		t.Errorf("expected nil last name, got %q", *created.LastName)
	}
	if got := s.requests.requests[req.ID].Status; got != StatusApproved {
		t.Errorf("expected approved request, got %q", got)
	}
}

func TestApproveDeveloperRequestCreatesNoFacility(t *testing.T) {
	s := newSaga()
	req := &Request{
		Type: TypeDeveloper,
		Payload: map[string]interface{}{
			"name": "Dev One", "email": "dev@example.org", "organization": "Acme",
		},
	}
	if err := s.requests.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	res, err := s.approver.Approve(context.Background(), ApproveParams{
		RequestID:  req.ID,
		Email:      "dev@example.org",
		Password:   "Temp1234!pwd",
		Name:       "Dev One",
		Role:       profile.RoleDeveloper,
		ApproverID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.FacilityID != nil {
		t.Error("developer approval must not create a facility")
	}
	if len(s.facilities.created) != 0 {
		t.Errorf("expected 0 facilities, got %d", len(s.facilities.created))
	}
	if s.profiles.roles[res.UserID] != profile.RoleDeveloper {
		t.Errorf("expected Developer role, got %q", s.profiles.roles[res.UserID])
	}
}

func TestApproveFacilityInsertFailureRollsBackIdentity(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	s.facilities.createErr = errors.New("insert failed")

	_, err := s.approver.Approve(context.Background(), facilityApproveParams(req.ID))
	if err == nil {
		t.Fatal("expected error")
	}

	if len(s.identities.created) != 0 {
		t.Errorf("expected identity rolled back, %d remain", len(s.identities.created))
	}
	if len(s.facilities.created) != 0 {
		t.Errorf("expected 0 facilities, got %d", len(s.facilities.created))
	}
	if s.requests.requests[req.ID].Status != StatusPending {
		t.Errorf("request must stay pending, got %q", s.requests.requests[req.ID].Status)
	}
}

func TestApproveProfileFailureUnwindsFacilityAndIdentity(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	s.profiles.setRoleErr = errors.New("update failed")

	_, err := s.approver.Approve(context.Background(), facilityApproveParams(req.ID))
	if err == nil {
		t.Fatal("expected error")
	}

	if len(s.identities.created) != 0 {
		t.Errorf("expected identity rolled back, %d remain", len(s.identities.created))
	}
	if len(s.facilities.created) != 0 {
		t.Errorf("expected facility rolled back, %d remain", len(s.facilities.created))
	}
	if s.requests.requests[req.ID].Status != StatusPending {
		t.Errorf("request must stay pending, got %q", s.requests.requests[req.ID].Status)
	}
}

func TestApproveContinuesWhenEmailFails(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	s.notifier.err = errors.New("smtp unreachable")

	_, err := s.approver.Approve(context.Background(), facilityApproveParams(req.ID))
	if err != nil {
		t.Fatalf("email failure must not fail approval: %v", err)
	}
	if s.requests.requests[req.ID].Status != StatusApproved {
		t.Errorf("expected approved, got %q", s.requests.requests[req.ID].Status)
	}
}

func TestApproveBookkeepingFailureReportsPartial(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	s.requests.markErr = errors.New("write failed")

	res, err := s.approver.Approve(context.Background(), facilityApproveParams(req.ID))

	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialError, got %v", err)
	}
	if res == nil || res.UserID == uuid.Nil {
		t.Fatal("partial result must carry the provisioned user")
	}
	// Provisioned resources survive: the account is live.
	if len(s.identities.created) != 1 {
		t.Errorf("expected identity kept, got %d", len(s.identities.created))
	}
	if len(s.facilities.created) != 1 {
		t.Errorf("expected facility kept, got %d", len(s.facilities.created))
	}
}

func TestApproveAlreadyResolved(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)
	s.requests.requests[req.ID].Status = StatusApproved

	_, err := s.approver.Approve(context.Background(), facilityApproveParams(req.ID))
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if len(s.identities.created) != 0 {
		t.Error("resolved requests must provision nothing")
	}
}

func TestApproveRejectsRoleTypeMismatch(t *testing.T) {
	s := newSaga()
	req := s.seedFacilityRequest(t)

	params := facilityApproveParams(req.ID)
	params.Role = profile.RoleDeveloper
	if _, err := s.approver.Approve(context.Background(), params); err == nil {
		t.Fatal("expected error for role/type mismatch")
	}
	if len(s.identities.created) != 0 {
		t.Error("validation failure must provision nothing")
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Jane", "Jane", ""},
		{"Jane van der Berg", "Jane", "van der Berg"},
		{"  Jane Doe  ", "Jane", "Doe"},
	}
	for _, tc := range cases {
		first, last := splitName(tc.in)
		gotFirst, gotLast := "", ""
		if first != nil {
			gotFirst = *first
		}
		if last != nil {
			gotLast = *last
		}
		if gotFirst != tc.first || gotLast != tc.last {
			t.Errorf("splitName(%q) = %q,%q; want %q,%q", tc.in, gotFirst, gotLast, tc.first, tc.last)
		}
	}

	if first, last := splitName(""); first != nil || last != nil {
		t.Error("empty name must split to nil,nil")
	}
}
