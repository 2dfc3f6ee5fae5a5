package registration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hkit/portal/internal/domain/facility"
	"github.com/hkit/portal/internal/domain/identity"
	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/notification"
)

// IdentityProvisioner is the slice of the identity service the approval
// workflow needs.
type IdentityProvisioner interface {
	CreateUser(ctx context.Context, p identity.CreateUserParams) (*identity.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// FacilityProvisioner creates and removes facility rows.
type FacilityProvisioner interface {
	Create(ctx context.Context, f *facility.Facility) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileWriter assigns role and facility on the provisioned profile.
type ProfileWriter interface {
	SetRole(ctx context.Context, userID uuid.UUID, role profile.Role) error
	SetFacility(ctx context.Context, userID uuid.UUID, facilityID *uuid.UUID) error
}

// Notifier sends the welcome email. Delivery is best-effort.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Email, error)
}

// ApproveParams carries the overseer's approval decision. Email and Name
// may differ from the payload defaults when edited before approval.
type ApproveParams struct {
	RequestID  uuid.UUID
	Email      string
	Password   string
	Name       string
	Role       profile.Role
	ApproverID uuid.UUID
}

// ApproveResult reports what the workflow provisioned.
type ApproveResult struct {
	UserID     uuid.UUID  `json:"user_id"`
	FacilityID *uuid.UUID `json:"facility_id,omitempty"`
}

// Approver runs the registration approval workflow as a compensated saga:
// each provisioning step pushes an undo action, and any step failure
// unwinds everything done so far. The one deliberate exception is the final
// bookkeeping write, which reports a PartialError instead of destroying a
// fully provisioned account.
type Approver struct {
	requests   RequestRepository
	identities IdentityProvisioner
	facilities FacilityProvisioner
	profiles   ProfileWriter
	notifier   Notifier
}

func NewApprover(requests RequestRepository, identities IdentityProvisioner,
	facilities FacilityProvisioner, profiles ProfileWriter, notifier Notifier) *Approver {
	return &Approver{
		requests:   requests,
		identities: identities,
		facilities: facilities,
		profiles:   profiles,
		notifier:   notifier,
	}
}

// compensation is a stack of undo actions, unwound in reverse order.
type compensation struct {
	actions []func(ctx context.Context) error
}

func (c *compensation) push(fn func(ctx context.Context) error) {
	c.actions = append(c.actions, fn)
}

func (c *compensation) unwind(ctx context.Context) {
	for i := len(c.actions) - 1; i >= 0; i-- {
		if err := c.actions[i](ctx); err != nil {
			log.Error().Err(err).Msg("compensation step failed, manual cleanup needed")
		}
	}
}

// Approve resolves a pending request into a provisioned account.
func (a *Approver) Approve(ctx context.Context, p ApproveParams) (*ApproveResult, error) {
	req, err := a.requests.GetByID(ctx, p.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrNotPending
	}
	if err := a.validate(req, p); err != nil {
		return nil, err
	}

	firstName, lastName := splitName(p.Name)
	var comp compensation

	// Step 1: create the identity with a skeleton profile. Role and
	// facility land in step 3.
	user, err := a.identities.CreateUser(ctx, identity.CreateUserParams{
		Email:     p.Email,
		Password:  p.Password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      profile.RoleUnset,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	comp.push(func(ctx context.Context) error {
		return a.identities.DeleteUser(ctx, user.ID)
	})

	// Step 2: facility requests also provision the facility itself,
	// already verified with its one counted administrator.
	var facilityID *uuid.UUID
	if req.Type == TypeFacility {
		f := facilityFromPayload(req.Payload)
		f.Status = facility.StatusVerified
		f.Administrators = 1
		f.ComplianceScore = 0
		if err := a.facilities.Create(ctx, f); err != nil {
			comp.unwind(ctx)
			return nil, fmt.Errorf("create facility: %w", err)
		}
		facilityID = &f.ID
		comp.push(func(ctx context.Context) error {
			return a.facilities.Delete(ctx, f.ID)
		})
	}

	// Step 3: grant the role and facility affiliation.
	if err := a.profiles.SetRole(ctx, user.ID, p.Role); err != nil {
		comp.unwind(ctx)
		return nil, fmt.Errorf("assign role: %w", err)
	}
	if facilityID != nil {
		if err := a.profiles.SetFacility(ctx, user.ID, facilityID); err != nil {
			comp.unwind(ctx)
			return nil, fmt.Errorf("assign facility: %w", err)
		}
	}

	// Step 4: welcome email with the temporary password. Best-effort.
	if _, err := a.notifier.SendFromTemplate(ctx, notification.TemplateWelcomeTemporaryPassword,
		map[string]string{
			"name":     p.Name,
			"email":    p.Email,
			"password": p.Password,
		}, p.Email); err != nil {
		log.Warn().Err(err).Str("email", p.Email).Msg("welcome email failed, approval continues")
	}

	// Step 5: terminal bookkeeping. A failure here does not unwind: the
	// account is live and usable, so report partial success instead.
	if err := a.requests.MarkApproved(ctx, req.ID, p.ApproverID); err != nil {
		return &ApproveResult{UserID: user.ID, FacilityID: facilityID},
			&PartialError{UserID: user.ID, FacilityID: facilityID, Err: err}
	}

	return &ApproveResult{UserID: user.ID, FacilityID: facilityID}, nil
}

func (a *Approver) validate(req *Request, p ApproveParams) error {
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	if p.Password == "" {
		return fmt.Errorf("password is required")
	}
	switch req.Type {
	case TypeFacility:
		if p.Role != profile.RoleFacilityAdmin {
			return fmt.Errorf("facility requests grant FacilityAdmin, not %s", p.Role)
		}
	case TypeDeveloper:
		if p.Role != profile.RoleDeveloper {
			return fmt.Errorf("developer requests grant Developer, not %s", p.Role)
		}
	default:
		return fmt.Errorf("invalid request type: %s", req.Type)
	}
	return nil
}

// splitName breaks a display name into first/last on the first space.
func splitName(name string) (*string, *string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	first, last, found := strings.Cut(name, " ")
	if !found {
		return &first, nil
	}
	last = strings.TrimSpace(last)
	return &first, &last
}

func facilityFromPayload(payload map[string]interface{}) *facility.Facility {
	f := &facility.Facility{}
	f.Name = payloadString(payload, "facility_name")
	f.Type = payloadString(payload, "facility_type")
	f.Region = payloadString(payload, "region")
	if email := payloadString(payload, "contact_email"); email != "" {
		f.ContactEmail = &email
	}
	return f
}

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
