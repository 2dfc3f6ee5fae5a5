// Package notification delivers portal emails with template rendering. The
// default sender only logs the message, matching environments where no SMTP
// relay is configured. Delivery is best-effort for callers: failures are
// recorded and surfaced, never fatal to the triggering operation.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Built-in template IDs.
const (
	TemplateWelcomeTemporaryPassword = "welcome-temporary-password"
	TemplateRegistrationApproved     = "registration-approved"
	TemplateRegistrationRejected     = "registration-rejected"
)

// Email is a single outbound portal email.
type Email struct {
	ID         string            `json:"id"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
}

// EmailSender delivers a rendered email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable email template with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages email templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in portal
// templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateWelcomeTemporaryPassword,
			Name:    "Welcome With Temporary Password",
			Subject: "Your account has been approved",
			Body:    "Dear {{name}}, your registration has been approved. Sign in with {{email}} and the temporary password {{password}}, then change it on first login.",
		},
		{
			ID:      TemplateRegistrationApproved,
			Name:    "Registration Approved",
			Subject: "Registration approved",
			Body:    "Dear {{name}}, your {{request_type}} registration has been approved. You can now sign in to the portal.",
		},
		{
			ID:      TemplateRegistrationRejected,
			Name:    "Registration Rejected",
			Subject: "Registration update",
			Body:    "Dear {{name}}, your {{request_type}} registration could not be approved. Contact the administrator for details.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// LogSender writes emails to the structured log instead of delivering them.
// Used whenever SMTP is not configured. Message bodies may carry temporary
// credentials, so only subject and recipient are logged.
type LogSender struct {
	From string
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	log.Info().
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Msg("email (log delivery)")
	return nil
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Mailer renders templates, dispatches emails and keeps an in-memory record
// of what was sent.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
	mu        sync.RWMutex
	emails    map[string]*Email
}

func NewMailer(sender EmailSender, tpl *TemplateEngine) *Mailer {
	return &Mailer{
		sender:    sender,
		templates: tpl,
		emails:    make(map[string]*Email),
	}
}

// Send dispatches an email, assigns an ID and timestamps, and records the
// result.
func (m *Mailer) Send(ctx context.Context, e *Email) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	e.Status = "pending"

	sendErr := m.sender.SendEmail(ctx, e.Recipient, e.Subject, e.Body)
	if sendErr != nil {
		e.Status = "failed"
		e.Error = sendErr.Error()
	} else {
		e.Status = "sent"
		sentAt := time.Now().UTC()
		e.SentAt = &sentAt
	}

	m.mu.Lock()
	m.emails[e.ID] = e
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends the resulting email.
func (m *Mailer) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Email, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	e := &Email{
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := m.Send(ctx, e); err != nil {
		return e, err
	}
	return e, nil
}

// Get retrieves a recorded email by ID.
func (m *Mailer) Get(id string) (*Email, error) {
	m.mu.RLock()
	e, ok := m.emails[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("email %q not found", id)
	}
	return e, nil
}

// Retry re-sends a failed email. Returns an error if the email is not in
// "failed" status.
func (m *Mailer) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.emails[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("email %q not found", id)
	}
	if e.Status != "failed" {
		return fmt.Errorf("email %q is not in failed status (current: %s)", id, e.Status)
	}

	sendErr := m.sender.SendEmail(ctx, e.Recipient, e.Subject, e.Body)

	m.mu.Lock()
	if sendErr != nil {
		e.Status = "failed"
		e.Error = sendErr.Error()
	} else {
		e.Status = "sent"
		sentAt := time.Now().UTC()
		e.SentAt = &sentAt
		e.Error = ""
	}
	m.mu.Unlock()

	return sendErr
}

// Stats returns counts of recorded emails grouped by status.
func (m *Mailer) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, e := range m.emails {
		stats[e.Status]++
	}
	return stats
}
