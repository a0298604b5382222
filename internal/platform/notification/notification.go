// Package notification renders and delivers outbound email: account
// verification today, through an SMTP relay or the log when none is set.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template IDs registered by NewTemplateEngine.
const (
	TemplateVerifyEmail = "verify-email"
)

// Template defines a reusable email template.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine manages email templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.RegisterTemplate(Template{
		ID:      TemplateVerifyEmail,
		Subject: "Verify your email address",
		Body: "Hello {{name}},\n\n" +
			"Please confirm your email address to activate your account:\n\n" +
			"{{link}}\n\n" +
			"This link expires in {{ttl}}. If you did not create an account, you can ignore this message.\n",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
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

// Mailer composes the account emails and hands them to an EmailSender.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
	clientURL string
}

// NewMailer returns a Mailer whose links point at clientURL, the base URL of
// the web client.
func NewMailer(sender EmailSender, templates *TemplateEngine, clientURL string) *Mailer {
	return &Mailer{
		sender:    sender,
		templates: templates,
		clientURL: strings.TrimRight(clientURL, "/"),
	}
}

// VerificationLink returns the client URL that consumes token.
func (m *Mailer) VerificationLink(token string) string {
	return m.clientURL + "/verify-email?token=" + url.QueryEscape(token)
}

// SendVerification sends the email verification message to a new account.
// ttl is a human readable lifetime shown in the body, such as "24h0m0s".
func (m *Mailer) SendVerification(ctx context.Context, to, name, token, ttl string) error {
	subject, body, err := m.templates.Render(TemplateVerifyEmail, map[string]string{
		"name": name,
		"link": m.VerificationLink(token),
		"ttl":  ttl,
	})
	if err != nil {
		return err
	}
	if err := m.sender.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send verification email to %s: %w", to, err)
	}
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
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
