package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	engine := NewTemplateEngine()
	engine.RegisterTemplate(Template{
		ID:      "welcome",
		Subject: "Welcome {{name}}",
		Body:    "Hello {{name}}, your clinic is {{clinic}}.",
	})

	subject, body, err := engine.Render("welcome", map[string]string{"name": "Dr. Rao", "clinic": "Northside"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if subject != "Welcome Dr. Rao" {
		t.Errorf("unexpected subject %q", subject)
	}
	if body != "Hello Dr. Rao, your clinic is Northside." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	engine := NewTemplateEngine()
	engine.RegisterTemplate(Template{ID: "partial", Subject: "Hi {{name}}", Body: "{{missing}}"})

	_, body, err := engine.Render("partial", map[string]string{"name": "A"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if body != "{{missing}}" {
		t.Errorf("expected unknown placeholder to be left as-is, got %q", body)
	}
}

func TestMailer_VerificationLink(t *testing.T) {
	m := NewMailer(&MockEmailSender{}, NewTemplateEngine(), "https://app.example.com/")

	got := m.VerificationLink("abc123")
	if got != "https://app.example.com/verify-email?token=abc123" {
		t.Errorf("unexpected link %q", got)
	}
}

func TestMailer_SendVerification(t *testing.T) {
	sender := &MockEmailSender{}
	m := NewMailer(sender, NewTemplateEngine(), "http://localhost:3000")

	if err := m.SendVerification(context.Background(), "rao@example.com", "Dr. Rao", "tok", "24h0m0s"); err != nil {
		t.Fatalf("SendVerification() error: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "rao@example.com" {
		t.Errorf("unexpected recipient %q", calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "http://localhost:3000/verify-email?token=tok") {
		t.Errorf("expected verification link in body, got %q", calls[0].Body)
	}
	if !strings.Contains(calls[0].Body, "Hello Dr. Rao") {
		t.Errorf("expected name in body, got %q", calls[0].Body)
	}
	if !strings.Contains(calls[0].Body, "24h0m0s") {
		t.Errorf("expected ttl in body, got %q", calls[0].Body)
	}
}

func TestMailer_SendVerificationFailure(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "relay refused"}
	m := NewMailer(sender, NewTemplateEngine(), "http://localhost:3000")

	err := m.SendVerification(context.Background(), "rao@example.com", "Dr. Rao", "tok", "24h")
	if err == nil || !strings.Contains(err.Error(), "relay refused") {
		t.Fatalf("expected wrapped sender error, got %v", err)
	}
}

func TestLogSender_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	if err := s.SendEmail(context.Background(), "a@example.com", "Subject", "the body"); err != nil {
		t.Fatalf("SendEmail() error: %v", err)
	}
	if !strings.Contains(buf.String(), "a@example.com") || !strings.Contains(buf.String(), "the body") {
		t.Errorf("expected message in log, got %s", buf.String())
	}
}

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})

	if _, err := s.message("rao@example.com", "Subject", "Body"); err != nil {
		t.Fatalf("message() error: %v", err)
	}
	if _, err := s.message("not an address", "Subject", "Body"); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestSMTPSender_ClientOptions(t *testing.T) {
	anon := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25})
	authed := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"})

	if len(authed.clientOptions()) <= len(anon.clientOptions()) {
		t.Error("expected auth options when a username is set")
	}
}
