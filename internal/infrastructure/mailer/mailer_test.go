package mailer

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stagepass/backoffice/internal/platform/resilience"
	"github.com/stagepass/backoffice/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsoleMailer_Send(t *testing.T) {
	m := NewConsoleMailer(testLogger())

	err := m.Send(t.Context(), usecase.MailMessage{
		ToEmail:     "ayu.lestari@example.com",
		ToName:      "Ayu Lestari",
		Subject:     "You are invited",
		Body:        "See you there.",
		BatchID:     "batch-1",
		RecipientID: "rcp-1",
	})
	if err != nil {
		t.Fatalf("console mailer should never fail: %v", err)
	}
}

func TestSendGridMailer_Send_Validation(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		m := NewSendGridMailer(SendGridConfig{FromEmail: "noreply@stagepass.id"}, testLogger())
		err := m.Send(t.Context(), usecase.MailMessage{ToEmail: "a@example.com"})
		if err == nil || !strings.Contains(err.Error(), "api key") {
			t.Fatalf("expected api key error, got %v", err)
		}
	})

	t.Run("missing recipient email", func(t *testing.T) {
		m := NewSendGridMailer(SendGridConfig{APIKey: "SG.test", FromEmail: "noreply@stagepass.id"}, testLogger())
		err := m.Send(t.Context(), usecase.MailMessage{ToEmail: "   "})
		if err == nil || !strings.Contains(err.Error(), "recipient email") {
			t.Fatalf("expected recipient email error, got %v", err)
		}
	})
}

func TestSendGridMailer_OpenCircuitShortCircuits(t *testing.T) {
	m := NewSendGridMailer(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "noreply@stagepass.id",
		Breaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, testLogger())
	m.recordFailure()

	err := m.Send(t.Context(), usecase.MailMessage{ToEmail: "a@example.com"})
	if err == nil || !strings.Contains(err.Error(), "sendgrid") {
		t.Fatalf("expected circuit breaker rejection, got %v", err)
	}
}

func TestSendGridMailer_Prepare(t *testing.T) {
	m := NewSendGridMailer(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "noreply@stagepass.id",
		FromName:  "StagePass",
	}, testLogger())

	out := m.prepare(usecase.MailMessage{
		ToEmail:     "ayu.lestari@example.com",
		ToName:      "Ayu Lestari",
		Subject:     "You are invited",
		Body:        "See you there.",
		BatchID:     "batch-1",
		RecipientID: "rcp-1",
	})

	if out.From == nil || out.From.Address != "noreply@stagepass.id" {
		t.Fatalf("unexpected from: %+v", out.From)
	}
	if len(out.Personalizations) != 1 {
		t.Fatalf("personalizations = %d, want 1", len(out.Personalizations))
	}
	p := out.Personalizations[0]
	if p.Subject != "You are invited" {
		t.Fatalf("subject = %q", p.Subject)
	}
	if len(p.To) != 1 || p.To[0].Address != "ayu.lestari@example.com" {
		t.Fatalf("unexpected recipients: %+v", p.To)
	}
	if len(out.Content) != 1 || out.Content[0].Type != "text/plain" || out.Content[0].Value != "See you there." {
		t.Fatalf("unexpected content: %+v", out.Content)
	}
	if out.CustomArgs["batch_id"] != "batch-1" || out.CustomArgs["recipient_id"] != "rcp-1" {
		t.Fatalf("unexpected custom args: %+v", out.CustomArgs)
	}
}

func TestBuildMailPreview(t *testing.T) {
	preview := buildMailPreview(usecase.MailMessage{
		ToEmail: "a@example.com",
		Subject: "You are invited",
		Body:    strings.Repeat("x", 300),
	})

	if !strings.Contains(preview, "to=a@example.com") {
		t.Fatalf("preview %q missing recipient", preview)
	}
	if !strings.Contains(preview, "subject=You are invited") {
		t.Fatalf("preview %q missing subject", preview)
	}
	if !strings.Contains(preview, "...(truncated)") {
		t.Fatalf("long body should be truncated: %q", preview)
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := truncateForLog("short", 10); got != "short" {
		t.Fatalf("short value should pass through, got %q", got)
	}
	if got := truncateForLog("abcdef", 3); got != "abc...(truncated)" {
		t.Fatalf("got %q", got)
	}
	if got := truncateForLog("abcdef", 0); got != "abcdef" {
		t.Fatalf("non-positive max should pass through, got %q", got)
	}
}
