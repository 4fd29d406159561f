package mailer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stagepass/backoffice/internal/platform/resilience"
	"github.com/stagepass/backoffice/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	Breaker   resilience.CircuitBreakerConfig
}

// SendGridMailer delivers convocation mail through the SendGrid v3 API. A
// circuit breaker keeps a flapping provider from stalling whole batches.
type SendGridMailer struct {
	apiKey  string
	from    *sgmail.Email
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewSendGridMailer(cfg SendGridConfig, logger *slog.Logger) *SendGridMailer {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var breaker *resilience.CircuitBreaker
	if cfg.Breaker.Enabled {
		normalized := resilience.NormalizeCircuitBreakerConfig(cfg.Breaker)
		breaker = resilience.NewCircuitBreaker(normalized.FailureThreshold, normalized.OpenTimeout, normalized.HalfOpenMaxReq)
	}

	return &SendGridMailer{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		from:    sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg usecase.MailMessage) error {
	if m.apiKey == "" {
		return errors.New("sendgrid api key is not configured")
	}
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}

	if m.breaker != nil {
		if err := m.breaker.Allow(); err != nil {
			return errors.Wrap(err, "sendgrid")
		}
	}

	preview := buildMailPreview(msg)
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("mailer.provider", "sendgrid"),
			attribute.String("mailer.batch_id", msg.BatchID),
			attribute.String("mailer.recipient_id", msg.RecipientID),
			attribute.String("mailer.preview", preview),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req := sendgrid.GetRequest(m.apiKey, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		m.recordFailure()
		return errors.Wrapf(err, "sendgrid request batch=%s recipient=%s", msg.BatchID, msg.RecipientID)
	}
	if res.StatusCode >= http.StatusBadRequest {
		m.recordFailure()
		return errors.Newf("sendgrid status=%d batch=%s recipient=%s body=%s",
			res.StatusCode, msg.BatchID, msg.RecipientID, truncateForLog(res.Body, 512))
	}

	if m.breaker != nil {
		m.breaker.RecordSuccess()
	}
	m.logger.InfoContext(ctx, "sendgrid mail accepted",
		"batch_id", msg.BatchID,
		"recipient_id", msg.RecipientID,
		"status_code", res.StatusCode,
	)
	return nil
}

func (m *SendGridMailer) prepare(msg usecase.MailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	out := sgmail.NewV3Mail()
	out.SetFrom(m.from)
	out.AddPersonalizations(p)
	out.AddContent(sgmail.NewContent("text/plain", msg.Body))
	if msg.BatchID != "" {
		out.SetCustomArg("batch_id", msg.BatchID)
	}
	if msg.RecipientID != "" {
		out.SetCustomArg("recipient_id", msg.RecipientID)
	}

	return out
}

func (m *SendGridMailer) recordFailure() {
	if m.breaker != nil {
		m.breaker.RecordFailure()
	}
}

func buildMailPreview(msg usecase.MailMessage) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("to=")
	_, _ = buf.WriteString(msg.ToEmail)
	_, _ = buf.WriteString(" subject=")
	_, _ = buf.WriteString(msg.Subject)
	_, _ = buf.WriteString(" body=")
	_, _ = buf.WriteString(truncateForLog(msg.Body, 256))

	return buf.String()
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}
