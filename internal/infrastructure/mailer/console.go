package mailer

import (
	"context"
	"log/slog"

	"github.com/stagepass/backoffice/internal/usecase"
)

// ConsoleMailer logs mail instead of delivering it. Used in dev mode and
// anywhere no SendGrid key is configured.
type ConsoleMailer struct {
	logger *slog.Logger
}

func NewConsoleMailer(logger *slog.Logger) *ConsoleMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleMailer{logger: logger}
}

func (m *ConsoleMailer) Send(ctx context.Context, msg usecase.MailMessage) error {
	m.logger.InfoContext(ctx, "console mail",
		"batch_id", msg.BatchID,
		"recipient_id", msg.RecipientID,
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"preview", buildMailPreview(msg),
	)
	return nil
}
