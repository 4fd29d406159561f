package convocation

import (
	"context"
	"time"
)

// Filter narrows and pages a batch history query. SearchText is a
// case-insensitive substring match against subject or body. Limit and
// Offset are expected to be normalized by the caller before they reach
// a repository.
type Filter struct {
	EventID     string
	Status      BatchStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SearchText  string
	Limit       int
	Offset      int
}

// Repository describes convocation persistence needs from use cases.
// Batch history ordering is creation time descending with batch ID
// ascending as the tie-break.
type Repository interface {
	CreateBatchWithRecipients(ctx context.Context, batch Batch, recipients []Recipient) error
	GetBatch(ctx context.Context, batchID string) (Batch, bool, error)
	ListRecipients(ctx context.Context, batchID string) ([]Recipient, error)
	GetRecipientByContact(ctx context.Context, batchID, contactID string) (Recipient, bool, error)
	UpdateRecipientStatus(ctx context.Context, recipientID string, status RecipientStatus, errorMessage string, at time.Time) error
	// UpdateBatchStatus writes the aggregated batch outcome. sentAt stamps
	// when the fan-out finished and is non-nil exactly for SENT and
	// SEND_FAILED.
	UpdateBatchStatus(ctx context.Context, batchID string, status BatchStatus, errorSummary string, sentAt *time.Time) error
	FindBatches(ctx context.Context, filter Filter) ([]Batch, int, error)
	// ListDue returns pending batches whose scheduled time is at or before now,
	// oldest first, for the dispatch scheduler.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Batch, error)
}
