package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/convocation"
	"github.com/stagepass/backoffice/internal/domain/event"
	"github.com/stagepass/backoffice/internal/platform/id"
	"github.com/stagepass/backoffice/internal/platform/logging"
)

// Mailer delivers one convocation mail to one recipient.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is the provider-agnostic mail payload handed to a Mailer.
type MailMessage struct {
	ToEmail     string
	ToName      string
	Subject     string
	Body        string
	BatchID     string
	RecipientID string
}

type CreateBatchInput struct {
	EventID     string
	Subject     string
	Body        string
	ContactIDs  []string
	ScheduledAt *time.Time
	MaxWorkers  int
}

type DispatchResult struct {
	BatchID        string                  `json:"batch_id"`
	BatchStatus    convocation.BatchStatus `json:"batch_status"`
	Event          EventSummary            `json:"event"`
	RecipientCount int                     `json:"recipient_count"`
	SentCount      int                     `json:"sent_count"`
	FailedCount    int                     `json:"failed_count"`
	WorkerCount    int                     `json:"worker_count"`
	Scheduled      bool                    `json:"scheduled"`
	ErrorSummary   string                  `json:"error_summary,omitempty"`
	Recipients     []RecipientResult       `json:"recipients"`
}

// EventSummary is the resolved event carried on dispatch and history
// responses so callers can render the batch without a second lookup.
type EventSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at"`
}

func newEventSummary(e event.Event) EventSummary {
	return EventSummary{
		ID:       e.ID,
		Name:     e.Name,
		Venue:    e.Venue,
		StartsAt: e.StartsAt,
	}
}

type RecipientResult struct {
	ContactID  string `json:"contact_id"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

const (
	dispatchStatusSent    = "sent"
	dispatchStatusError   = "error"
	dispatchStatusPending = "pending"
)

// dispatchTaskResult is the per-recipient outcome crossing the worker
// boundary. persistErr carries a store failure, which is fatal to the batch.
type dispatchTaskResult struct {
	row        RecipientResult
	persistErr error
}

// JobQueue hands deferred dispatch work to an external queue, which calls
// back into the internal job endpoint when the delay elapses.
type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(context.Context, string, any, time.Duration, string) error {
	return nil
}

type DispatchService struct {
	batches    convocation.Repository
	contacts   contact.Repository
	events     event.Repository
	mailer     Mailer
	jobs       JobQueue
	idGen      id.Generator
	logger     *logging.Logger
	maxWorkers int

	now func() time.Time
}

func NewDispatchService(
	batches convocation.Repository,
	contacts contact.Repository,
	events event.Repository,
	mailer Mailer,
	jobs JobQueue,
	idGen id.Generator,
	logger *logging.Logger,
	maxWorkers int,
) *DispatchService {
	if logger == nil {
		logger = logging.Default()
	}
	if jobs == nil {
		jobs = noopJobQueue{}
	}

	return &DispatchService{
		batches:    batches,
		contacts:   contacts,
		events:     events,
		mailer:     mailer,
		jobs:       jobs,
		idGen:      idGen,
		logger:     logger,
		maxWorkers: maxWorkers,
		now:        time.Now,
	}
}

// CreateAndDispatch persists a batch with one recipient row per resolved
// contact, then fans delivery out to every recipient. A batch scheduled for
// the future is persisted PENDING and left to the dispatch scheduler.
func (s *DispatchService) CreateAndDispatch(ctx context.Context, input CreateBatchInput) (DispatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.CreateAndDispatch")
	defer span.End()

	if s.batches == nil || s.contacts == nil || s.events == nil || s.mailer == nil || s.idGen == nil {
		return DispatchResult{}, fmt.Errorf("%w: dispatch service is not fully configured", ErrDependencyUnavailable)
	}

	input.EventID = strings.TrimSpace(input.EventID)
	input.Subject = strings.TrimSpace(input.Subject)
	if input.EventID == "" {
		return DispatchResult{}, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	if input.Subject == "" {
		return DispatchResult{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Body) == "" {
		return DispatchResult{}, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}

	contactIDs := normalizeContactIDs(input.ContactIDs)
	if len(contactIDs) == 0 {
		return DispatchResult{}, fmt.Errorf("%w: at least one contact id is required", ErrInvalidInput)
	}

	evt, exists, err := s.events.GetByID(ctx, input.EventID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("get event: %w", err)
	}
	if !exists {
		return DispatchResult{}, fmt.Errorf("%w: event=%s", ErrNotFound, input.EventID)
	}

	resolved, err := s.contacts.ResolveByIDs(ctx, contactIDs)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("resolve contacts: %w", err)
	}
	if len(resolved) == 0 {
		return DispatchResult{}, fmt.Errorf("%w: recipients: no active contacts for the requested ids", ErrNotFound)
	}

	batchID, err := s.idGen.NewID()
	if err != nil {
		return DispatchResult{}, fmt.Errorf("generate batch id: %w", err)
	}

	createdAt := s.now().UTC()
	batch := convocation.Batch{
		ID:          batchID,
		EventID:     input.EventID,
		Subject:     input.Subject,
		Body:        input.Body,
		Status:      convocation.BatchPending,
		ScheduledAt: input.ScheduledAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := batch.Validate(); err != nil {
		return DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	recipients := make([]convocation.Recipient, 0, len(resolved))
	for _, c := range resolved {
		recipientID, idErr := s.idGen.NewID()
		if idErr != nil {
			return DispatchResult{}, fmt.Errorf("generate recipient id: %w", idErr)
		}
		recipients = append(recipients, convocation.Recipient{
			ID:        recipientID,
			BatchID:   batchID,
			ContactID: c.ID,
			Email:     c.Email,
			Name:      c.Name,
			Status:    convocation.RecipientPending,
			UpdatedAt: createdAt,
		})
	}

	if err := s.batches.CreateBatchWithRecipients(ctx, batch, recipients); err != nil {
		return DispatchResult{}, fmt.Errorf("create batch with recipients: %w", err)
	}

	if input.ScheduledAt != nil && input.ScheduledAt.After(s.now()) {
		// Best effort: the scheduler poll loop picks the batch up anyway if
		// the queue is down or unconfigured.
		delay := input.ScheduledAt.Sub(s.now())
		if err := s.jobs.Enqueue(ctx,
			"/v1/internal/jobs/convocations/"+batchID+"/dispatch",
			map[string]any{"batch_id": batchID},
			delay,
			"convocation-dispatch-"+batchID,
		); err != nil {
			s.logger.WarnContext(ctx, "enqueue deferred dispatch failed",
				"batch_id", batchID,
				"error", err,
			)
		}
		s.logger.InfoContext(ctx, "convocation batch scheduled",
			"batch_id", batchID,
			"event_id", input.EventID,
			"recipient_count", len(recipients),
			"scheduled_at", input.ScheduledAt.UTC(),
		)
		return DispatchResult{
			BatchID:        batchID,
			BatchStatus:    convocation.BatchPending,
			Event:          newEventSummary(evt),
			RecipientCount: len(recipients),
			Scheduled:      true,
		}, nil
	}

	return s.dispatch(ctx, batch, evt, recipients, input.MaxWorkers)
}

// DispatchBatch delivers a previously created pending batch. It backs both
// the internal job endpoint and the scheduler.
func (s *DispatchService) DispatchBatch(ctx context.Context, batchID string) (DispatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.DispatchBatch")
	defer span.End()

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return DispatchResult{}, fmt.Errorf("%w: batch id is required", ErrInvalidInput)
	}

	batch, exists, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("get batch: %w", err)
	}
	if !exists {
		return DispatchResult{}, fmt.Errorf("%w: batch=%s", ErrNotFound, batchID)
	}
	if batch.Status != convocation.BatchPending {
		return DispatchResult{}, fmt.Errorf("%w: batch=%s is %s, only PENDING batches can be dispatched", ErrInvalidInput, batchID, batch.Status)
	}

	evt, exists, err := s.events.GetByID(ctx, batch.EventID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("get event: %w", err)
	}
	if !exists {
		return DispatchResult{}, fmt.Errorf("%w: event=%s", ErrNotFound, batch.EventID)
	}

	recipients, err := s.batches.ListRecipients(ctx, batchID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("list recipients: %w", err)
	}

	pending := make([]convocation.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.Status == convocation.RecipientPending {
			pending = append(pending, r)
		}
	}

	return s.dispatch(ctx, batch, evt, pending, 0)
}

// CancelBatch cancels a batch that has not been dispatched yet.
func (s *DispatchService) CancelBatch(ctx context.Context, batchID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.CancelBatch")
	defer span.End()

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return fmt.Errorf("%w: batch id is required", ErrInvalidInput)
	}

	batch, exists, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: batch=%s", ErrNotFound, batchID)
	}
	if batch.Status != convocation.BatchPending {
		return fmt.Errorf("%w: batch=%s is %s, only PENDING batches can be cancelled", ErrInvalidInput, batchID, batch.Status)
	}

	if err := s.batches.UpdateBatchStatus(ctx, batchID, convocation.BatchCancelled, "", nil); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}

	s.logger.InfoContext(ctx, "convocation batch cancelled", "batch_id", batchID)
	return nil
}

// RecordEngagement applies an OPENED or REPLIED signal from the mail
// provider webhook. Signals are accepted from any non-ERROR state; a
// signal for an equal-or-earlier rung of the ladder is an idempotent
// no-op, since webhook providers redeliver and reorder events.
func (s *DispatchService) RecordEngagement(ctx context.Context, batchID, contactID string, status convocation.RecipientStatus) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.RecordEngagement")
	defer span.End()

	batchID = strings.TrimSpace(batchID)
	contactID = strings.TrimSpace(contactID)
	if batchID == "" || contactID == "" {
		return fmt.Errorf("%w: batch id and contact id are required", ErrInvalidInput)
	}
	if status != convocation.RecipientOpened && status != convocation.RecipientReplied {
		return fmt.Errorf("%w: engagement status must be OPENED or REPLIED, got %s", ErrInvalidInput, status)
	}

	recipient, exists, err := s.batches.GetRecipientByContact(ctx, batchID, contactID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: recipient batch=%s contact=%s", ErrNotFound, batchID, contactID)
	}

	if recipient.Status == convocation.RecipientError {
		return fmt.Errorf("%w: recipient batch=%s contact=%s is ERROR and cannot engage", ErrInvalidInput, batchID, contactID)
	}
	if !convocation.CanAdvance(recipient.Status, status) {
		// Already at an equal-or-later rung: duplicate or out-of-order
		// webhook delivery, acknowledged without a write.
		s.logger.InfoContext(ctx, "recipient engagement already recorded",
			"batch_id", batchID,
			"contact_id", contactID,
			"status", string(status),
			"current_status", string(recipient.Status),
		)
		return nil
	}

	if err := s.batches.UpdateRecipientStatus(ctx, recipient.ID, status, "", s.now().UTC()); err != nil {
		return fmt.Errorf("update recipient status: %w", err)
	}

	s.logger.InfoContext(ctx, "recipient engagement recorded",
		"batch_id", batchID,
		"contact_id", contactID,
		"status", string(status),
	)
	return nil
}

func (s *DispatchService) dispatch(
	ctx context.Context,
	batch convocation.Batch,
	evt event.Event,
	recipients []convocation.Recipient,
	maxWorkers int,
) (DispatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.dispatch")
	defer span.End()

	if maxWorkers <= 0 {
		maxWorkers = s.maxWorkers
	}
	workerCount := normalizeDispatchWorkerCount(maxWorkers, len(recipients))

	result := DispatchResult{
		BatchID:        batch.ID,
		Event:          newEventSummary(evt),
		RecipientCount: len(recipients),
		WorkerCount:    workerCount,
		Recipients:     make([]RecipientResult, 0, len(recipients)),
	}
	if len(recipients) == 0 {
		result.BatchStatus = convocation.BatchSendFailed
		result.ErrorSummary = "no pending recipients to dispatch"
		sentAt := s.now().UTC()
		if err := s.batches.UpdateBatchStatus(ctx, batch.ID, convocation.BatchSendFailed, result.ErrorSummary, &sentAt); err != nil {
			return DispatchResult{}, fmt.Errorf("update batch status: %w", err)
		}
		return result, nil
	}

	results := make(chan dispatchTaskResult, len(recipients))

	var sentCount atomic.Int32
	var failedCount atomic.Int32

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, recipient := range recipients {
		recipient := recipient
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			start := time.Now()
			row, persistErr := s.deliverToRecipient(ctx, batch, recipient)
			row.DurationMs = time.Since(start).Milliseconds()

			switch row.Status {
			case dispatchStatusSent:
				sentCount.Add(1)
			case dispatchStatusError:
				failedCount.Add(1)
			}

			results <- dispatchTaskResult{row: row, persistErr: persistErr}
		}); err != nil {
			workers.Done()
			return DispatchResult{}, fmt.Errorf("submit delivery to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	var persistErr error
	for item := range results {
		result.Recipients = append(result.Recipients, item.row)
		if item.persistErr != nil && persistErr == nil {
			persistErr = item.persistErr
		}
	}
	if persistErr != nil {
		return DispatchResult{}, persistErr
	}
	if err := ctx.Err(); err != nil {
		// Cancelled mid fan-out. Unattempted recipients are still PENDING
		// and the batch stays PENDING, so a later dispatch finishes the job.
		return DispatchResult{}, fmt.Errorf("dispatch interrupted: %w", err)
	}

	sort.SliceStable(result.Recipients, func(i, j int) bool {
		return result.Recipients[i].ContactID < result.Recipients[j].ContactID
	})

	result.SentCount = int(sentCount.Load())
	result.FailedCount = int(failedCount.Load())
	result.BatchStatus = convocation.BatchSent
	if result.SentCount == 0 {
		result.BatchStatus = convocation.BatchSendFailed
	}
	result.ErrorSummary = summarizeDeliveryErrors(result.Recipients)

	sentAt := s.now().UTC()
	if err := s.batches.UpdateBatchStatus(ctx, batch.ID, result.BatchStatus, result.ErrorSummary, &sentAt); err != nil {
		return DispatchResult{}, fmt.Errorf("update batch status: %w", err)
	}

	s.logger.InfoContext(ctx, "convocation batch dispatched",
		"batch_id", batch.ID,
		"batch_status", string(result.BatchStatus),
		"recipient_count", result.RecipientCount,
		"sent_count", result.SentCount,
		"failed_count", result.FailedCount,
		"worker_count", result.WorkerCount,
	)
	return result, nil
}

// deliverToRecipient sends one mail and records the outcome on the recipient
// row. A mailer failure is recovered into an ERROR row; a store failure is
// returned and aborts the batch.
func (s *DispatchService) deliverToRecipient(
	ctx context.Context,
	batch convocation.Batch,
	recipient convocation.Recipient,
) (RecipientResult, error) {
	row := RecipientResult{
		ContactID: recipient.ContactID,
		Email:     recipient.Email,
	}

	sendErr := s.mailer.Send(ctx, MailMessage{
		ToEmail:     recipient.Email,
		ToName:      recipient.Name,
		Subject:     batch.Subject,
		Body:        batch.Body,
		BatchID:     batch.ID,
		RecipientID: recipient.ID,
	})
	if sendErr != nil {
		if ctx.Err() != nil || errors.Is(sendErr, context.Canceled) {
			// The call is being torn down, not the recipient failing. Leave
			// the row PENDING so a later dispatch retries it.
			row.Status = dispatchStatusPending
			return row, nil
		}

		sendErr = fmt.Errorf("%w: send to %s: %v", ErrDeliveryFailed, recipient.Email, sendErr)
		row.Status = dispatchStatusError
		row.Message = sendErr.Error()

		s.logger.WarnContext(ctx, "recipient delivery failed",
			"batch_id", batch.ID,
			"contact_id", recipient.ContactID,
			"error", sendErr,
		)

		if err := s.batches.UpdateRecipientStatus(ctx, recipient.ID, convocation.RecipientError, sendErr.Error(), s.now().UTC()); err != nil {
			return row, fmt.Errorf("update recipient status: %w", err)
		}
		return row, nil
	}

	row.Status = dispatchStatusSent
	if err := s.batches.UpdateRecipientStatus(ctx, recipient.ID, convocation.RecipientSent, "", s.now().UTC()); err != nil {
		return row, fmt.Errorf("update recipient status: %w", err)
	}
	return row, nil
}

// summarizeDeliveryErrors joins every failure reason so the batch row keeps
// the full picture of what went wrong, one entry per failed recipient.
func summarizeDeliveryErrors(rows []RecipientResult) string {
	failed := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Status != dispatchStatusError {
			continue
		}
		failed = append(failed, row.Message)
	}

	return strings.Join(failed, "; ")
}

func normalizeContactIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, exists := seen[item]; exists {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func normalizeDispatchWorkerCount(value int, taskCount int) int {
	if taskCount <= 0 {
		return 1
	}
	if value <= 0 {
		value = 4
	}
	if value > 16 {
		value = 16
	}
	if value > taskCount {
		value = taskCount
	}
	return value
}
