package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stagepass/backoffice/internal/domain/convocation"
)

// ConvocationRepository keeps batches and recipients in process memory.
// It mirrors the transactional guarantees of the postgres implementation
// closely enough for dev mode and service tests.
type ConvocationRepository struct {
	mu         sync.RWMutex
	batches    map[string]convocation.Batch
	recipients map[string]convocation.Recipient
	byBatch    map[string][]string
}

func NewConvocationRepository() *ConvocationRepository {
	return &ConvocationRepository{
		batches:    make(map[string]convocation.Batch),
		recipients: make(map[string]convocation.Recipient),
		byBatch:    make(map[string][]string),
	}
}

func (r *ConvocationRepository) CreateBatchWithRecipients(_ context.Context, batch convocation.Batch, recipients []convocation.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[batch.ID]; exists {
		return fmt.Errorf("batch=%s already exists", batch.ID)
	}

	r.batches[batch.ID] = batch
	ids := make([]string, 0, len(recipients))
	for _, item := range recipients {
		r.recipients[item.ID] = item
		ids = append(ids, item.ID)
	}
	r.byBatch[batch.ID] = ids

	return nil
}

func (r *ConvocationRepository) GetBatch(_ context.Context, batchID string) (convocation.Batch, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[batchID]
	if !ok {
		return convocation.Batch{}, false, nil
	}

	return b, true, nil
}

func (r *ConvocationRepository) ListRecipients(_ context.Context, batchID string) ([]convocation.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]convocation.Recipient, 0, len(r.byBatch[batchID]))
	for _, id := range r.byBatch[batchID] {
		out = append(out, r.recipients[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ContactID < out[j].ContactID
	})

	return out, nil
}

func (r *ConvocationRepository) GetRecipientByContact(_ context.Context, batchID, contactID string) (convocation.Recipient, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.byBatch[batchID] {
		item := r.recipients[id]
		if item.ContactID == contactID {
			return item, true, nil
		}
	}

	return convocation.Recipient{}, false, nil
}

func (r *ConvocationRepository) UpdateRecipientStatus(_ context.Context, recipientID string, status convocation.RecipientStatus, errorMessage string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.recipients[recipientID]
	if !ok {
		return fmt.Errorf("recipient=%s not found", recipientID)
	}
	if !convocation.CanAdvance(item.Status, status) {
		return fmt.Errorf("recipient=%s: transition to %s rejected", recipientID, status)
	}

	item.Status = status
	item.ErrorMessage = errorMessage
	item.UpdatedAt = at
	if status == convocation.RecipientSent && item.SentAt == nil {
		sentAt := at
		item.SentAt = &sentAt
	}
	r.recipients[recipientID] = item

	return nil
}

func (r *ConvocationRepository) UpdateBatchStatus(_ context.Context, batchID string, status convocation.BatchStatus, errorSummary string, sentAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[batchID]
	if !ok {
		return fmt.Errorf("batch=%s not found", batchID)
	}

	b.Status = status
	b.ErrorSummary = errorSummary
	if sentAt != nil {
		stamp := sentAt.UTC()
		b.SentAt = &stamp
	}
	b.UpdatedAt = time.Now().UTC()
	r.batches[batchID] = b

	return nil
}

func (r *ConvocationRepository) FindBatches(_ context.Context, filter convocation.Filter) ([]convocation.Batch, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]convocation.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		if !batchMatchesFilter(b, filter) {
			continue
		}
		matched = append(matched, b)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []convocation.Batch{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (r *ConvocationRepository) ListDue(_ context.Context, now time.Time, limit int) ([]convocation.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]convocation.Batch, 0)
	for _, b := range r.batches {
		if b.Status != convocation.BatchPending || b.ScheduledAt == nil {
			continue
		}
		if b.ScheduledAt.After(now) {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(*out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out, nil
}

func batchMatchesFilter(b convocation.Batch, filter convocation.Filter) bool {
	if filter.EventID != "" && b.EventID != filter.EventID {
		return false
	}
	if filter.Status != "" && b.Status != filter.Status {
		return false
	}
	if filter.CreatedFrom != nil && b.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && b.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchText != "" {
		needle := strings.ToLower(filter.SearchText)
		if !strings.Contains(strings.ToLower(b.Subject), needle) &&
			!strings.Contains(strings.ToLower(b.Body), needle) {
			return false
		}
	}
	return true
}
