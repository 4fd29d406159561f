package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stagepass/backoffice/internal/domain/convocation"
	"github.com/stagepass/backoffice/internal/domain/event"
)

const (
	historyDefaultPageSize = 20
	historyMaxPageSize     = 100
)

type HistoryQuery struct {
	EventID     string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SearchText  string
	Page        int
	PageSize    int
}

// BatchView is one history row: the batch expanded with its event and the
// full recipient list, so the backoffice list view renders in one call.
type BatchView struct {
	Batch      convocation.Batch
	Event      EventSummary
	Recipients []convocation.Recipient
}

type HistoryPage struct {
	Items       []BatchView
	Page        int
	PageSize    int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

type BatchDetail struct {
	Batch      convocation.Batch
	Event      EventSummary
	Recipients []convocation.Recipient
}

// HistoryService is the read side over dispatched convocation batches.
type HistoryService struct {
	batches convocation.Repository
	events  event.Repository
}

func NewHistoryService(batches convocation.Repository, events event.Repository) *HistoryService {
	return &HistoryService{batches: batches, events: events}
}

// ListBatches pages through batch history, newest first with batch ID as the
// tie-break. Page parameters are clamped rather than rejected.
func (s *HistoryService) ListBatches(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.HistoryService.ListBatches")
	defer span.End()

	page, pageSize := clampHistoryPage(query.Page, query.PageSize)

	filter := convocation.Filter{
		EventID:     strings.TrimSpace(query.EventID),
		SearchText:  strings.TrimSpace(query.SearchText),
		CreatedFrom: query.CreatedFrom,
		CreatedTo:   query.CreatedTo,
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	}

	if status := strings.TrimSpace(query.Status); status != "" {
		batchStatus := convocation.BatchStatus(strings.ToUpper(status))
		if !convocation.ValidBatchStatus(batchStatus) {
			return HistoryPage{}, fmt.Errorf("%w: unknown batch status %q", ErrInvalidInput, status)
		}
		filter.Status = batchStatus
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return HistoryPage{}, fmt.Errorf("%w: created_to precedes created_from", ErrInvalidInput)
	}

	batches, total, err := s.batches.FindBatches(ctx, filter)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("find batches: %w", err)
	}

	items := make([]BatchView, 0, len(batches))
	eventsByID := make(map[string]EventSummary)
	for _, b := range batches {
		summary, ok := eventsByID[b.EventID]
		if !ok {
			summary, err = s.eventSummary(ctx, b.EventID)
			if err != nil {
				return HistoryPage{}, err
			}
			eventsByID[b.EventID] = summary
		}

		recipients, err := s.batches.ListRecipients(ctx, b.ID)
		if err != nil {
			return HistoryPage{}, fmt.Errorf("list recipients: %w", err)
		}

		items = append(items, BatchView{Batch: b, Event: summary, Recipients: recipients})
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return HistoryPage{
		Items:       items,
		Page:        page,
		PageSize:    pageSize,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}

// GetBatch returns one batch with its event and all of its recipient rows.
func (s *HistoryService) GetBatch(ctx context.Context, batchID string) (BatchDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.HistoryService.GetBatch")
	defer span.End()

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return BatchDetail{}, fmt.Errorf("%w: batch id is required", ErrInvalidInput)
	}

	batch, exists, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("get batch: %w", err)
	}
	if !exists {
		return BatchDetail{}, fmt.Errorf("%w: batch=%s", ErrNotFound, batchID)
	}

	summary, err := s.eventSummary(ctx, batch.EventID)
	if err != nil {
		return BatchDetail{}, err
	}

	recipients, err := s.batches.ListRecipients(ctx, batchID)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("list recipients: %w", err)
	}

	return BatchDetail{
		Batch:      batch,
		Event:      summary,
		Recipients: recipients,
	}, nil
}

// eventSummary resolves a batch's event. A dangling reference degrades to
// an ID-only summary instead of failing the whole history read.
func (s *HistoryService) eventSummary(ctx context.Context, eventID string) (EventSummary, error) {
	evt, exists, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return EventSummary{}, fmt.Errorf("get event: %w", err)
	}
	if !exists {
		return EventSummary{ID: eventID}, nil
	}

	return newEventSummary(evt), nil
}

func clampHistoryPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = historyDefaultPageSize
	}
	if pageSize > historyMaxPageSize {
		pageSize = historyMaxPageSize
	}
	return page, pageSize
}
