package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stagepass/backoffice/internal/domain/convocation"
	"github.com/stagepass/backoffice/internal/usecase"
)

type createConvocationRequest struct {
	EventID     string   `json:"event_id" validate:"required"`
	Subject     string   `json:"subject" validate:"required,max=200"`
	Body        string   `json:"body" validate:"required"`
	ContactIDs  []string `json:"contact_ids" validate:"required,min=1,dive,required"`
	ScheduledAt string   `json:"scheduled_at" validate:"omitempty"`
	MaxWorkers  int      `json:"max_workers" validate:"omitempty,gte=0,lte=64"`
}

type mailEngagementRequest struct {
	BatchID   string `json:"batch_id" validate:"required"`
	ContactID string `json:"contact_id" validate:"required"`
	Event     string `json:"event" validate:"required"`
}

func (h *Handler) CreateConvocationBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateConvocationBatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req createConvocationRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var scheduledAt *time.Time
	if raw := strings.TrimSpace(req.ScheduledAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: scheduled_at must be RFC3339: %v", usecase.ErrInvalidInput, err))
			return
		}
		scheduledAt = &parsed
	}

	result, err := h.dispatchService.CreateAndDispatch(ctx, usecase.CreateBatchInput{
		EventID:     req.EventID,
		Subject:     req.Subject,
		Body:        req.Body,
		ContactIDs:  req.ContactIDs,
		ScheduledAt: scheduledAt,
		MaxWorkers:  req.MaxWorkers,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create convocation batch failed",
			"user_id", principal.UserID,
			"event_id", req.EventID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.Scheduled {
		status = http.StatusAccepted
	}
	writeSuccess(ctx, w, status, result)
}

func (h *Handler) ListConvocationBatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListConvocationBatches")
	defer span.End()

	query := usecase.HistoryQuery{
		EventID:    strings.TrimSpace(r.URL.Query().Get("event_id")),
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
		SearchText: strings.TrimSpace(r.URL.Query().Get("q")),
	}

	page, err := parsePageParam(ctx, r, "page")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	pageSize, err := parsePageParam(ctx, r, "page_size")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	query.Page = page
	query.PageSize = pageSize

	createdFrom, err := parseTimeParam(ctx, r, "created_from")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	createdTo, err := parseTimeParam(ctx, r, "created_to")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	query.CreatedFrom = createdFrom
	query.CreatedTo = createdTo

	result, err := h.historyService.ListBatches(ctx, query)
	if err != nil {
		h.logger.WarnContext(ctx, "list convocation batches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]batchListItemDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, batchListItemDTO{
			batchDTO:   batchToDTO(ctx, item.Batch),
			Event:      eventSummaryToDTO(item.Event),
			Recipients: recipientsToDTO(item.Recipients),
		})
	}

	writeSuccess(ctx, w, http.StatusOK, historyPageDTO{
		Items:       items,
		Page:        result.Page,
		PageSize:    result.PageSize,
		TotalCount:  result.TotalCount,
		TotalPages:  result.TotalPages,
		HasNext:     result.HasNext,
		HasPrevious: result.HasPrevious,
	})
}

func (h *Handler) GetConvocationBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetConvocationBatch")
	defer span.End()

	batchID := strings.TrimSpace(r.PathValue("batchID"))
	detail, err := h.historyService.GetBatch(ctx, batchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get convocation batch failed", "batch_id", batchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, batchDetailToDTO(ctx, detail))
}

func (h *Handler) CancelConvocationBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelConvocationBatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	batchID := strings.TrimSpace(r.PathValue("batchID"))
	if err := h.dispatchService.CancelBatch(ctx, batchID); err != nil {
		h.logger.WarnContext(ctx, "cancel convocation batch failed",
			"user_id", principal.UserID,
			"batch_id", batchID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{
		"batch_id": batchID,
		"status":   string(convocation.BatchCancelled),
	})
}

// RecordMailEngagement applies an open or reply signal reported by the mail
// provider event webhook.
func (h *Handler) RecordMailEngagement(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RecordMailEngagement")
	defer span.End()

	var req mailEngagementRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	status := convocation.RecipientStatus(strings.ToUpper(strings.TrimSpace(req.Event)))
	if err := h.dispatchService.RecordEngagement(ctx, req.BatchID, req.ContactID, status); err != nil {
		h.logger.WarnContext(ctx, "record mail engagement failed",
			"batch_id", req.BatchID,
			"contact_id", req.ContactID,
			"event", req.Event,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{
		"batch_id":   req.BatchID,
		"contact_id": req.ContactID,
		"status":     string(status),
	})
}

type historyPageDTO struct {
	Items       []batchListItemDTO `json:"items"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	TotalCount  int                `json:"total_count"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
}

type batchDTO struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	Subject      string  `json:"subject"`
	Status       string  `json:"status"`
	ErrorSummary string  `json:"error_summary,omitempty"`
	ScheduledAt  *string `json:"scheduled_at,omitempty"`
	SentAt       *string `json:"sent_at,omitempty"`
	CreatedAtUTC string  `json:"created_at_utc"`
	UpdatedAtUTC string  `json:"updated_at_utc"`
}

type batchListItemDTO struct {
	batchDTO
	Event      eventSummaryDTO `json:"event"`
	Recipients []recipientDTO  `json:"recipients"`
}

type eventSummaryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Venue    string `json:"venue"`
	StartsAt string `json:"starts_at"`
}

type batchDetailDTO struct {
	batchDTO
	Body       string          `json:"body"`
	Event      eventSummaryDTO `json:"event"`
	Recipients []recipientDTO  `json:"recipients"`
}

type recipientDTO struct {
	ContactID    string  `json:"contact_id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	SentAt       *string `json:"sent_at,omitempty"`
	UpdatedAtUTC string  `json:"updated_at_utc"`
}

func batchToDTO(ctx context.Context, v convocation.Batch) batchDTO {
	ctx, span := startSpan(ctx, "httpapi.batchToDTO")
	defer span.End()

	return batchDTO{
		ID:           v.ID,
		EventID:      v.EventID,
		Subject:      v.Subject,
		Status:       string(v.Status),
		ErrorSummary: v.ErrorSummary,
		ScheduledAt:  formatOptionalTime(v.ScheduledAt),
		SentAt:       formatOptionalTime(v.SentAt),
		CreatedAtUTC: v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAtUTC: v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func eventSummaryToDTO(v usecase.EventSummary) eventSummaryDTO {
	return eventSummaryDTO{
		ID:       v.ID,
		Name:     v.Name,
		Venue:    v.Venue,
		StartsAt: v.StartsAt.UTC().Format(time.RFC3339),
	}
}

func recipientsToDTO(rows []convocation.Recipient) []recipientDTO {
	out := make([]recipientDTO, 0, len(rows))
	for _, rec := range rows {
		out = append(out, recipientDTO{
			ContactID:    rec.ContactID,
			Email:        rec.Email,
			Name:         rec.Name,
			Status:       string(rec.Status),
			ErrorMessage: rec.ErrorMessage,
			SentAt:       formatOptionalTime(rec.SentAt),
			UpdatedAtUTC: rec.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	return out
}

func batchDetailToDTO(ctx context.Context, detail usecase.BatchDetail) batchDetailDTO {
	ctx, span := startSpan(ctx, "httpapi.batchDetailToDTO")
	defer span.End()

	return batchDetailDTO{
		batchDTO:   batchToDTO(ctx, detail.Batch),
		Body:       detail.Batch.Body,
		Event:      eventSummaryToDTO(detail.Event),
		Recipients: recipientsToDTO(detail.Recipients),
	}
}

func formatOptionalTime(v *time.Time) *string {
	if v == nil {
		return nil
	}
	formatted := v.UTC().Format(time.RFC3339)
	return &formatted
}

// parsePageParam only rejects values that are not integers at all.
// Out-of-range pages and sizes pass through and are clamped by the
// history service, never answered with an error.
func parsePageParam(ctx context.Context, r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

func parseTimeParam(ctx context.Context, r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, nil
	}
	return nil, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD", usecase.ErrInvalidInput, name)
}
