package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/event"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListEvents")
	defer span.End()

	events, err := h.directoryService.ListEvents(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list events failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]eventDTO, 0, len(events))
	for _, e := range events {
		items = append(items, eventToDTO(ctx, e))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetEvent")
	defer span.End()

	eventID := strings.TrimSpace(r.PathValue("eventID"))
	item, err := h.directoryService.GetEvent(ctx, eventID)
	if err != nil {
		h.logger.WarnContext(ctx, "get event failed", "event_id", eventID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, eventToDTO(ctx, item))
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListContacts")
	defer span.End()

	contacts, err := h.directoryService.ListContacts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list contacts failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]contactDTO, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, contactToDTO(ctx, c))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

type eventDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Venue    string `json:"venue"`
	StartsAt string `json:"starts_at"`
	Capacity int    `json:"capacity"`
}

type contactDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status"`
}

func eventToDTO(ctx context.Context, v event.Event) eventDTO {
	ctx, span := startSpan(ctx, "httpapi.eventToDTO")
	defer span.End()

	return eventDTO{
		ID:       v.ID,
		Name:     v.Name,
		Venue:    v.Venue,
		StartsAt: v.StartsAt.UTC().Format(time.RFC3339),
		Capacity: v.Capacity,
	}
}

func contactToDTO(ctx context.Context, v contact.Contact) contactDTO {
	ctx, span := startSpan(ctx, "httpapi.contactToDTO")
	defer span.End()

	return contactDTO{
		ID:     v.ID,
		Name:   v.Name,
		Email:  v.Email,
		Phone:  v.Phone,
		Status: string(v.Status),
	}
}
