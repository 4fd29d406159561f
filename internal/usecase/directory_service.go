package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/event"
)

// DirectoryService serves the event and contact pickers of the backoffice UI.
type DirectoryService struct {
	events   event.Repository
	contacts contact.Repository
}

func NewDirectoryService(events event.Repository, contacts contact.Repository) *DirectoryService {
	return &DirectoryService{
		events:   events,
		contacts: contacts,
	}
}

func (s *DirectoryService) ListEvents(ctx context.Context) ([]event.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return events, nil
}

func (s *DirectoryService) GetEvent(ctx context.Context, eventID string) (event.Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return event.Event{}, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	item, exists, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return event.Event{}, fmt.Errorf("get event: %w", err)
	}
	if !exists {
		return event.Event{}, fmt.Errorf("%w: event=%s", ErrNotFound, eventID)
	}

	return item, nil
}

func (s *DirectoryService) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	contacts, err := s.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return contacts, nil
}
