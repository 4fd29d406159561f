package cache

import (
	"context"
	"sort"
	"strings"

	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/event"
	basecache "github.com/stagepass/backoffice/internal/platform/cache"
)

type EventRepository struct {
	next  event.Repository
	cache *basecache.Store
}

func NewEventRepository(next event.Repository, cache *basecache.Store) *EventRepository {
	return &EventRepository{next: next, cache: cache}
}

func (r *EventRepository) List(ctx context.Context) ([]event.Event, error) {
	v, err := r.cache.GetOrLoad(ctx, "event:list", func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return append([]event.Event(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]event.Event)
	return append([]event.Event(nil), items...), nil
}

func (r *EventRepository) GetByID(ctx context.Context, eventID string) (event.Event, bool, error) {
	key := "event:id:" + eventID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return cachedEventByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return event.Event{}, false, err
	}

	cached, _ := v.(cachedEventByID)
	return cached.value, cached.exists, nil
}

type cachedEventByID struct {
	value  event.Event
	exists bool
}

type ContactRepository struct {
	next  contact.Repository
	cache *basecache.Store
}

func NewContactRepository(next contact.Repository, cache *basecache.Store) *ContactRepository {
	return &ContactRepository{next: next, cache: cache}
}

func (r *ContactRepository) List(ctx context.Context) ([]contact.Contact, error) {
	v, err := r.cache.GetOrLoad(ctx, "contact:list", func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return append([]contact.Contact(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contact.Contact)
	return append([]contact.Contact(nil), items...), nil
}

func (r *ContactRepository) GetByID(ctx context.Context, contactID string) (contact.Contact, bool, error) {
	key := "contact:id:" + contactID
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, contactID)
		if err != nil {
			return nil, err
		}
		return cachedContactByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return contact.Contact{}, false, err
	}

	cached, _ := v.(cachedContactByID)
	return cached.value, cached.exists, nil
}

func (r *ContactRepository) ResolveByIDs(ctx context.Context, contactIDs []string) ([]contact.Contact, error) {
	ids := append([]string(nil), contactIDs...)
	sort.Strings(ids)
	key := "contact:ids:" + strings.Join(ids, ",")
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.ResolveByIDs(ctx, contactIDs)
		if err != nil {
			return nil, err
		}
		return append([]contact.Contact(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contact.Contact)
	return append([]contact.Contact(nil), items...), nil
}

type cachedContactByID struct {
	value  contact.Contact
	exists bool
}
