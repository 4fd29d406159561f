package memory

import (
	"context"
	"sync"

	"github.com/stagepass/backoffice/internal/domain/contact"
)

type ContactRepository struct {
	mu     sync.RWMutex
	items  map[string]contact.Contact
	orders []string
}

func NewContactRepository(contacts []contact.Contact) *ContactRepository {
	items := make(map[string]contact.Contact, len(contacts))
	orders := make([]string, 0, len(contacts))

	for _, c := range contacts {
		items[c.ID] = c
		orders = append(orders, c.ID)
	}

	return &ContactRepository{
		items:  items,
		orders: orders,
	}
}

func (r *ContactRepository) List(_ context.Context) ([]contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contact.Contact, 0, len(r.orders))
	for _, id := range r.orders {
		out = append(out, r.items[id])
	}

	return out, nil
}

func (r *ContactRepository) GetByID(_ context.Context, contactID string) (contact.Contact, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[contactID]
	if !ok {
		return contact.Contact{}, false, nil
	}

	return c, true, nil
}

func (r *ContactRepository) ResolveByIDs(_ context.Context, contactIDs []string) ([]contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contact.Contact, 0, len(contactIDs))
	for _, id := range contactIDs {
		c, ok := r.items[id]
		if !ok || !c.Active() {
			continue
		}
		out = append(out, c)
	}

	return out, nil
}
