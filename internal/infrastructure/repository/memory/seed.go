package memory

import (
	"time"

	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/event"
)

const (
	EventIDSpringGala    = "evt-spring-gala-2026"
	EventIDProductSummit = "evt-product-summit-2026"
)

func SeedEvents() []event.Event {
	return []event.Event{
		{
			ID:       EventIDSpringGala,
			Name:     "Spring Gala 2026",
			Venue:    "Grand Ballroom, Hotel Mulia",
			StartsAt: time.Date(2026, 4, 18, 19, 0, 0, 0, time.UTC),
			Capacity: 350,
		},
		{
			ID:       EventIDProductSummit,
			Name:     "Product Summit 2026",
			Venue:    "Hall B, Jakarta Convention Center",
			StartsAt: time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC),
			Capacity: 1200,
		},
	}
}

func SeedContacts() []contact.Contact {
	return []contact.Contact{
		{ID: "ct-001", Name: "Ayu Lestari", Email: "ayu.lestari@example.com", Phone: "+62-811-1000-001", Status: contact.StatusActive},
		{ID: "ct-002", Name: "Bima Nugroho", Email: "bima.nugroho@example.com", Phone: "+62-811-1000-002", Status: contact.StatusActive},
		{ID: "ct-003", Name: "Citra Dewi", Email: "citra.dewi@example.com", Status: contact.StatusActive},
		{ID: "ct-004", Name: "Dimas Prasetyo", Email: "dimas.prasetyo@example.com", Status: contact.StatusActive},
		{ID: "ct-005", Name: "Eka Santoso", Email: "eka.santoso@example.com", Phone: "+62-811-1000-005", Status: contact.StatusActive},
		{ID: "ct-006", Name: "Farah Maharani", Email: "farah.maharani@example.com", Status: contact.StatusActive},
		// Left the organization; stays in the directory but is not deliverable.
		{ID: "ct-007", Name: "Gilang Saputra", Email: "gilang.saputra@example.com", Status: contact.StatusInactive},
	}
}
