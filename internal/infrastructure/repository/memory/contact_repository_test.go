package memory

import (
	"testing"

	"github.com/stagepass/backoffice/internal/domain/contact"
)

func TestContactRepository_ResolveByIDs(t *testing.T) {
	repo := NewContactRepository([]contact.Contact{
		{ID: "ct-1", Name: "Ayu", Email: "ayu@example.com", Status: contact.StatusActive},
		{ID: "ct-2", Name: "Bima", Email: "bima@example.com", Status: contact.StatusInactive},
		{ID: "ct-3", Name: "Citra", Email: "citra@example.com", Status: contact.StatusActive},
	})

	resolved, err := repo.ResolveByIDs(t.Context(), []string{"ct-1", "ct-2", "ct-3", "ct-missing"})
	if err != nil {
		t.Fatalf("ResolveByIDs returned error: %v", err)
	}

	// Inactive and unknown IDs drop out; the remaining active contacts keep
	// the request order.
	if len(resolved) != 2 {
		t.Fatalf("got %d contacts, want 2: %+v", len(resolved), resolved)
	}
	if resolved[0].ID != "ct-1" || resolved[1].ID != "ct-3" {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	t.Run("directory still lists inactive contacts", func(t *testing.T) {
		all, err := repo.List(t.Context())
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("got %d contacts, want 3", len(all))
		}
	})
}
