package memory

import (
	"testing"
	"time"

	"github.com/stagepass/backoffice/internal/domain/convocation"
)

func seedBatch(t *testing.T, repo *ConvocationRepository, batch convocation.Batch, recipients []convocation.Recipient) {
	t.Helper()
	if err := repo.CreateBatchWithRecipients(t.Context(), batch, recipients); err != nil {
		t.Fatalf("seed batch %s: %v", batch.ID, err)
	}
}

func TestConvocationRepository_CreateAndGet(t *testing.T) {
	repo := NewConvocationRepository()
	createdAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	batch := convocation.Batch{ID: "batch-1", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending, CreatedAt: createdAt}
	recipients := []convocation.Recipient{
		{ID: "rcp-2", BatchID: "batch-1", ContactID: "ct-002", Email: "b@example.com", Status: convocation.RecipientPending},
		{ID: "rcp-1", BatchID: "batch-1", ContactID: "ct-001", Email: "a@example.com", Status: convocation.RecipientPending},
	}
	seedBatch(t, repo, batch, recipients)

	if err := repo.CreateBatchWithRecipients(t.Context(), batch, nil); err == nil {
		t.Fatalf("duplicate batch id should be rejected")
	}

	got, exists, err := repo.GetBatch(t.Context(), "batch-1")
	if err != nil || !exists {
		t.Fatalf("GetBatch: exists=%v err=%v", exists, err)
	}
	if got.Subject != "s" {
		t.Fatalf("unexpected batch: %+v", got)
	}

	if _, exists, err := repo.GetBatch(t.Context(), "batch-missing"); err != nil || exists {
		t.Fatalf("missing batch: exists=%v err=%v", exists, err)
	}

	list, err := repo.ListRecipients(t.Context(), "batch-1")
	if err != nil {
		t.Fatalf("ListRecipients returned error: %v", err)
	}
	if len(list) != 2 || list[0].ContactID != "ct-001" || list[1].ContactID != "ct-002" {
		t.Fatalf("recipients should be ordered by contact id: %+v", list)
	}

	rcp, exists, err := repo.GetRecipientByContact(t.Context(), "batch-1", "ct-002")
	if err != nil || !exists {
		t.Fatalf("GetRecipientByContact: exists=%v err=%v", exists, err)
	}
	if rcp.ID != "rcp-2" {
		t.Fatalf("unexpected recipient: %+v", rcp)
	}
	if _, exists, _ := repo.GetRecipientByContact(t.Context(), "batch-1", "ct-999"); exists {
		t.Fatalf("unknown contact should not resolve")
	}
}

func TestConvocationRepository_UpdateRecipientStatus(t *testing.T) {
	repo := NewConvocationRepository()
	seedBatch(t, repo,
		convocation.Batch{ID: "batch-1", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending},
		[]convocation.Recipient{{ID: "rcp-1", BatchID: "batch-1", ContactID: "ct-001", Email: "a@example.com", Status: convocation.RecipientPending}},
	)

	sentAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.UpdateRecipientStatus(t.Context(), "rcp-1", convocation.RecipientSent, "", sentAt); err != nil {
		t.Fatalf("PENDING to SENT should be accepted: %v", err)
	}

	rcp, _, err := repo.GetRecipientByContact(t.Context(), "batch-1", "ct-001")
	if err != nil {
		t.Fatalf("GetRecipientByContact returned error: %v", err)
	}
	if rcp.Status != convocation.RecipientSent {
		t.Fatalf("status = %s, want SENT", rcp.Status)
	}
	if rcp.SentAt == nil || !rcp.SentAt.Equal(sentAt) {
		t.Fatalf("sent_at = %v, want %v", rcp.SentAt, sentAt)
	}

	// SentAt is recorded once, later moves keep the original stamp.
	if err := repo.UpdateRecipientStatus(t.Context(), "rcp-1", convocation.RecipientOpened, "", sentAt.Add(time.Hour)); err != nil {
		t.Fatalf("SENT to OPENED should be accepted: %v", err)
	}
	rcp, _, _ = repo.GetRecipientByContact(t.Context(), "batch-1", "ct-001")
	if !rcp.SentAt.Equal(sentAt) {
		t.Fatalf("sent_at moved to %v", rcp.SentAt)
	}

	if err := repo.UpdateRecipientStatus(t.Context(), "rcp-1", convocation.RecipientSent, "", sentAt); err == nil {
		t.Fatalf("backwards move should be rejected")
	}
	if err := repo.UpdateRecipientStatus(t.Context(), "rcp-1", convocation.RecipientError, "late bounce", sentAt); err == nil {
		t.Fatalf("ERROR after OPENED should be rejected")
	}
	if err := repo.UpdateRecipientStatus(t.Context(), "rcp-missing", convocation.RecipientSent, "", sentAt); err == nil {
		t.Fatalf("unknown recipient should be rejected")
	}
}

func TestConvocationRepository_UpdateBatchStatus(t *testing.T) {
	repo := NewConvocationRepository()
	seedBatch(t, repo,
		convocation.Batch{ID: "batch-1", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending},
		nil,
	)

	sentAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := repo.UpdateBatchStatus(t.Context(), "batch-1", convocation.BatchSent, "1 of 3 failed", &sentAt); err != nil {
		t.Fatalf("UpdateBatchStatus returned error: %v", err)
	}
	got, _, err := repo.GetBatch(t.Context(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch returned error: %v", err)
	}
	if got.Status != convocation.BatchSent || got.ErrorSummary != "1 of 3 failed" {
		t.Fatalf("unexpected batch: %+v", got)
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Fatalf("batch sent_at = %v, want %v", got.SentAt, sentAt)
	}

	if err := repo.UpdateBatchStatus(t.Context(), "batch-missing", convocation.BatchSent, "", nil); err == nil {
		t.Fatalf("unknown batch should be rejected")
	}
}

func TestConvocationRepository_UpdateBatchStatusWithoutSentAt(t *testing.T) {
	repo := NewConvocationRepository()
	future := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	seedBatch(t, repo,
		convocation.Batch{ID: "batch-1", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending, ScheduledAt: &future},
		nil,
	)

	if err := repo.UpdateBatchStatus(t.Context(), "batch-1", convocation.BatchCancelled, "", nil); err != nil {
		t.Fatalf("UpdateBatchStatus returned error: %v", err)
	}
	got, _, err := repo.GetBatch(t.Context(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch returned error: %v", err)
	}
	// A batch that never dispatched carries no sent stamp.
	if got.Status != convocation.BatchCancelled || got.SentAt != nil {
		t.Fatalf("unexpected batch: %+v", got)
	}
}

func TestConvocationRepository_FindBatches(t *testing.T) {
	repo := NewConvocationRepository()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	seedBatch(t, repo, convocation.Batch{ID: "batch-b", EventID: EventIDSpringGala, Subject: "Gala invitation", Body: "Black tie dress code applies.", Status: convocation.BatchSent, CreatedAt: base.Add(time.Hour)}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-a", EventID: EventIDSpringGala, Subject: "Gala reminder", Body: "b", Status: convocation.BatchPending, CreatedAt: base.Add(time.Hour)}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-c", EventID: EventIDProductSummit, Subject: "Summit invitation", Body: "b", Status: convocation.BatchSent, CreatedAt: base}, nil)

	items, total, err := repo.FindBatches(t.Context(), convocation.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	// Newest first, equal creation times fall back to ID order.
	want := []string{"batch-a", "batch-b", "batch-c"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("items[%d] = %s, want %s", i, items[i].ID, id)
		}
	}

	items, total, err = repo.FindBatches(t.Context(), convocation.Filter{Status: convocation.BatchSent, Limit: 10})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 2 || items[0].ID != "batch-b" {
		t.Fatalf("unexpected status filter result: total=%d items=%+v", total, items)
	}

	items, total, err = repo.FindBatches(t.Context(), convocation.Filter{SearchText: "SUMMIT", Limit: 10})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 1 || items[0].ID != "batch-c" {
		t.Fatalf("subject match should ignore case: total=%d items=%+v", total, items)
	}

	// The search text also matches against the body.
	items, total, err = repo.FindBatches(t.Context(), convocation.Filter{SearchText: "dress code", Limit: 10})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 1 || items[0].ID != "batch-b" {
		t.Fatalf("body match: total=%d items=%+v", total, items)
	}

	items, total, err = repo.FindBatches(t.Context(), convocation.Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 3 || len(items) != 1 || items[0].ID != "batch-c" {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}

	items, total, err = repo.FindBatches(t.Context(), convocation.Filter{Offset: 50})
	if err != nil {
		t.Fatalf("FindBatches returned error: %v", err)
	}
	if total != 3 || len(items) != 0 {
		t.Fatalf("offset past the end: total=%d items=%d", total, len(items))
	}
}

func TestConvocationRepository_ListDue(t *testing.T) {
	repo := NewConvocationRepository()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	earlier := now.Add(-2 * time.Hour)
	future := now.Add(time.Hour)

	seedBatch(t, repo, convocation.Batch{ID: "batch-due-late", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending, ScheduledAt: &past}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-due-early", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending, ScheduledAt: &earlier}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-future", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending, ScheduledAt: &future}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-cancelled", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchCancelled, ScheduledAt: &past}, nil)
	seedBatch(t, repo, convocation.Batch{ID: "batch-immediate", EventID: EventIDSpringGala, Subject: "s", Body: "b", Status: convocation.BatchPending}, nil)

	due, err := repo.ListDue(t.Context(), now, 10)
	if err != nil {
		t.Fatalf("ListDue returned error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due batches, want 2: %+v", len(due), due)
	}
	// Oldest scheduled time first.
	if due[0].ID != "batch-due-early" || due[1].ID != "batch-due-late" {
		t.Fatalf("unexpected order: %s, %s", due[0].ID, due[1].ID)
	}

	limited, err := repo.ListDue(t.Context(), now, 1)
	if err != nil {
		t.Fatalf("ListDue returned error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "batch-due-early" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}
