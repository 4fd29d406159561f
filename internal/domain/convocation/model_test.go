package convocation

import (
	"testing"
	"time"
)

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		name    string
		current RecipientStatus
		next    RecipientStatus
		want    bool
	}{
		{"pending to sent", RecipientPending, RecipientSent, true},
		{"pending to opened", RecipientPending, RecipientOpened, true},
		{"pending to replied", RecipientPending, RecipientReplied, true},
		{"sent to opened", RecipientSent, RecipientOpened, true},
		{"sent to replied", RecipientSent, RecipientReplied, true},
		{"opened to replied", RecipientOpened, RecipientReplied, true},

		{"same status is not a move", RecipientSent, RecipientSent, false},
		{"sent back to pending", RecipientSent, RecipientPending, false},
		{"opened back to sent", RecipientOpened, RecipientSent, false},
		{"replied back to opened", RecipientReplied, RecipientOpened, false},
		{"replied is terminal", RecipientReplied, RecipientError, false},

		{"error from pending", RecipientPending, RecipientError, true},
		{"error from sent", RecipientSent, RecipientError, true},
		{"error from opened", RecipientOpened, RecipientError, false},
		{"error is terminal", RecipientError, RecipientSent, false},
		{"error stays error", RecipientError, RecipientError, false},

		{"unknown current", RecipientStatus("BOUNCED"), RecipientSent, false},
		{"unknown next", RecipientSent, RecipientStatus("BOUNCED"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAdvance(tc.current, tc.next); got != tc.want {
				t.Fatalf("CanAdvance(%s, %s) = %v, want %v", tc.current, tc.next, got, tc.want)
			}
		})
	}
}

func TestValidStatuses(t *testing.T) {
	for _, s := range []BatchStatus{BatchPending, BatchSent, BatchSendFailed, BatchCancelled} {
		if !ValidBatchStatus(s) {
			t.Fatalf("%s should be a valid batch status", s)
		}
	}
	if ValidBatchStatus(BatchStatus("DELIVERED")) {
		t.Fatalf("DELIVERED should not be a valid batch status")
	}

	for _, s := range []RecipientStatus{RecipientPending, RecipientSent, RecipientOpened, RecipientReplied, RecipientError} {
		if !ValidRecipientStatus(s) {
			t.Fatalf("%s should be a valid recipient status", s)
		}
	}
	if ValidRecipientStatus(RecipientStatus("BOUNCED")) {
		t.Fatalf("BOUNCED should not be a valid recipient status")
	}
}

func TestBatchValidate(t *testing.T) {
	valid := Batch{
		ID:        "batch-1",
		EventID:   "evt-1",
		Subject:   "s",
		Body:      "b",
		Status:    BatchPending,
		CreatedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(b *Batch)
	}{
		{"missing id", func(b *Batch) { b.ID = "" }},
		{"missing event id", func(b *Batch) { b.EventID = "" }},
		{"missing subject", func(b *Batch) { b.Subject = "" }},
		{"missing body", func(b *Batch) { b.Body = "" }},
		{"unknown status", func(b *Batch) { b.Status = "DELIVERED" }},
		{"sent time on a pending batch", func(b *Batch) {
			now := time.Now()
			b.SentAt = &now
		}},
		{"sent time on a cancelled batch", func(b *Batch) {
			now := time.Now()
			b.Status = BatchCancelled
			b.SentAt = &now
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := valid
			tc.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	for _, status := range []BatchStatus{BatchSent, BatchSendFailed} {
		t.Run("sent time allowed on "+string(status), func(t *testing.T) {
			b := valid
			now := time.Now()
			b.Status = status
			b.SentAt = &now
			if err := b.Validate(); err != nil {
				t.Fatalf("dispatched batch with sent time rejected: %v", err)
			}
		})
	}
}

func TestRecipientValidate(t *testing.T) {
	valid := Recipient{
		ID:        "rcp-1",
		BatchID:   "batch-1",
		ContactID: "ct-1",
		Email:     "ct@example.com",
		Status:    RecipientPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid recipient rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(r *Recipient)
	}{
		{"missing id", func(r *Recipient) { r.ID = "" }},
		{"missing batch id", func(r *Recipient) { r.BatchID = "" }},
		{"missing contact id", func(r *Recipient) { r.ContactID = "" }},
		{"missing email", func(r *Recipient) { r.Email = "" }},
		{"unknown status", func(r *Recipient) { r.Status = "BOUNCED" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
