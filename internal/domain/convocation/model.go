package convocation

import (
	"fmt"
	"time"
)

// BatchStatus is the lifecycle status of a convocation batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "PENDING"
	BatchSent       BatchStatus = "SENT"
	BatchSendFailed BatchStatus = "SEND_FAILED"
	BatchCancelled  BatchStatus = "CANCELLED"
)

// RecipientStatus is the delivery status of a single recipient row.
// PENDING, SENT, OPENED and REPLIED form a strictly increasing ladder;
// ERROR sits outside the ladder and is terminal.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "PENDING"
	RecipientSent    RecipientStatus = "SENT"
	RecipientOpened  RecipientStatus = "OPENED"
	RecipientReplied RecipientStatus = "REPLIED"
	RecipientError   RecipientStatus = "ERROR"
)

var recipientRank = map[RecipientStatus]int{
	RecipientPending: 0,
	RecipientSent:    1,
	RecipientOpened:  2,
	RecipientReplied: 3,
}

// ValidBatchStatus reports whether s is a known batch status.
func ValidBatchStatus(s BatchStatus) bool {
	switch s {
	case BatchPending, BatchSent, BatchSendFailed, BatchCancelled:
		return true
	default:
		return false
	}
}

// ValidRecipientStatus reports whether s is a known recipient status.
func ValidRecipientStatus(s RecipientStatus) bool {
	if s == RecipientError {
		return true
	}
	_, ok := recipientRank[s]
	return ok
}

// CanAdvance reports whether a recipient may move from current to next.
// The delivery ladder only moves forward, REPLIED and ERROR never change,
// and ERROR is reachable only before the recipient engaged with the mail.
func CanAdvance(current, next RecipientStatus) bool {
	if current == RecipientError || current == next {
		return false
	}
	if next == RecipientError {
		return current == RecipientPending || current == RecipientSent
	}

	currentRank, ok := recipientRank[current]
	if !ok {
		return false
	}
	nextRank, ok := recipientRank[next]
	if !ok {
		return false
	}

	return nextRank > currentRank
}

// Batch is one convocation send to a set of recipients for an event.
// SentAt records when the dispatch fan-out finished; it is set exactly
// when the batch reached SENT or SEND_FAILED.
type Batch struct {
	ID           string
	EventID      string
	Subject      string
	Body         string
	Status       BatchStatus
	ErrorSummary string
	ScheduledAt  *time.Time
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b Batch) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("batch id is required")
	}
	if b.EventID == "" {
		return fmt.Errorf("batch event id is required")
	}
	if b.Subject == "" {
		return fmt.Errorf("batch subject is required")
	}
	if b.Body == "" {
		return fmt.Errorf("batch body is required")
	}
	if !ValidBatchStatus(b.Status) {
		return fmt.Errorf("batch status %q is invalid", b.Status)
	}
	if b.SentAt != nil && b.Status != BatchSent && b.Status != BatchSendFailed {
		return fmt.Errorf("batch sent time requires a dispatched status, got %q", b.Status)
	}

	return nil
}

// Recipient is one contact's delivery row inside a batch.
type Recipient struct {
	ID           string
	BatchID      string
	ContactID    string
	Email        string
	Name         string
	Status       RecipientStatus
	ErrorMessage string
	SentAt       *time.Time
	UpdatedAt    time.Time
}

func (r Recipient) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("recipient id is required")
	}
	if r.BatchID == "" {
		return fmt.Errorf("recipient batch id is required")
	}
	if r.ContactID == "" {
		return fmt.Errorf("recipient contact id is required")
	}
	if r.Email == "" {
		return fmt.Errorf("recipient email is required")
	}
	if !ValidRecipientStatus(r.Status) {
		return fmt.Errorf("recipient status %q is invalid", r.Status)
	}

	return nil
}
