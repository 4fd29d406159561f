package postgres

import (
	"database/sql"
	"time"
)

type batchTableModel struct {
	ID            int64          `db:"id"`
	PublicID      string         `db:"public_id"`
	EventPublicID string         `db:"event_public_id"`
	Subject       string         `db:"subject"`
	Body          string         `db:"body"`
	Status        string         `db:"status"`
	ErrorSummary  sql.NullString `db:"error_summary"`
	ScheduledAt   sql.NullTime   `db:"scheduled_at"`
	SentAt        sql.NullTime   `db:"sent_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	DeletedAt     sql.NullTime   `db:"deleted_at"`
}

type recipientTableModel struct {
	ID              int64          `db:"id"`
	PublicID        string         `db:"public_id"`
	BatchPublicID   string         `db:"batch_public_id"`
	ContactPublicID string         `db:"contact_public_id"`
	Email           string         `db:"email"`
	Name            string         `db:"name"`
	Status          string         `db:"status"`
	ErrorMessage    sql.NullString `db:"error_message"`
	SentAt          sql.NullTime   `db:"sent_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	DeletedAt       sql.NullTime   `db:"deleted_at"`
}

func nullStringToString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func nullTimeToPtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func ptrToNullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func stringToNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
