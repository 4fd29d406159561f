package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stagepass/backoffice/internal/domain/convocation"
	qb "github.com/stagepass/backoffice/internal/platform/querybuilder"
)

type ConvocationRepository struct {
	db *sqlx.DB
}

func NewConvocationRepository(db *sqlx.DB) *ConvocationRepository {
	return &ConvocationRepository{db: db}
}

// CreateBatchWithRecipients writes the batch row and all recipient rows in
// one transaction so a batch is never visible without its recipients.
func (r *ConvocationRepository) CreateBatchWithRecipients(ctx context.Context, batch convocation.Batch, recipients []convocation.Recipient) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for batch create: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertBatchQuery = `
INSERT INTO convocation_batches (public_id, event_public_id, subject, body, status, error_summary, scheduled_at, sent_at, created_at, updated_at)
VALUES (:public_id, :event_public_id, :subject, :body, :status, :error_summary, :scheduled_at, :sent_at, :created_at, :updated_at)`

	batchArgs := map[string]any{
		"public_id":       batch.ID,
		"event_public_id": batch.EventID,
		"subject":         batch.Subject,
		"body":            batch.Body,
		"status":          string(batch.Status),
		"error_summary":   stringToNullString(batch.ErrorSummary),
		"scheduled_at":    ptrToNullTime(batch.ScheduledAt),
		"sent_at":         ptrToNullTime(batch.SentAt),
		"created_at":      batch.CreatedAt,
		"updated_at":      batch.UpdatedAt,
	}
	batchSQL, batchSQLArgs, err := sqlx.Named(insertBatchQuery, batchArgs)
	if err != nil {
		return fmt.Errorf("bind insert batch query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(batchSQL), batchSQLArgs...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if len(recipients) > 0 {
		builder := qb.InsertInto("convocation_recipients").
			Columns("public_id", "batch_public_id", "contact_public_id", "email", "name", "status", "error_message", "created_at", "updated_at")
		for _, item := range recipients {
			builder.Values(
				item.ID,
				item.BatchID,
				item.ContactID,
				item.Email,
				item.Name,
				string(item.Status),
				stringToNullString(item.ErrorMessage),
				item.UpdatedAt,
				item.UpdatedAt,
			)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return fmt.Errorf("build insert recipients query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert recipients: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch create: %w", err)
	}

	return nil
}

func (r *ConvocationRepository) GetBatch(ctx context.Context, batchID string) (convocation.Batch, bool, error) {
	query, args, err := qb.Select("*").From("convocation_batches").
		Where(
			qb.Eq("public_id", batchID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return convocation.Batch{}, false, fmt.Errorf("build get batch query: %w", err)
	}

	var row batchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return convocation.Batch{}, false, nil
		}
		return convocation.Batch{}, false, fmt.Errorf("get batch: %w", err)
	}

	return batchFromTableModel(row), true, nil
}

func (r *ConvocationRepository) ListRecipients(ctx context.Context, batchID string) ([]convocation.Recipient, error) {
	query, args, err := qb.Select("*").From("convocation_recipients").
		Where(
			qb.Eq("batch_public_id", batchID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("contact_public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list recipients query: %w", err)
	}

	var rows []recipientTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	out := make([]convocation.Recipient, 0, len(rows))
	for _, row := range rows {
		out = append(out, recipientFromTableModel(row))
	}

	return out, nil
}

func (r *ConvocationRepository) GetRecipientByContact(ctx context.Context, batchID, contactID string) (convocation.Recipient, bool, error) {
	query, args, err := qb.Select("*").From("convocation_recipients").
		Where(
			qb.Eq("batch_public_id", batchID),
			qb.Eq("contact_public_id", contactID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return convocation.Recipient{}, false, fmt.Errorf("build get recipient query: %w", err)
	}

	var row recipientTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return convocation.Recipient{}, false, nil
		}
		return convocation.Recipient{}, false, fmt.Errorf("get recipient: %w", err)
	}

	return recipientFromTableModel(row), true, nil
}

// UpdateRecipientStatus applies a conditional write: the row only changes
// when the stored status may legally advance to the new one, so concurrent
// webhook and dispatch writes cannot move a recipient backward.
func (r *ConvocationRepository) UpdateRecipientStatus(ctx context.Context, recipientID string, status convocation.RecipientStatus, errorMessage string, at time.Time) error {
	allowed := allowedCurrentStatuses(status)
	if len(allowed) == 0 {
		return fmt.Errorf("recipient status %q is not reachable", status)
	}

	builder := qb.Update("convocation_recipients").
		Set("status", string(status)).
		Set("error_message", stringToNullString(errorMessage)).
		Set("updated_at", at).
		Where(
			qb.Eq("public_id", recipientID),
			qb.In("status", allowed),
			qb.IsNull("deleted_at"),
		)
	if status == convocation.RecipientSent {
		builder.SetExpr("sent_at", "COALESCE(sent_at, ?)", at)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build update recipient status query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update recipient status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read update recipient status result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recipient=%s: transition to %s rejected", recipientID, status)
	}

	return nil
}

func (r *ConvocationRepository) UpdateBatchStatus(ctx context.Context, batchID string, status convocation.BatchStatus, errorSummary string, sentAt *time.Time) error {
	builder := qb.Update("convocation_batches").
		Set("status", string(status)).
		Set("error_summary", stringToNullString(errorSummary)).
		SetExpr("updated_at", "NOW()")
	if sentAt != nil {
		builder.Set("sent_at", sentAt.UTC())
	}

	query, args, err := builder.
		Where(
			qb.Eq("public_id", batchID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update batch status query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read update batch status result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch=%s not found for status update", batchID)
	}

	return nil
}

func (r *ConvocationRepository) FindBatches(ctx context.Context, filter convocation.Filter) ([]convocation.Batch, int, error) {
	conditions := batchFilterConditions(filter)

	countQuery, countArgs, err := qb.Select("COUNT(*)").From("convocation_batches").
		Where(conditions...).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count batches query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	query, args, err := qb.Select("*").From("convocation_batches").
		Where(conditions...).
		OrderBy("created_at DESC", "public_id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build find batches query: %w", err)
	}

	var rows []batchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("find batches: %w", err)
	}

	out := make([]convocation.Batch, 0, len(rows))
	for _, row := range rows {
		out = append(out, batchFromTableModel(row))
	}

	return out, total, nil
}

func (r *ConvocationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]convocation.Batch, error) {
	query, args, err := qb.Select("*").From("convocation_batches").
		Where(
			qb.Eq("status", string(convocation.BatchPending)),
			qb.Expr("scheduled_at IS NOT NULL AND scheduled_at <= ?", now),
			qb.IsNull("deleted_at"),
		).
		OrderBy("scheduled_at ASC", "public_id ASC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due batches query: %w", err)
	}

	var rows []batchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list due batches: %w", err)
	}

	out := make([]convocation.Batch, 0, len(rows))
	for _, row := range rows {
		out = append(out, batchFromTableModel(row))
	}

	return out, nil
}

func batchFilterConditions(filter convocation.Filter) []qb.Condition {
	conditions := []qb.Condition{qb.IsNull("deleted_at")}
	if filter.EventID != "" {
		conditions = append(conditions, qb.Eq("event_public_id", filter.EventID))
	}
	if filter.Status != "" {
		conditions = append(conditions, qb.Eq("status", string(filter.Status)))
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, qb.Expr("created_at >= ?", *filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conditions = append(conditions, qb.Expr("created_at <= ?", *filter.CreatedTo))
	}
	if filter.SearchText != "" {
		pattern := "%" + filter.SearchText + "%"
		conditions = append(conditions, qb.Expr("(subject ILIKE ? OR body ILIKE ?)", pattern, pattern))
	}
	return conditions
}

// allowedCurrentStatuses enumerates the stored statuses a row may hold for
// the transition to target to be legal.
func allowedCurrentStatuses(target convocation.RecipientStatus) []any {
	candidates := []convocation.RecipientStatus{
		convocation.RecipientPending,
		convocation.RecipientSent,
		convocation.RecipientOpened,
		convocation.RecipientReplied,
		convocation.RecipientError,
	}

	out := make([]any, 0, len(candidates))
	for _, current := range candidates {
		if convocation.CanAdvance(current, target) {
			out = append(out, string(current))
		}
	}
	return out
}

func batchFromTableModel(row batchTableModel) convocation.Batch {
	return convocation.Batch{
		ID:           row.PublicID,
		EventID:      row.EventPublicID,
		Subject:      row.Subject,
		Body:         row.Body,
		Status:       convocation.BatchStatus(row.Status),
		ErrorSummary: nullStringToString(row.ErrorSummary),
		ScheduledAt:  nullTimeToPtr(row.ScheduledAt),
		SentAt:       nullTimeToPtr(row.SentAt),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func recipientFromTableModel(row recipientTableModel) convocation.Recipient {
	return convocation.Recipient{
		ID:           row.PublicID,
		BatchID:      row.BatchPublicID,
		ContactID:    row.ContactPublicID,
		Email:        row.Email,
		Name:         row.Name,
		Status:       convocation.RecipientStatus(row.Status),
		ErrorMessage: nullStringToString(row.ErrorMessage),
		SentAt:       nullTimeToPtr(row.SentAt),
		UpdatedAt:    row.UpdatedAt,
	}
}
