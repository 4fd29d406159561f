package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stagepass/backoffice/internal/domain/contact"
	qb "github.com/stagepass/backoffice/internal/platform/querybuilder"
)

type contactTableModel struct {
	ID        int64          `db:"id"`
	PublicID  string         `db:"public_id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Phone     sql.NullString `db:"phone"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	DeletedAt sql.NullTime   `db:"deleted_at"`
}

type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) List(ctx context.Context) ([]contact.Contact, error) {
	query, args, err := qb.Select("*").From("contacts").
		Where(qb.IsNull("deleted_at")).
		OrderBy("name", "public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select contacts query: %w", err)
	}

	var rows []contactTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select contacts: %w", err)
	}

	out := make([]contact.Contact, 0, len(rows))
	for _, row := range rows {
		out = append(out, contactFromTableModel(row))
	}

	return out, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, contactID string) (contact.Contact, bool, error) {
	query, args, err := qb.Select("*").From("contacts").
		Where(
			qb.Eq("public_id", contactID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return contact.Contact{}, false, fmt.Errorf("build get contact by id query: %w", err)
	}

	var row contactTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contact.Contact{}, false, nil
		}
		return contact.Contact{}, false, fmt.Errorf("get contact by id: %w", err)
	}

	return contactFromTableModel(row), true, nil
}

func (r *ContactRepository) ResolveByIDs(ctx context.Context, contactIDs []string) ([]contact.Contact, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(contactIDs))
	for _, id := range contactIDs {
		values = append(values, id)
	}

	// Inactive contacts are silently excluded, mirroring how unknown IDs
	// drop out of the result.
	query, args, err := qb.Select("*").From("contacts").
		Where(
			qb.In("public_id", values),
			qb.Eq("status", string(contact.StatusActive)),
			qb.IsNull("deleted_at"),
		).
		OrderBy("public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build resolve contacts query: %w", err)
	}

	var rows []contactTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("resolve contacts: %w", err)
	}

	out := make([]contact.Contact, 0, len(rows))
	for _, row := range rows {
		out = append(out, contactFromTableModel(row))
	}

	return out, nil
}

func contactFromTableModel(row contactTableModel) contact.Contact {
	return contact.Contact{
		ID:     row.PublicID,
		Name:   row.Name,
		Email:  row.Email,
		Phone:  nullStringToString(row.Phone),
		Status: contact.Status(row.Status),
	}
}
