package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stagepass/backoffice/internal/domain/event"
	qb "github.com/stagepass/backoffice/internal/platform/querybuilder"
)

type eventTableModel struct {
	ID        int64        `db:"id"`
	PublicID  string       `db:"public_id"`
	Name      string       `db:"name"`
	Venue     string       `db:"venue"`
	StartsAt  time.Time    `db:"starts_at"`
	Capacity  int          `db:"capacity"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
	DeletedAt sql.NullTime `db:"deleted_at"`
}

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) List(ctx context.Context) ([]event.Event, error) {
	query, args, err := qb.Select("*").From("events").
		Where(qb.IsNull("deleted_at")).
		OrderBy("starts_at", "public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select events query: %w", err)
	}

	var rows []eventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	out := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, eventFromTableModel(row))
	}

	return out, nil
}

func (r *EventRepository) GetByID(ctx context.Context, eventID string) (event.Event, bool, error) {
	query, args, err := qb.Select("*").From("events").
		Where(
			qb.Eq("public_id", eventID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return event.Event{}, false, fmt.Errorf("build get event by id query: %w", err)
	}

	var row eventTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return event.Event{}, false, nil
		}
		return event.Event{}, false, fmt.Errorf("get event by id: %w", err)
	}

	return eventFromTableModel(row), true, nil
}

func eventFromTableModel(row eventTableModel) event.Event {
	return event.Event{
		ID:       row.PublicID,
		Name:     row.Name,
		Venue:    row.Venue,
		StartsAt: row.StartsAt,
		Capacity: row.Capacity,
	}
}
