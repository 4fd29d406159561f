package event

import "context"

// Repository describes event persistence needs from use cases.
type Repository interface {
	List(ctx context.Context) ([]Event, error)
	GetByID(ctx context.Context, eventID string) (Event, bool, error)
}
