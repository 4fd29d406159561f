package event

import (
	"fmt"
	"time"
)

// Event is an organizer event that convocations are sent for.
type Event struct {
	ID       string
	Name     string
	Venue    string
	StartsAt time.Time
	Capacity int
}

func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("event name is required")
	}
	if e.StartsAt.IsZero() {
		return fmt.Errorf("event start time is required")
	}

	return nil
}
