package contact

import (
	"fmt"
	"strings"
)

// Status is the lifecycle status of a directory contact. Only active
// contacts are deliverable; inactive ones stay listed but resolve to
// nothing when a convocation is created.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Contact is an addressable person in the organizer's directory.
type Contact struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Status Status
}

// Active reports whether the contact may receive convocation mail.
func (c Contact) Active() bool {
	return c.Status == StatusActive
}

func (c Contact) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("contact id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("contact name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("contact email %q is invalid", c.Email)
	}
	if c.Status != StatusActive && c.Status != StatusInactive {
		return fmt.Errorf("contact status %q is invalid", c.Status)
	}

	return nil
}
