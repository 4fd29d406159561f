package contact

import "context"

// Repository resolves directory contacts for use cases.
type Repository interface {
	List(ctx context.Context) ([]Contact, error)
	GetByID(ctx context.Context, contactID string) (Contact, bool, error)
	// ResolveByIDs returns the active contacts found for the given IDs.
	// Unknown and inactive IDs are omitted from the result rather than
	// reported as an error.
	ResolveByIDs(ctx context.Context, contactIDs []string) ([]Contact, error)
}
