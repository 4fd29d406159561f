package staff

// Principal is the authenticated organizer staff member attached to a
// request after token introspection.
type Principal struct {
	UserID string
	Email  string
}
