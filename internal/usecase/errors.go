package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrDeliveryFailed marks a single recipient delivery failure. It is
	// recovered inside the dispatch fan-out and never aborts a batch.
	ErrDeliveryFailed = errors.New("delivery failed")
)
