package domain

import "errors"

// Error classes for registry, resolution, and dispatch failures.
// Callers branch on these with errors.Is; concrete errors wrap them
// with fmt.Errorf and %w to carry detail.
var (
	// ErrValidation marks malformed arguments: empty names, nil render
	// functions, a category renderer field that is not a #-prefixed name.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks re-registration of an already-bound channel platform.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks lookups of unknown renderers, content items,
	// and content categories.
	ErrNotFound = errors.New("not found")

	// ErrDelivery marks a failed outbound delivery. The channel's own error
	// is wrapped underneath, and the remaining sequence is aborted.
	ErrDelivery = errors.New("delivery failed")
)
