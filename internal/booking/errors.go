package booking

import "errors"

// Engine-level error taxonomy. Handlers match these with errors.Is; the
// wrapped message is safe to surface to the caller.
var (
	// ErrUnauthorized means the caller has no usable identity for the
	// operation at all (no subject, or a role that can never perform it).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied means the caller is authenticated but does not
	// own the target resource. Deliberately distinct from not-found.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput means caller-supplied data violates a business rule.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOperationFailed means a store operation failed after all
	// preconditions passed.
	ErrOperationFailed = errors.New("operation failed")

	// ErrSlotContended means another caller holds the booking lock for the
	// slot right now; the request can be retried.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")
)
