package protocol

import (
	"errors"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/oracle"
)

// The error taxonomy. Every rejected operation fails with exactly one of
// these kinds, leaves state unchanged, and is never retried automatically.
// Messages are stable so clients can branch on kind, not string contents.
var (
	// ErrRange is a value outside its declared domain or a width overflow.
	// Shares identity with the confidential service's range error so
	// errors.Is works across the boundary.
	ErrRange = confidential.ErrRange

	// ErrDuplicate is a repeat submission in the same period.
	ErrDuplicate = errors.New("duplicate submission for period")

	// ErrConflict is an operation invalid for the current period state.
	ErrConflict = errors.New("operation invalid for current period state")

	// ErrAuthorization is a caller lacking the required role or grant.
	ErrAuthorization = errors.New("caller not authorized")

	// ErrNotReady is a query against an incomplete period, or a finalize
	// requested before the window elapsed.
	ErrNotReady = errors.New("period not ready")

	// ErrProof is a decrypt callback that failed verification.
	ErrProof = oracle.ErrProof
)

// ErrorKind returns the stable kind label for an engine error, or "internal"
// for anything outside the taxonomy. Used by the HTTP layer and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrRange):
		return "range"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrProof):
		return "proof"
	default:
		return "internal"
	}
}
