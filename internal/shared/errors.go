package shared

import "errors"

var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict indicates the operation is illegal for the current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrInternal marks unexpected persistence or computation failures.
	ErrInternal = errors.New("internal error")
)

// IsCallerError reports whether err is recoverable by the caller.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStateConflict)
}
