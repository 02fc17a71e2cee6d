package shared

import (
	"errors"
	"fmt"
)

// ValidationError rejects a malformed event. Never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ContentionError surfaces after the bounded retry budget for a hot user
// record is exhausted. Transient; callers may retry.
type ContentionError struct {
	Attempts int
	Err      error
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("contention after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ContentionError) Unwrap() error { return e.Err }

// IsContention reports whether err is a ContentionError.
func IsContention(err error) bool {
	var ce *ContentionError
	return errors.As(err, &ce)
}

// ConsistencyViolation is raised when replaying a user's accepted event log
// does not reproduce the stored totals. Fatal for that record; it is flagged
// for manual reconciliation, never silently corrected.
type ConsistencyViolation struct {
	UserID string
	Detail string
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("consistency violation for user %s: %s", e.UserID, e.Detail)
}

// IsConsistencyViolation reports whether err is a ConsistencyViolation.
func IsConsistencyViolation(err error) bool {
	var cv *ConsistencyViolation
	return errors.As(err, &cv)
}
