package syncer

import (
	"errors"
	"fmt"
)

// NetworkError marks a transient remote failure. The sync engine retries it
// with backoff and only surfaces it after the retry budget is exhausted.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) error {
	return &NetworkError{Err: err}
}

// IsNetworkError reports whether err is a transient remote failure.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// ValidationRejected marks a terminal server-side rejection. It is surfaced
// to the caller and never retried automatically.
type ValidationRejected struct {
	Reason string
}

func (e *ValidationRejected) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// NewValidationRejected wraps a terminal rejection reason.
func NewValidationRejected(reason string) error {
	return &ValidationRejected{Reason: reason}
}

// IsValidationRejected reports whether err is a terminal rejection.
func IsValidationRejected(err error) bool {
	var target *ValidationRejected
	return errors.As(err, &target)
}
