package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced earning does not exist.
	ErrNotFound = errors.New("earning not found")

	// ErrValidation is the base error for earnings that exist but are not
	// currently eligible for release. Expected and frequent during batch
	// sweeps; the worker counts these as skipped.
	ErrValidation = errors.New("earning not eligible for release")

	// ErrAlreadyRunning is returned when a concurrent or very recent
	// attempt holds the idempotency lock for the same earning.
	ErrAlreadyRunning = errors.New("release already in progress")

	// ErrEscrowUnavailable is returned when the escrow guard declines a
	// release because the underlying funds are not held or are disputed.
	ErrEscrowUnavailable = errors.New("escrow funds not available")
)

// ValidationError carries the reason an earning failed eligibility checks.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AppError indicates a configuration or systemic problem, such as a
// missing seller ledger account. These should alert an operator rather
// than be retried indefinitely.
type AppError struct {
	Op      string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsSkippable reports whether the error is a business-expected condition
// that a batch sweep should count as skipped and retry on a later cycle.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrEscrowUnavailable)
}

// IsNotFound reports whether the error indicates a missing earning.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
