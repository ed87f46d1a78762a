package payout

import (
	"errors"
	"fmt"
)

var (
	// ErrRateOutOfRange rejects payout rates outside (0, 1] before any
	// network activity happens.
	ErrRateOutOfRange = errors.New("payout rate must be within (0, 1]")

	// ErrMinDenomination rejects a non-positive floor granularity.
	ErrMinDenomination = errors.New("minimum denomination must be positive")
)

// TransientError marks a broadcast failure worth retrying: the transfer was
// rejected before it could reach the ledger (connection refused, rate limit,
// service unavailable). Broadcasters must NOT mark ambiguous outcomes
// transient; a timeout after the request was sent may have succeeded on the
// ledger, and retrying it risks a duplicate payment.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FatalError marks a run-level failure: no further transfer from this
// broadcaster can succeed (signing credential rejected, funding account
// locked). The executor records the failing entry and aborts the run.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as run-fatal. Returns nil for nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is classified run-fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
