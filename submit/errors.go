package submit

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates a recoverable transport failure. Drives the
	// bounded retry policy; backends wrap connection and framing failures
	// with it.
	ErrTransport = errors.New("submit: transport error")

	// ErrRejected indicates a ledger-level rejection. A content error, never
	// retried.
	ErrRejected = errors.New("submit: rejected by ledger")

	// ErrTimedOut indicates no confirmation was observed within the caller's
	// deadline. The outcome is unknown, not failed: the transaction may
	// still land on-chain, so callers should re-query before resubmitting.
	ErrTimedOut = errors.New("submit: confirmation timed out")

	// ErrInFlight indicates a submission attempt for the same transaction
	// hash is already in progress.
	ErrInFlight = errors.New("submit: submission already in flight")
)

// RejectError carries the backend's rejection reason.
type RejectError struct {
	Reason string
	Code   int
}

func (e *RejectError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("submit: rejected by ledger: %s (code %d)", e.Reason, e.Code)
	}
	return fmt.Sprintf("submit: rejected by ledger: %s", e.Reason)
}

// Unwrap lets errors.Is match ErrRejected.
func (e *RejectError) Unwrap() error { return ErrRejected }
