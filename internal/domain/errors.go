package domain

import "errors"

// Validation errors are expected outcomes returned to the caller for display,
// never retried automatically.
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAuctionClosed   = errors.New("auction is closed")
	ErrBidTooLow       = errors.New("bid amount too low")
)

// Infrastructure errors.
var (
	// ErrConflict is surfaced once the bounded retry budget for concurrent
	// auction updates is exhausted.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrTimeout means a Ledger call exceeded its deadline; the transaction
	// either fully committed or fully aborted.
	ErrTimeout = errors.New("ledger call timed out")
	// ErrInternal indicates a caller bug or Ledger inconsistency. Never
	// swallowed; callers log and propagate it.
	ErrInternal = errors.New("internal inconsistency")
)
