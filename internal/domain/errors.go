package domain

import "errors"

// Service-wide error taxonomy. Handlers map these to HTTP statuses with
// errors.Is; anything unrecognized is treated as an internal failure.
var (
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidParty  = errors.New("party is not a member of this ledger")
	ErrInvalidMemo   = errors.New("memo exceeds the allowed length")

	ErrLedgerNotFound = errors.New("ledger not found")
	ErrAccessDenied   = errors.New("access denied")

	// ErrConflict signals a lost-update detected on a conditional write.
	// Stores retry it internally; it never reaches a caller directly.
	ErrConflict = errors.New("ledger was modified concurrently")

	ErrStorageUnavailable = errors.New("storage unavailable")
)
