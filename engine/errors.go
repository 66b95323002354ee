package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSessionOpen is returned when the data file cannot be opened or the
	// credentials are refused.
	ErrSessionOpen = errors.New("failed to open data file")

	// ErrSessionClosed is returned by handle operations on a closed session.
	ErrSessionClosed = errors.New("no company file is open")

	// ErrNoAccess is returned when a ledger or journal cannot be opened.
	ErrNoAccess = errors.New("module is not accessible")

	// ErrUnknownParty is returned when a customer or vendor name does not exist.
	ErrUnknownParty = errors.New("unknown customer or vendor")

	// ErrUnknownAccount is returned when a ledger account does not exist.
	ErrUnknownAccount = errors.New("unknown ledger account")

	// ErrUnbalanced is returned when journal debits and credits differ.
	ErrUnbalanced = errors.New("journal entry is not balanced")

	// ErrNotLoaded is returned when an operation needs a loaded document.
	ErrNotLoaded = errors.New("no document loaded")

	// ErrAlreadyReversed is returned when voiding a document twice.
	ErrAlreadyReversed = errors.New("document already reversed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports a record the engine refused to persist.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
