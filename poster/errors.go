package poster

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrSessionOpen is the only batch-level failure: the data file could not
// be opened, so no item was processed.
var ErrSessionOpen = errors.New("failed to connect")

// =============================================================================
// ITEM ERRORS - Converted to a Result at the per-item boundary
// =============================================================================

// Kind classifies a per-item failure.
type Kind string

const (
	KindNone                Kind = ""
	KindResourceUnavailable Kind = "resource_unavailable"
	KindLookupMiss          Kind = "lookup_miss"
	KindEngine              Kind = "engine"
	KindLineRemoval         Kind = "line_removal"
	KindQueryFailed         Kind = "query_failed"
	KindInternal            Kind = "internal"
)

const (
	msgLedgerUnavailable  = "Error opening ledger. Verify you have sufficient rights and a company file is open."
	msgJournalUnavailable = "Error opening journal. Verify you have sufficient rights and a company file is open."
	msgLineRemoval        = "Post FAILED: Cannot remove existing line items"
)

// ItemError is a failure of one batch item. Message is what the caller sees
// in the result's messages.
type ItemError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ItemError) Error() string {
	return e.Message
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

func errUnavailable(message string, err error) *ItemError {
	return &ItemError{Kind: KindResourceUnavailable, Message: message, Err: err}
}

// errLookupMiss reports a key that did not resolve, e.g.
// "Adjust customer Acme FAILED".
func errLookupMiss(verb Verb, what string) *ItemError {
	return &ItemError{Kind: KindLookupMiss, Message: fmt.Sprintf("%s %s FAILED", verb.Title(), what)}
}

// errEngine reports an engine call that raised, e.g. "Save FAILED: ...".
func errEngine(op string, err error) *ItemError {
	return &ItemError{Kind: KindEngine, Message: fmt.Sprintf("%s FAILED: %v", op, err), Err: err}
}

func errLineRemoval(err error) *ItemError {
	return &ItemError{Kind: KindLineRemoval, Message: msgLineRemoval, Err: err}
}

func errQuery(err error) *ItemError {
	return &ItemError{Kind: KindQueryFailed, Message: fmt.Sprintf("Query FAILED: %v", err), Err: err}
}

// asItemError keeps an ItemError as is and files anything else under the
// action's verb.
func asItemError(action Action, err error) *ItemError {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie
	}
	return errEngine(action.Verb.Title(), err)
}
