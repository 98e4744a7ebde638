package investigate

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the CLI.
var (
	// ErrAmbiguousQuestion means no metric or campaign could be recognized
	// in the question and no context override supplied one. Surfaced
	// immediately, before any store access.
	ErrAmbiguousQuestion = errors.New("ambiguous question: no recognizable metric or campaign")

	// ErrStoreUnavailable means the store could not be reached for the
	// schema fetch or connection acquisition. Fatal to the investigation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// QueryError wraps a query failure after the retry/repair policy has been
// exhausted.
type QueryError struct {
	Retryable bool
	Attempts  int
	Err       error
}

func (e *QueryError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("query failed (%s, %d attempts): %v", kind, e.Attempts, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// InvestigationError is the umbrella error returned to the caller for a
// failed investigation. The scratchpad retains the full audit trail; this
// carries the terminal error kind and where the log ended.
type InvestigationError struct {
	Kind    string // "ambiguous_question", "store_unavailable", "query_failed", "canceled"
	LastSeq int
	Err     error
}

func (e *InvestigationError) Error() string {
	return fmt.Sprintf("investigation failed (%s, last action %d): %v", e.Kind, e.LastSeq, e.Err)
}

func (e *InvestigationError) Unwrap() error { return e.Err }
