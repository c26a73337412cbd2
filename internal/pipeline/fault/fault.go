package fault

import (
	"errors"
	"fmt"
)

// Category is the stable classification an error carries across the worker
// boundary. Lower-level driver and sidecar errors are wrapped into one of
// these before they surface; the raw cause stays reachable via Unwrap but
// never becomes the headline.
type Category string

const (
	// CategoryCollection covers any failure while assembling the oracle
	// submission set: price fetch, signing, participant configuration.
	CategoryCollection Category = "collection_failed"

	// CategoryProofCompute covers failures of the external proof capability.
	// Nothing has been persisted when this surfaces.
	CategoryProofCompute Category = "proof_generation_failed"

	// CategoryProofPersist covers a failed proof-record write after a
	// successful compute. Distinct from compute failure: a computed proof
	// was dropped, which fails the whole cycle.
	CategoryProofPersist Category = "proof_persist_failed"

	// CategoryChainQuery covers head-height and event-fetch failures.
	CategoryChainQuery Category = "chain_query_failed"

	// CategoryStore covers checkpoint, ledger, and vault write failures
	// inside a reconciliation pass.
	CategoryStore Category = "store_failed"

	// CategoryNone is reported for nil or unclassified errors.
	CategoryNone Category = "unclassified"
)

func (c Category) String() string {
	return string(c)
}

type classifiedError struct {
	category Category
	err      error
}

func (e *classifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.category, e.err)
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Wrap attaches a category to err. Wrapping nil returns nil; re-wrapping an
// already classified error keeps the innermost (first) category so callers
// closest to the failure decide the classification.
func Wrap(c Category, err error) error {
	if err == nil {
		return nil
	}
	if CategoryOf(err) != CategoryNone {
		return err
	}
	return &classifiedError{category: c, err: err}
}

// Wrapf classifies a new error built from format and args.
func Wrapf(c Category, format string, args ...any) error {
	return &classifiedError{category: c, err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category attached to err, or CategoryNone.
func CategoryOf(err error) Category {
	var marked *classifiedError
	if errors.As(err, &marked) {
		return marked.category
	}
	return CategoryNone
}

// Is reports whether err carries category c.
func Is(err error, c Category) bool {
	return CategoryOf(err) == c
}
