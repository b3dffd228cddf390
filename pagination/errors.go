package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports malformed pagination arguments: both modes
	// set, a non-positive count, or a nil entity slice.
	ErrInvalidArgument = errors.New("pagination: invalid argument")

	// ErrInvalidCursor reports a cursor that cannot be decoded or that decodes
	// to a value incompatible with the collection's sort order. An invalid
	// cursor is never treated as "no cursor".
	ErrInvalidCursor = errors.New("pagination: invalid cursor")

	// ErrEmptyConnection reports a page-info build on a connection with no
	// edges. The paginator special-cases empty pages and never surfaces this.
	ErrEmptyConnection = errors.New("pagination: empty connection")
)

// StoreError wraps a backing-store query failure (including timeout and
// cancellation). The page build is aborted; no partial connection is returned.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("pagination: store query: %v", e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
