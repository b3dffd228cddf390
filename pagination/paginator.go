package pagination

import (
	"context"
	"errors"
	"fmt"
)

// Direction is the traversal direction of a page fetch relative to the
// collection's declared sort order.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// SortOrder declares the collection's canonical ordering. Tiebreaker names a
// unique field appended to the primary sort so the order is total even when
// Field has duplicate values; it is required.
type SortOrder struct {
	Field      string
	Descending bool
	Tiebreaker string
}

// Args are Relay pagination arguments: exactly one of the forward
// (first/after) or backward (last/before) modes must be set, with a positive
// count. Cursors are optional in either mode.
type Args struct {
	First  *int
	After  string
	Last   *int
	Before string
}

func (a Args) validate() (Direction, int, string, error) {
	switch {
	case a.First != nil && a.Last != nil:
		return 0, 0, "", fmt.Errorf("%w: first and last are mutually exclusive", ErrInvalidArgument)
	case a.First == nil && a.Last == nil:
		return 0, 0, "", fmt.Errorf("%w: one of first or last is required", ErrInvalidArgument)
	case a.First != nil:
		if *a.First <= 0 {
			return 0, 0, "", fmt.Errorf("%w: first must be positive, got %d", ErrInvalidArgument, *a.First)
		}
		if a.Before != "" {
			return 0, 0, "", fmt.Errorf("%w: before cannot be combined with first", ErrInvalidArgument)
		}
		return Forward, *a.First, a.After, nil
	default:
		if *a.Last <= 0 {
			return 0, 0, "", fmt.Errorf("%w: last must be positive, got %d", ErrInvalidArgument, *a.Last)
		}
		if a.After != "" {
			return 0, 0, "", fmt.Errorf("%w: after cannot be combined with last", ErrInvalidArgument)
		}
		return Backward, *a.Last, a.Before, nil
	}
}

// QueryFunc is the backing-store capability: return up to limit entities in
// the requested direction, seeking exclusively past bound when it is non-nil.
// Forward queries walk the declared order from the bound onward; backward
// queries walk toward the start, closest-to-bound first. The store must honor
// the order's tiebreaker so the traversal is total.
type QueryFunc[T Cursorable] func(ctx context.Context, order SortOrder, bound *Key, dir Direction, limit int) ([]T, error)

// Paginator coordinates a single page fetch for one entity kind. The store
// query is an explicit dependency so the engine is testable against an
// in-memory store.
type Paginator[T Cursorable] struct {
	kind  string
	order SortOrder
	query QueryFunc[T]
}

// NewPaginator wires a paginator to its backing-store query. The sort order
// must carry a tiebreaker; sorting on a non-unique key alone would make page
// boundaries ambiguous.
func NewPaginator[T Cursorable](kind string, order SortOrder, query QueryFunc[T]) (*Paginator[T], error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrInvalidArgument)
	}
	if order.Field == "" || order.Tiebreaker == "" {
		return nil, fmt.Errorf("%w: sort order needs field and tiebreaker", ErrInvalidArgument)
	}
	if query == nil {
		return nil, fmt.Errorf("%w: nil query", ErrInvalidArgument)
	}
	return &Paginator[T]{kind: kind, order: order, query: query}, nil
}

// Page fetches one page: it validates args, decodes the bound cursor, asks
// the store for limit+1 entities, converts the surplus item into the
// direction's has-more flag, and assembles the connection. The opposite flag
// is true iff a cursor was supplied (arriving via a cursor means a page
// exists on the other side). Any failure aborts the whole build.
func (p *Paginator[T]) Page(ctx context.Context, args Args) (*Connection[T], error) {
	dir, limit, cursor, err := args.validate()
	if err != nil {
		return nil, err
	}

	var bound *Key
	if cursor != "" {
		k, err := Decode(p.kind, cursor)
		if err != nil {
			return nil, err
		}
		bound = &k
	}

	nodes, err := p.query(ctx, p.order, bound, dir, limit+1)
	if err != nil {
		// A store adapter reports ErrInvalidCursor when the bound's canonical
		// value does not parse as the sort field's type.
		if errors.Is(err, ErrInvalidCursor) {
			return nil, err
		}
		return nil, &StoreError{Err: err}
	}
	hasMore := len(nodes) > limit
	if hasMore {
		nodes = nodes[:limit]
	}

	conn := &Connection[T]{Edges: []Edge[T]{}}
	if len(nodes) == 0 {
		// No valid start/end cursor exists; the "previous page existed because
		// a cursor was supplied" rule still applies.
		if bound != nil {
			if dir == Forward {
				conn.PageInfo.HasPreviousPage = true
			} else {
				conn.PageInfo.HasNextPage = true
			}
		}
		return conn, nil
	}

	if err := conn.InsertEdges(nodes, dir == Backward); err != nil {
		return nil, err
	}
	var hasPrev, hasNext bool
	if dir == Forward {
		hasNext = hasMore
		hasPrev = bound != nil
	} else {
		hasPrev = hasMore
		hasNext = bound != nil
	}
	if err := conn.GeneratePageInfo(hasPrev, hasNext); err != nil {
		return nil, err
	}
	return conn, nil
}
