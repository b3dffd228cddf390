// Package pagination implements Relay-style cursor pagination over an ordered
// backing store. Entities expose a stable sort key (Cursorable), the codec
// turns keys into opaque cursors, and a Paginator assembles one Connection
// per page request from a keyset-seeking store query. The engine holds no
// shared mutable state; each page request is independent.
package pagination

import (
	"fmt"
	"slices"
)

// Cursorable is the capability every paginable entity provides: a sort key
// derived deterministically from its own fields. For a fixed entity identity
// the key (and therefore the cursor) is stable across calls and restarts.
type Cursorable interface {
	CursorKey() Key
}

// Edge pairs an entity with its cursor. Edges are owned by the connection
// that created them and are never mutated after construction.
type Edge[T Cursorable] struct {
	Cursor string `json:"cursor"`
	Node   T      `json:"node"`
}

// PageInfo describes page boundaries and availability of adjacent pages.
// An empty page has empty cursors and, absent a supplied bound, both flags
// false.
type PageInfo struct {
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

// Connection is one page of edges plus derived metadata. It is built fresh
// per page request and discarded after serialization.
type Connection[T Cursorable] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// InsertEdges appends one edge per entity, in the order given, then reverses
// the whole accumulated sequence when reverse is set. Backward-mode queries
// return entities closest-to-bound first, so their callers pass reverse=true
// to restore the collection's natural forward order. The call is not
// idempotent: invoking it twice appends a second set of edges.
func (c *Connection[T]) InsertEdges(nodes []T, reverse bool) error {
	if nodes == nil {
		return fmt.Errorf("%w: nil entity slice", ErrInvalidArgument)
	}
	for _, n := range nodes {
		c.Edges = append(c.Edges, Edge[T]{Cursor: Encode(n.CursorKey()), Node: n})
	}
	if reverse {
		slices.Reverse(c.Edges)
	}
	return nil
}

// GeneratePageInfo derives start/end cursors from the first and last edge.
// The two flags are supplied by the caller: only the paginator knows whether
// the look-ahead fetch produced a surplus item. Fails with ErrEmptyConnection
// when no edges have been inserted.
func (c *Connection[T]) GeneratePageInfo(hasPreviousPage, hasNextPage bool) error {
	if len(c.Edges) == 0 {
		return ErrEmptyConnection
	}
	c.PageInfo = PageInfo{
		StartCursor:     c.Edges[0].Cursor,
		EndCursor:       c.Edges[len(c.Edges)-1].Cursor,
		HasNextPage:     hasNextPage,
		HasPreviousPage: hasPreviousPage,
	}
	return nil
}
