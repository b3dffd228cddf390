// Package testutil provides test fakes: an in-memory paginable store and a
// mock Twitch API server.
package testutil

import (
	"context"
	"sort"
	"strings"

	"github.com/quillen/chatrelay/pagination"
)

// MemoryStore is an in-memory ordered collection implementing the
// pagination.QueryFunc contract with exclusive-bound keyset seeks. Sort keys
// are compared by their canonical string form, so tests should use values
// whose lexicographic order matches the intended order (zero-padded numbers,
// fixed-width timestamps).
type MemoryStore[T pagination.Cursorable] struct {
	Items []T

	// Err, when set, is returned by every query to simulate store failure.
	Err error
}

func keyLess(a, b pagination.Key) bool {
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// Query implements pagination.QueryFunc[T].
func (s *MemoryStore[T]) Query(ctx context.Context, order pagination.SortOrder, bound *pagination.Key, dir pagination.Direction, limit int) ([]T, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Natural order of the collection per the declared sort.
	sorted := make([]T, len(s.Items))
	copy(sorted, s.Items)
	sort.SliceStable(sorted, func(i, j int) bool {
		less := keyLess(sorted[i].CursorKey(), sorted[j].CursorKey())
		if order.Descending {
			return !less
		}
		return less
	})

	out := make([]T, 0, limit)
	if dir == pagination.Forward {
		for _, it := range sorted {
			if bound != nil {
				k := it.CursorKey()
				after := keyLess(*bound, k)
				if order.Descending {
					after = keyLess(k, *bound)
				}
				if !after {
					continue
				}
			}
			out = append(out, it)
			if len(out) == limit {
				break
			}
		}
		return out, nil
	}
	// Backward: walk toward the start, closest-to-bound first.
	for i := len(sorted) - 1; i >= 0; i-- {
		it := sorted[i]
		if bound != nil {
			k := it.CursorKey()
			before := keyLess(k, *bound)
			if order.Descending {
				before = keyLess(*bound, k)
			}
			if !before {
				continue
			}
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
