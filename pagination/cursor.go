package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Key is the stable sort key a cursor encodes: the entity kind, the canonical
// string form of the primary sort field, and a unique tiebreaker id. It
// encodes only entity state, never transient query state, so a cursor stays
// valid across process restarts.
type Key struct {
	Kind  string
	Value string
	ID    string
}

// sep joins the key fields inside a cursor. The unit separator never occurs
// in RFC3339 timestamps, ObjectID hex, or command names.
const sep = "\x1f"

var (
	kindsMu sync.RWMutex
	kinds   = map[string]struct{}{}
)

// RegisterKind adds an entity kind to the static registration table. Kinds
// are registered by code at process start; Decode rejects cursors whose kind
// is not in the table. Registering the same kind twice is an error.
func RegisterKind(kind string) error {
	if kind == "" || strings.Contains(kind, sep) {
		return fmt.Errorf("%w: bad kind %q", ErrInvalidArgument, kind)
	}
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if _, ok := kinds[kind]; ok {
		return fmt.Errorf("%w: kind %q already registered", ErrInvalidArgument, kind)
	}
	kinds[kind] = struct{}{}
	return nil
}

// MustRegisterKind is RegisterKind for startup wiring, panicking on error.
func MustRegisterKind(kind string) {
	if err := RegisterKind(kind); err != nil {
		panic(err)
	}
}

func kindRegistered(kind string) bool {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	_, ok := kinds[kind]
	return ok
}

// Encode converts a sort key into an opaque cursor token. Callers must not
// parse or construct cursors themselves.
func Encode(k Key) string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.Kind + sep + k.Value + sep + k.ID))
}

// Decode converts a cursor token back into its sort key. It fails with
// ErrInvalidCursor when the token is malformed, belongs to a different entity
// kind, or names a kind absent from the registration table.
func Decode(kind, cursor string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(raw), sep)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}
	k := Key{Kind: parts[0], Value: parts[1], ID: parts[2]}
	if !kindRegistered(k.Kind) {
		return Key{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCursor, k.Kind)
	}
	if k.Kind != kind {
		return Key{}, fmt.Errorf("%w: cursor is for kind %q, want %q", ErrInvalidCursor, k.Kind, kind)
	}
	if k.ID == "" {
		return Key{}, fmt.Errorf("%w: missing tiebreaker id", ErrInvalidCursor)
	}
	return k, nil
}
