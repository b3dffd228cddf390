// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/quillen/chatrelay/config"
	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/pagination"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// Store is the document-store capability the HTTP layer depends on.
// Satisfied by *db.Store.
type Store interface {
	Ping(ctx context.Context) error
	Messages(channel string) pagination.QueryFunc[db.ChatMessage]
	Commands(channel string) pagination.QueryFunc[db.Command]
	UpsertCommand(ctx context.Context, c *db.Command) error
	DeleteCommand(ctx context.Context, channel, name string) error
	UpsertOAuthToken(ctx context.Context, provider, access, refresh string, expiry time.Time, scope string) error
	GetOAuthToken(ctx context.Context, provider string) (access, refresh string, expiry time.Time, scope string, err error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store      Store
	cfg        *config.Config
	oauthCfg   *oauth2.Config
	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(store Store, cfg *config.Config, oauthCfg *oauth2.Config) *Handlers {
	return &Handlers{
		store:      store,
		cfg:        cfg,
		oauthCfg:   oauthCfg,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Over the cap, refuse to add more: failing the OAuth flow beats
	// memory exhaustion.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state, returning whether it was
// valid and unexpired.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}
