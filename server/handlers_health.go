package server

import (
	"fmt"
	"net/http"
	"time"
)

// HandleHealthz responds to liveness probe requests by checking store connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"store", func() error { return h.store.Ping(r.Context()) }},
		{"credentials", func() error {
			// The bot can run on a static TWITCH_OAUTH_TOKEN; only require a
			// stored token when no static one is configured.
			if h.cfg.TwitchOAuthToken != "" {
				return nil
			}
			access, _, _, _, err := h.store.GetOAuthToken(r.Context(), "twitch")
			if err != nil {
				return err
			}
			if access == "" {
				return fmt.Errorf("missing twitch OAuth token")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus reports coarse service state for the frontend dashboard.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	storeOK := h.store.Ping(r.Context()) == nil

	var tokenStored bool
	var tokenExpiry time.Time
	if access, _, exp, _, err := h.store.GetOAuthToken(r.Context(), "twitch"); err == nil && access != "" {
		tokenStored = true
		tokenExpiry = exp
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store_ok":           storeOK,
		"channel":            h.cfg.TwitchChannel,
		"command_prefix":     h.cfg.CommandPrefix,
		"oauth_token_stored": tokenStored,
		"oauth_token_expiry": tokenExpiry,
	})
}
