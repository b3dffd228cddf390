package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/quillen/chatrelay/twitchapi"
)

// HandleTwitchOAuthStart initiates the Twitch OAuth flow by redirecting to Twitch.
func (h *Handlers) HandleTwitchOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.oauthCfg == nil || h.oauthCfg.ClientID == "" || h.oauthCfg.RedirectURL == "" {
		writeError(w, http.StatusBadRequest, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)")
		return
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		writeError(w, http.StatusInternalServerError, "state gen error")
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, time.Now().Add(10*time.Minute))
	http.Redirect(w, r, h.oauthCfg.AuthCodeURL(st), http.StatusFound)
}

// HandleTwitchOAuthCallback handles the OAuth callback from Twitch and stores tokens.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauthCfg == nil {
		writeError(w, http.StatusBadRequest, "oauth not configured")
		return
	}
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		writeError(w, http.StatusBadRequest, "missing code/state")
		return
	}
	if !h.consumeOAuthState(st) {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	ctx := r.Context()
	tok, err := twitchapi.ExchangeAuthCode(ctx, h.oauthCfg, code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	expiry := twitchapi.ComputeExpiry(tok)
	if err := h.store.UpsertOAuthToken(ctx, "twitch", tok.AccessToken, tok.RefreshToken, expiry, h.cfg.TwitchScopes); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "expiry": expiry})
}
