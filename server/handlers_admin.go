package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillen/chatrelay/db"
)

type upsertCommandRequest struct {
	Channel   string `json:"channel"`
	Name      string `json:"name"`
	Response  string `json:"response"`
	CreatedBy string `json:"created_by,omitempty"`
	ModOnly   bool   `json:"mod_only,omitempty"`
}

// HandleAdminUpsertCommand creates or replaces a channel command.
func (h *Handlers) HandleAdminUpsertCommand(w http.ResponseWriter, r *http.Request) {
	var req upsertCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Channel == "" || req.Name == "" || req.Response == "" {
		writeError(w, http.StatusBadRequest, "channel, name and response are required")
		return
	}
	cmd := &db.Command{
		Channel:   req.Channel,
		Name:      req.Name,
		Response:  req.Response,
		CreatedBy: req.CreatedBy,
		ModOnly:   req.ModOnly,
	}
	if err := h.store.UpsertCommand(r.Context(), cmd); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// HandleAdminDeleteCommand removes a channel command.
func (h *Handlers) HandleAdminDeleteCommand(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	name := r.PathValue("name")
	if channel == "" || name == "" {
		writeError(w, http.StatusBadRequest, "missing channel or name")
		return
	}
	err := h.store.DeleteCommand(r.Context(), channel, name)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "command not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
