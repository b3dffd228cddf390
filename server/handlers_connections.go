package server

import (
	"net/http"

	"github.com/quillen/chatrelay/db"
	"github.com/quillen/chatrelay/pagination"
	"github.com/quillen/chatrelay/telemetry"
)

// HandleMessagesConnection serves one page of a channel's recorded chat
// messages as a Relay connection (edges + pageInfo).
func (h *Handlers) HandleMessagesConnection(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if channel == "" {
		writeError(w, http.StatusBadRequest, "missing channel")
		return
	}
	p, err := pagination.NewPaginator(db.KindMessage, db.MessageSortOrder, h.store.Messages(channel))
	if err != nil {
		writePageError(w, err)
		return
	}
	conn, err := p.Page(r.Context(), h.connectionArgs(r))
	if err != nil {
		writePageError(w, err)
		return
	}
	telemetry.IncPageServed(db.CollMessages)
	writeJSON(w, http.StatusOK, conn)
}

// HandleCommandsConnection serves one page of a channel's commands as a
// Relay connection, ordered by name.
func (h *Handlers) HandleCommandsConnection(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if channel == "" {
		writeError(w, http.StatusBadRequest, "missing channel")
		return
	}
	p, err := pagination.NewPaginator(db.KindCommand, db.CommandSortOrder, h.store.Commands(channel))
	if err != nil {
		writePageError(w, err)
		return
	}
	conn, err := p.Page(r.Context(), h.connectionArgs(r))
	if err != nil {
		writePageError(w, err)
		return
	}
	telemetry.IncPageServed(db.CollCommands)
	writeJSON(w, http.StatusOK, conn)
}
