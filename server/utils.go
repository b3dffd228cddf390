package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quillen/chatrelay/pagination"
)

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// writeJSON encodes v with the standard headers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

// writeError emits the error envelope used by all API endpoints.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// connectionArgs reads the Relay arguments (first/after/last/before) from the
// query string. When neither count is present it defaults to first=def;
// explicit counts are capped at max. Invalid combinations are left for the
// paginator to reject so the error taxonomy lives in one place.
func (h *Handlers) connectionArgs(r *http.Request) pagination.Args {
	args := pagination.Args{
		After:  r.URL.Query().Get("after"),
		Before: r.URL.Query().Get("before"),
	}
	q := r.URL.Query()
	if q.Has("first") {
		n := min(parseIntQuery(r, "first", h.cfg.DefaultPageSize), h.cfg.MaxPageSize)
		args.First = &n
	}
	if q.Has("last") {
		n := min(parseIntQuery(r, "last", h.cfg.DefaultPageSize), h.cfg.MaxPageSize)
		args.Last = &n
	}
	if args.First == nil && args.Last == nil {
		n := h.cfg.DefaultPageSize
		args.First = &n
	}
	return args
}

// writePageError maps the pagination error taxonomy onto HTTP statuses:
// caller mistakes (bad arguments, undecodable cursors) are 400s, backing
// store failures are 500s.
func writePageError(w http.ResponseWriter, err error) {
	var storeErr *pagination.StoreError
	switch {
	case errors.Is(err, pagination.ErrInvalidArgument), errors.Is(err, pagination.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &storeErr):
		slog.Error("connection page failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "store query failed")
	default:
		slog.Error("connection page failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
