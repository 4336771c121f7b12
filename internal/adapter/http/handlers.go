// Package http exposes the REST surface of the server: health, page
// discovery, and the forward message cache fetch endpoint used by clients to
// resolve reference messages.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/freshet/freshet/internal/service"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	runtime  *service.Runtime
	pages    *service.PageRegistry
	fwdCache *service.ForwardMsgCache
	log      *slog.Logger
}

// NewHandlers builds the handler set.
func NewHandlers(runtime *service.Runtime, pages *service.PageRegistry, fwdCache *service.ForwardMsgCache, log *slog.Logger) *Handlers {
	return &Handlers{runtime: runtime, pages: pages, fwdCache: fwdCache, log: log}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// HandleHealth reports liveness and the active session count.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.runtime.SessionCount(),
	})
}

type pageInfo struct {
	Name           string `json:"name"`
	PageScriptHash string `json:"page_script_hash"`
	IsDefault      bool   `json:"is_default"`
}

// HandleListPages returns all registered pages so clients can build
// navigation before opening a websocket.
func (h *Handlers) HandleListPages(w http.ResponseWriter, _ *http.Request) {
	def := h.pages.Default()

	pages := h.pages.Pages()
	out := make([]pageInfo, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageInfo{
			Name:           p.Name,
			PageScriptHash: p.Hash,
			IsDefault:      def != nil && p.Hash == def.Hash,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": out})
}

// HandleFetchCachedMessage serves the full payload for a reference forward
// message. Clients hit this when they receive a hash they have not seen.
func (h *Handlers) HandleFetchCachedMessage(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if hash == "" {
		writeError(w, http.StatusBadRequest, "hash is required")
		return
	}

	data, ok, err := h.fwdCache.Fetch(r.Context(), hash)
	if err != nil {
		h.log.Error("cached message fetch failed", "hash", hash, "error", err)
		writeError(w, http.StatusInternalServerError, "cache fetch failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-msgpack")
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
