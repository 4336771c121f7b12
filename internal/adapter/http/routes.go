package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all routes on the given chi router. The websocket
// handler is passed in so the transport package does not depend on this one.
func MountRoutes(r chi.Router, h *Handlers, wsHandler http.Handler) {
	r.Get("/healthz", h.HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Get("/pages", h.HandleListPages)
		r.Get("/message", h.HandleFetchCachedMessage)
	})

	r.Handle("/ws", wsHandler)
}
