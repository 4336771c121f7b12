// Package middleware provides HTTP middleware.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/freshet/freshet/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"

	// Client-supplied IDs longer than this are replaced, not truncated.
	maxRequestIDLen = 64
)

// RequestID is HTTP middleware that adopts a well-formed X-Request-ID from
// the request or mints a fresh UUID. The ID is stored in the context for the
// request logger and echoed on the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeRequestID(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sanitizeRequestID returns id unless it is oversized or contains bytes
// outside printable ASCII. The ID lands in log records and response headers,
// so a hostile value must never pass through verbatim.
func sanitizeRequestID(id string) string {
	if len(id) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}
