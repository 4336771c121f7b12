package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/freshet/freshet/internal/logger"
)

func serveWithRequestID(t *testing.T, headerID string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if headerID != "" {
		req.Header.Set("X-Request-ID", headerID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, ctxID
}

func TestRequestIDGenerated(t *testing.T) {
	rec, ctxID := serveWithRequestID(t, "")

	respID := rec.Header().Get("X-Request-ID")
	if respID == "" {
		t.Fatal("expected X-Request-ID in response header")
	}
	if _, err := uuid.Parse(respID); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", respID, err)
	}
	if ctxID != respID {
		t.Errorf("context ID %q differs from header ID %q", ctxID, respID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	const existingID = "my-custom-id-123"

	rec, ctxID := serveWithRequestID(t, existingID)

	if ctxID != existingID {
		t.Errorf("expected %q in context, got %q", existingID, ctxID)
	}
	if got := rec.Header().Get("X-Request-ID"); got != existingID {
		t.Errorf("expected %q in response header, got %q", existingID, got)
	}
}

func TestRequestIDRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"control bytes": "abc\x07def",
		"oversized":     strings.Repeat("x", maxRequestIDLen+1),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := serveWithRequestID(t, bad)

			got := rec.Header().Get("X-Request-ID")
			if got == bad {
				t.Fatalf("malformed client ID %q passed through", bad)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("replacement ID %q is not a UUID: %v", got, err)
			}
		})
	}
}
