package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"costboard/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.9" }, log.Discard())

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/brands", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a UUID", seen)
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.FailedRequests != 1 {
		t.Errorf("GetMetrics() = %+v", got)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	incoming := uuid.NewString()

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for _, tt := range []struct {
		header string
		keep   bool
	}{
		{incoming, true},
		{"not-a-uuid", false},
	} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, tt.header)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if (seen == tt.header) != tt.keep {
			t.Errorf("header %q: got id %q, keep=%v", tt.header, seen, tt.keep)
		}
	}
}
