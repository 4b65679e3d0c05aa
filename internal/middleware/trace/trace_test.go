package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "household/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(applog.New(applog.Config{Output: &buf, JSON: true}), nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
	}
	if !strings.Contains(buf.String(), `"status_code":418`) {
		t.Fatalf("completion not logged: %s", buf.String())
	}
	if m.TotalRequests() != 1 {
		t.Fatalf("TotalRequests = %d", m.TotalRequests())
	}
}

func TestMiddleware_HonoursIncomingID(t *testing.T) {
	m := NewMiddleware(applog.New(applog.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		incoming string
		keep     bool
	}{
		{"abc-123", true},
		{"bad id with spaces", false},
		{strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.incoming)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get(HeaderRequestID)
		if (got == tt.incoming) != tt.keep {
			t.Errorf("incoming %q -> %q, keep=%v", tt.incoming, got, tt.keep)
		}
	}
}
