package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"household/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"n":1}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with body %q", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorFromErr(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantKind string
	}{
		{core.ErrInvalidMonth, http.StatusUnprocessableEntity, "validation"},
		{fmt.Errorf("add category: %w", core.ErrDuplicate), http.StatusConflict, "duplicate"},
		{fmt.Errorf("delete expense 9: %w", core.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("export: %w", core.ErrIO), http.StatusBadGateway, "io"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromErr(tt.err).Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), `"kind":"`+tt.wantKind+`"`) {
				t.Errorf("Body = %s", w.Body.String())
			}
		})
	}
}

func TestErrorFromErr_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFromErr(errors.New("sqlite: secret path /var/db")).Write(w)

	if strings.Contains(w.Body.String(), "secret") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}

func TestTooManyRequestsError(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError().Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Error("Retry-After header not set")
	}
}
