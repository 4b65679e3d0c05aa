package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "household/internal/log"
	"household/internal/report"
	"household/internal/services"
	"household/internal/storage"
)

type fakePublisher struct {
	calls int
}

func (p *fakePublisher) PublishReportExport(context.Context, int, int, string) error {
	p.calls++
	return nil
}

type testEnv struct {
	srv       *Server
	ts        *httptest.Server
	reportDir string
}

func newTestServer(t *testing.T, opts ...services.Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	reportDir := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		t.Fatal(err)
	}
	sink := report.NewRouter(report.NewXLSXSink(report.DefaultCurrencyFormat))
	opts = append([]services.Option{services.WithReportDir(reportDir), services.WithConfinedDestinations()}, opts...)
	svc := services.NewLedgerService(repo, services.NewAggregator(repo, 8, time.Minute), sink, opts...)

	srv := NewServer(":0", svc, Options{
		Logger: applog.New(applog.Config{Output: io.Discard}),
		Ready:  repo.Ping,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, ts: ts, reportDir: reportDir}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, body := env.do(t, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, resp.StatusCode, body)
		}
		if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id", path)
		}
	}
}

func TestReadyFailure(t *testing.T) {
	env := newTestServer(t)
	env.srv.ready = func(context.Context) error { return errors.New("db gone") }
	resp, _ := env.do(t, http.MethodGet, "/readyz", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", resp.StatusCode)
	}
}

func TestCreateExpense_FixedExpandsAndTotals(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.do(t, http.MethodPost, "/api/expenses",
		`{"date":"2025-01-15","kind":"fixed","category":"🏠 Housing","description":"Rent","amount":"1200"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	created := decode[createExpenseResponse](t, body)
	if created.Occurrences != 12 || len(created.IDs) != 12 {
		t.Fatalf("created = %+v, want 12 occurrences", created)
	}

	resp, body = env.do(t, http.MethodPut, "/api/salaries", `{"primary":"3500","secondary":2000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("salaries status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/periods/2025/6/totals", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("totals status=%d body=%s", resp.StatusCode, body)
	}
	totals := decode[totalsView](t, body)
	if totals.Income != "5500.00" || totals.Expense != "1200.00" || totals.Balance != "4300.00" {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad date", `{"date":"31/02/2025","kind":"Variable","category":"Food","amount":"10"}`, http.StatusUnprocessableEntity},
		{"bad kind", `{"date":"01/02/2025","kind":"Weekly","category":"Food","amount":"10"}`, http.StatusUnprocessableEntity},
		{"bad amount", `{"date":"01/02/2025","kind":"Variable","category":"Food","amount":"ten"}`, http.StatusUnprocessableEntity},
		{"no category", `{"date":"01/02/2025","kind":"Variable","amount":"10"}`, http.StatusUnprocessableEntity},
		{"months not int", `{"date":"01/02/2025","kind":"Variable","category":"Food","amount":"10","recurrence_months":"x"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"date":`, http.StatusUnprocessableEntity},
		{"months over cap", `{"date":"01/02/2025","kind":"Variable","category":"Food","amount":"10","recurrence_months":121}`, http.StatusUnprocessableEntity},
		{"months huge", `{"date":"15/01/2025","kind":"Variable","category":"Food","amount":"1","recurrence_months":4611686018427387904}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status=%d want %d body=%s", resp.StatusCode, tt.want, body)
			}
			eb := decode[ErrorBody](t, body)
			if eb.Kind != "validation" || eb.RequestID == "" {
				t.Errorf("error body = %+v", eb)
			}
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	env := newTestServer(t)

	_, body := env.do(t, http.MethodPost, "/api/expenses",
		`{"date":"03/03/2025","kind":"Variable","category":"Food","description":"Market","amount":"45,90"}`)
	id := decode[createExpenseResponse](t, body).IDs[0]

	path := "/api/expenses/" + jsonInt(id)
	if resp, _ := env.do(t, http.MethodDelete, path, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, path, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, "/api/expenses/abc", ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad id status=%d, want 422", resp.StatusCode)
	}
}

func TestPeriod(t *testing.T) {
	env := newTestServer(t)
	env.do(t, http.MethodPost, "/api/expenses",
		`{"date":"10/03/2025","kind":"Variable","category":"🍔 Food","description":"Dinner","amount":"30"}`)
	env.do(t, http.MethodPost, "/api/expenses",
		`{"date":"05/03/2025","kind":"Variable","category":"Food","description":"Lunch","amount":"12.5"}`)
	env.do(t, http.MethodPut, "/api/extra-incomes",
		`{"month":3,"year":2025,"description":"Bonus","amount":"100"}`)

	resp, body := env.do(t, http.MethodGet, "/api/periods/2025/3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	p := decode[periodResponse](t, body)
	if len(p.Expenses) != 2 || p.Expenses[0].Description != "Lunch" {
		t.Fatalf("expenses not sorted by date: %+v", p.Expenses)
	}
	if p.Expense != "42.50" || p.Income != "100.00" || p.Balance != "57.50" {
		t.Fatalf("totals = %+v", p.totalsView)
	}
	if len(p.ByCategory) != 1 || p.ByCategory[0].Amount != "42.50" {
		t.Fatalf("by category = %+v", p.ByCategory)
	}
	if len(p.ExtraIncomes) != 1 {
		t.Fatalf("extra incomes = %+v", p.ExtraIncomes)
	}

	for _, path := range []string{"/api/periods/2025/13", "/api/periods/0/1", "/api/periods/x/1/totals"} {
		if resp, _ := env.do(t, http.MethodGet, path, ""); resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%s status=%d, want 422", path, resp.StatusCode)
		}
	}
}

func TestCategories(t *testing.T) {
	env := newTestServer(t)

	resp, body := env.do(t, http.MethodPost, "/api/categories", `{"name":"Pets","icon":"🐶"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.StatusCode, body)
	}
	if resp, _ := env.do(t, http.MethodPost, "/api/categories", `{"name":"Pets"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status=%d, want 409", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodGet, "/api/categories", "")
	cats := decode[[]categoryView](t, body)
	found := false
	for _, c := range cats {
		if c.Name == "Pets" && c.Label == "🐶 Pets" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Pets not listed: %+v", cats)
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/categories/Pets", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodDelete, "/api/categories/Pets", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", resp.StatusCode)
	}
}

func TestExportReport_Inline(t *testing.T) {
	env := newTestServer(t)
	env.do(t, http.MethodPost, "/api/expenses",
		`{"date":"01/04/2025","kind":"Variable","category":"Food","description":"Market","amount":"80"}`)

	resp, body := env.do(t, http.MethodPost, "/api/reports", `{"month":4,"year":2025}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	out := decode[exportResponse](t, body)
	want := filepath.Join(env.reportDir, "report_04-2025.xlsx")
	if out.Destination != want || out.Queued {
		t.Fatalf("export = %+v, want destination %s", out, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("report not written: %v", err)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/reports", `{"month":4,"year":2025,"destination":"ftp://host/x"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("unknown scheme status=%d, want 502", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/reports", `{"month":0,"year":2025}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad period status=%d, want 422", resp.StatusCode)
	}
	if got := env.srv.Stats()["exports_inline"]; got != 1 {
		t.Errorf("exports_inline = %d, want 1", got)
	}
}

func TestExportReport_DestinationConfined(t *testing.T) {
	env := newTestServer(t)

	escaped := filepath.Join(filepath.Dir(env.reportDir), "escaped.xlsx")
	for _, dest := range []string{
		filepath.Join(env.reportDir, "..", "..", "escaped.xlsx"),
		filepath.Join(env.reportDir, "..", "escaped.xlsx"),
		"../escaped.xlsx",
		escaped,
	} {
		body, _ := json.Marshal(map[string]any{"month": 3, "year": 2025, "destination": dest})
		resp, out := env.do(t, http.MethodPost, "/api/reports", string(body))
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status=%d body=%s, want 422", dest, resp.StatusCode, out)
		}
	}
	if _, err := os.Stat(escaped); !os.IsNotExist(err) {
		t.Fatalf("report written outside the report directory: %v", err)
	}

	resp, body := env.do(t, http.MethodPost, "/api/reports", `{"month":3,"year":2025,"destination":"march.xlsx"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relative destination status=%d body=%s", resp.StatusCode, body)
	}
	want := filepath.Join(env.reportDir, "march.xlsx")
	if out := decode[exportResponse](t, body); out.Destination != want {
		t.Fatalf("destination = %q, want %q", out.Destination, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestExportReport_AsyncRejectsEscapingDestination(t *testing.T) {
	pub := &fakePublisher{}
	env := newTestServer(t, services.WithPublisher(pub))

	resp, body := env.do(t, http.MethodPost, "/api/reports", `{"month":4,"year":2025,"async":true,"destination":"/etc/household.xlsx"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s, want 422", resp.StatusCode, body)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher calls = %d, want 0", pub.calls)
	}
}

func TestExportReport_Async(t *testing.T) {
	pub := &fakePublisher{}
	env := newTestServer(t, services.WithPublisher(pub))

	resp, body := env.do(t, http.MethodPost, "/api/reports", `{"month":4,"year":2025,"async":true}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if out := decode[exportResponse](t, body); !out.Queued {
		t.Fatalf("export = %+v, want queued", out)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d, want 1", pub.calls)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestServer(t)
	env.srv.guard.writes = 2

	var last int
	for i := 0; i < 3; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/categories", `{"name":"C`+jsonInt(int64(i))+`"}`)
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third write status=%d, want 429", last)
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/categories", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", resp.StatusCode)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/healthz", bytes.NewReader(nil))
	req.Header.Set("X-Request-ID", "client-abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "client-abc" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
