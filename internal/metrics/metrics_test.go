package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	for _, want := range []string{
		`alergo_http_requests_total{code="200",method="GET"} 2`,
		`alergo_http_requests_total{code="404",method="GET"} 1`,
		`alergo_http_request_duration_seconds_count{method="GET"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.StockUpdate(OutcomeApplied)
	m.StockUpdate(OutcomeInsufficient)
	m.ExtractClosed(true)
	m.Notification(OutcomeSkipped)

	out := scrape(t, m)
	for _, want := range []string{
		`alergo_stock_updates_total{outcome="applied"} 1`,
		`alergo_stock_updates_total{outcome="insufficient"} 1`,
		`alergo_panel_extracts_closed_total{replaced="true"} 1`,
		`alergo_notifications_sent_total{outcome="skipped"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.StockUpdate(OutcomeApplied)
	m.ExtractClosed(false)
	m.Notification(OutcomeSent)

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected nil middleware to pass through")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil handler, got %d", rec.Code)
	}
}
