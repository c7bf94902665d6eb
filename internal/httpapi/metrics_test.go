package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	return rr.Body.Bytes()
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}
	body := scrape(t)
	if !bytes.Contains(body, []byte("storyd_http_requests_total")) {
		t.Fatal("expected storyd_http_requests_total in metrics")
	}
	if !bytes.Contains(body, []byte(`status="418"`)) {
		t.Fatal("expected status label 418")
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/model-status", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/does-not-exist-42", nil))

	body := scrape(t)
	if !bytes.Contains(body, []byte(`path="/model-status"`)) {
		t.Fatal("expected route pattern label for /model-status")
	}
	if bytes.Contains(body, []byte("does-not-exist-42")) {
		t.Fatal("raw unmatched path leaked into labels")
	}
	if !bytes.Contains(body, []byte(`path="unmatched"`)) {
		t.Fatal("expected unmatched label")
	}
}
