package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewServerMetrics(prometheus.NewRegistry(), "test")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, path := range []string{"/orders/1", "/orders/2", "/random/a", "/random/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if n := countSeries(t, m, "/orders/{id}", "200"); n != 2 {
		t.Fatalf("route series count = %v", n)
	}
	if n := countSeries(t, m, unmatchedRoute, "404"); n != 2 {
		t.Fatalf("unmatched series count = %v", n)
	}
	if got := seriesCount(t, m); got != 2 {
		t.Fatalf("request series = %d, want 2", got)
	}
}

func countSeries(t *testing.T, m *ServerMetrics, route, status string) float64 {
	t.Helper()
	mfs, err := m.gatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "storefront_test_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == route && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func seriesCount(t *testing.T, m *ServerMetrics) int {
	t.Helper()
	mfs, err := m.gatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "storefront_test_http_requests_total" {
			return len(mf.GetMetric())
		}
	}
	return 0
}
