package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"option-lattice-go/payoff"
)

func TestPricingRecorder(t *testing.T) {
	PricingsTotal.Reset()
	PricingErrors.Reset()

	var rec PricingRecorder
	rec.Observe(payoff.Call, 100, 2*time.Millisecond)
	rec.Observe(payoff.Call, 1000, 5*time.Millisecond)
	rec.Observe(payoff.Put, 100, time.Millisecond)
	rec.Fail("arbitrage")

	if got := testutil.ToFloat64(PricingsTotal.WithLabelValues("call")); got != 2 {
		t.Errorf("Expected PricingsTotal[call] to be 2, got %f", got)
	}
	if got := testutil.ToFloat64(PricingsTotal.WithLabelValues("put")); got != 1 {
		t.Errorf("Expected PricingsTotal[put] to be 1, got %f", got)
	}
	if got := testutil.ToFloat64(PricingErrors.WithLabelValues("arbitrage")); got != 1 {
		t.Errorf("Expected PricingErrors[arbitrage] to be 1, got %f", got)
	}
	if n := testutil.CollectAndCount(PricingLatency); n != 2 {
		t.Errorf("Expected 2 latency series, got %d", n)
	}
}

func TestUpdateConvergence(t *testing.T) {
	ConvergenceAbsError.Reset()
	UpdateConvergence("atm_call", 0.0002)
	if got := testutil.ToFloat64(ConvergenceAbsError.WithLabelValues("atm_call")); got != 0.0002 {
		t.Errorf("Expected convergence error 0.0002, got %f", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	ConfigReloads.WithLabelValues("ok").Inc()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "lattice_config_reloads_total") {
		t.Errorf("expected lattice_config_reloads_total in exposition")
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	HTTPRequestsTotal.Reset()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/scenarios/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, name := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+name, nil))
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/v1/scenarios/{name}", "404")); got != 2 {
		t.Errorf("Expected 2 requests on route pattern, got %f", got)
	}
}

func TestMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})

	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/scan/"+strconv.Itoa(i), nil))
	}
	if n := testutil.CollectAndCount(HTTPRequestsTotal); n != 1 {
		t.Errorf("Expected a single series for unmatched paths, got %d", n)
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", UnmatchedRoute, "404")); got != 50 {
		t.Errorf("Expected 50 unmatched requests, got %f", got)
	}
	if n := testutil.CollectAndCount(HTTPRequestDuration); n != 1 {
		t.Errorf("Expected a single duration series, got %d", n)
	}
}
