package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

func newMetricsRouter(status int) *gin.Engine {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/institutions/:id", func(c *gin.Context) { c.Status(status) })
	return r
}

func serveMetrics(r *gin.Engine, path string) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
}

// histogramCount returns the sample count for the given label values, 0 when
// the series has not been observed yet.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, lvs ...string) uint64 {
	t.Helper()
	obs, err := hv.GetMetricWithLabelValues(lvs...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var dm dto.Metric
	if err := obs.(prometheus.Histogram).Write(&dm); err != nil {
		t.Fatalf("histogram Write: %v", err)
	}
	return dm.GetHistogram().GetSampleCount()
}

// ---------------------------------------------------------------------------
// MetricsMiddleware tests
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_CountsRequestsByRouteTemplate(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/institutions/:id", "200")
	before := testutil.ToFloat64(counter)

	serveMetrics(newMetricsRouter(http.StatusOK), "/institutions/inst-42")

	if after := testutil.ToFloat64(counter); after-before != 1 {
		t.Errorf("http_requests_total delta = %.0f, want 1", after-before)
	}
}

func TestMetricsMiddleware_DoesNotUseRawURLAsLabel(t *testing.T) {
	serveMetrics(newMetricsRouter(http.StatusOK), "/institutions/inst-42")

	// A series keyed by the concrete URL would mean unbounded cardinality.
	raw := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/institutions/inst-42", "200")
	if got := testutil.ToFloat64(raw); got != 0 {
		t.Errorf("raw-URL series has %0.f samples, want 0", got)
	}
}

func TestMetricsMiddleware_RecordsErrorStatus(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/institutions/:id", "500")
	before := testutil.ToFloat64(counter)

	serveMetrics(newMetricsRouter(http.StatusInternalServerError), "/institutions/x")

	if after := testutil.ToFloat64(counter); after-before != 1 {
		t.Errorf("http_requests_total{status=500} delta = %.0f, want 1", after-before)
	}
}

func TestMetricsMiddleware_UnmatchedRouteUsesSentinel(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "<no-route>", "404")
	before := testutil.ToFloat64(counter)

	r := gin.New()
	r.Use(MetricsMiddleware())
	serveMetrics(r, "/does-not-exist")

	if after := testutil.ToFloat64(counter); after-before != 1 {
		t.Errorf("<no-route> series delta = %.0f, want 1", after-before)
	}
}

func TestMetricsMiddleware_ObservesDuration(t *testing.T) {
	before := histogramCount(t, telemetry.HTTPRequestDuration, "GET", "/institutions/:id")

	serveMetrics(newMetricsRouter(http.StatusOK), "/institutions/inst-1")

	after := histogramCount(t, telemetry.HTTPRequestDuration, "GET", "/institutions/:id")
	if after <= before {
		t.Errorf("duration sample count did not increase: before=%d after=%d", before, after)
	}
}
