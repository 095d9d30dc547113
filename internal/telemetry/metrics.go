// Package telemetry provides application-level observability for the supervision portal.
//
// All metrics are registered against the default Prometheus registry and served
// on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<SUP_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is NOT served by the Gin router, keeping the
// scrape path off the public ingress and outside the rate-limiting middleware.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/institutions/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as institution IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Risk scoring metrics — recorded by the risk engine on every assessment.
//
// RiskAssessmentsTotal is a CounterVec with label {level} (High/Medium/Low).
// A sudden shift of the level distribution is an early signal of either a data
// problem or a genuine sector-wide deterioration.
//
// Example PromQL queries:
//   - Assessment rate by level:  sum by (level) (rate(risk_assessments_total[1h]))
//   - High-risk share:           sum(rate(risk_assessments_total{level="High"}[1h])) / sum(rate(risk_assessments_total[1h]))
var (
	RiskAssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Total number of on-demand risk score computations, by resulting level.",
		},
		[]string{"level"},
	)

	RiskAssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_assessment_duration_seconds",
			Help:    "Duration of a single risk score computation including its store reads.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Audit pipeline metrics — recorded by the best-effort audit queue.
//
// AuditEntriesWrittenTotal counts successfully persisted entries.
// AuditEntriesDroppedTotal is a CounterVec with label {reason}
// ("queue_full" or "retries_exhausted"). Any nonzero drop rate deserves an
// alert because dropped entries are unrecoverable by design.
//
// Example PromQL queries:
//   - Drop rate:      rate(audit_entries_dropped_total[5m])
//   - Alert:          increase(audit_entries_dropped_total[10m]) > 0
//   - Queue backlog:  audit_queue_depth
var (
	AuditEntriesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Total number of audit log entries successfully persisted.",
		},
	)

	AuditEntriesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_dropped_total",
			Help: "Total number of audit log entries dropped, by reason.",
		},
		[]string{"reason"},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current number of audit entries waiting in the write queue.",
		},
	)
)

// DashboardDegradedTotal counts analytics/trends responses served from the
// fixed demo payload because the backing aggregate query failed. Degraded
// responses are 200s by design, so this counter is the only way to see them.
var DashboardDegradedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dashboard_degraded_responses_total",
		Help: "Total number of dashboard responses served from the demo fallback payload, by endpoint.",
	},
	[]string{"endpoint"},
)

// ActiveSessions tracks sessions whose tokens have not yet expired. It is
// derived by the session sweeper from last-login times and the configured
// token TTL, so it lags reality by at most one sweep interval.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of user sessions whose tokens have not yet expired, as of the last sweep.",
	},
)

// FindingDueNotificationsSentTotal is incremented once per email successfully
// delivered by the finding due-date notifier background job.
var FindingDueNotificationsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "finding_due_notifications_sent_total",
		Help: "Total number of inspection finding due-date warning emails successfully sent.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
