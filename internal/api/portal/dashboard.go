// dashboard.go implements the aggregate analytics and trends endpoints.
//
// Both endpoints degrade instead of failing: when the backing aggregate query
// errors, a fixed demo payload is returned with a 200 so the dashboard stays
// populated. Degraded responses are observable only through the
// dashboard_degraded_responses_total counter and a warning log line.
package portal

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/respond"
	"github.com/supervision-portal/supervision-portal/internal/store"
	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

// defaultTrendMonths is the trailing window served when the client does not
// ask for a specific one.
const defaultTrendMonths = 6

// DashboardHandlers handles dashboard aggregate endpoints
type DashboardHandlers struct {
	store store.Store
}

// NewDashboardHandlers creates a new DashboardHandlers instance
func NewDashboardHandlers(st store.Store) *DashboardHandlers {
	return &DashboardHandlers{store: st}
}

// demoAnalytics is the fixed degraded-mode analytics payload.
func demoAnalytics() gin.H {
	return gin.H{
		"institutions": gin.H{
			"total":     42,
			"active":    35,
			"suspended": 4,
			"revoked":   2,
			"pending":   1,
			"high_risk": 8,
		},
		"open_findings":      17,
		"overdue_findings":   3,
		"high_severity_logs": 6,
		"avg_risk_score":     48.5,
		"audit_entries_24h":  120,
		"degraded":           true,
	}
}

// demoTrends is the fixed degraded-mode trend series.
func demoTrends(months int) []gin.H {
	series := []gin.H{
		{"month": "2026-03", "log_count": 14, "findings_new": 5, "avg_score": 46.2},
		{"month": "2026-04", "log_count": 18, "findings_new": 7, "avg_score": 47.8},
		{"month": "2026-05", "log_count": 11, "findings_new": 4, "avg_score": 45.1},
		{"month": "2026-06", "log_count": 21, "findings_new": 9, "avg_score": 49.3},
		{"month": "2026-07", "log_count": 16, "findings_new": 6, "avg_score": 48.0},
		{"month": "2026-08", "log_count": 19, "findings_new": 8, "avg_score": 50.2},
	}
	if months < len(series) {
		return series[len(series)-months:]
	}
	return series
}

// AnalyticsHandler returns the aggregate snapshot behind the dashboard cards.
// POST /api/v1/dashboard/analytics
func (h *DashboardHandlers) AnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		analytics, err := h.store.Analytics(c.Request.Context())
		if err != nil {
			slog.Warn("dashboard analytics degraded to demo payload", "error", err)
			telemetry.DashboardDegradedTotal.WithLabelValues("analytics").Inc()
			respond.OK(c, demoAnalytics())
			return
		}

		respond.OK(c, gin.H{
			"institutions": gin.H{
				"total":     analytics.Institutions.Total,
				"active":    analytics.Institutions.Active,
				"suspended": analytics.Institutions.Suspended,
				"revoked":   analytics.Institutions.Revoked,
				"pending":   analytics.Institutions.Pending,
				"high_risk": analytics.Institutions.HighRisk,
			},
			"open_findings":      analytics.OpenFindings,
			"overdue_findings":   analytics.OverdueFindings,
			"high_severity_logs": analytics.HighSeverityLogs,
			"avg_risk_score":     analytics.AvgRiskScore,
			"audit_entries_24h":  analytics.AuditEntries24h,
		})
	}
}

// TrendsHandler returns the monthly activity series, oldest month first.
// POST /api/v1/dashboard/trends?months=
func (h *DashboardHandlers) TrendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		months, _ := strconv.Atoi(c.DefaultQuery("months", strconv.Itoa(defaultTrendMonths)))
		if months < 1 || months > 24 {
			months = defaultTrendMonths
		}

		points, err := h.store.Trends(c.Request.Context(), months)
		if err != nil {
			slog.Warn("dashboard trends degraded to demo payload", "error", err)
			telemetry.DashboardDegradedTotal.WithLabelValues("trends").Inc()
			respond.OK(c, gin.H{"trends": demoTrends(months), "degraded": true})
			return
		}

		rows := make([]gin.H, 0, len(points))
		for _, p := range points {
			rows = append(rows, gin.H{
				"month":        p.Month,
				"log_count":    p.LogCount,
				"findings_new": p.FindingsNew,
				"avg_score":    p.AvgScore,
			})
		}
		respond.OK(c, gin.H{"trends": rows})
	}
}
