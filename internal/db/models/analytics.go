// Package models - analytics.go defines aggregate shapes served by the
// dashboard endpoints.
package models

// DashboardAnalytics is the aggregate snapshot behind the dashboard cards.
type DashboardAnalytics struct {
	Institutions     InstitutionStatistics
	OpenFindings     int
	OverdueFindings  int
	HighSeverityLogs int // Last 30 days
	AvgRiskScore     float64
	AuditEntries24h  int
}

// TrendPoint is one month of activity in a dashboard trend series.
// Tagged for sqlx struct scanning in the analytics repository.
type TrendPoint struct {
	Month       string  `db:"month"` // "2026-03"
	LogCount    int     `db:"log_count"`
	FindingsNew int     `db:"findings_new"`
	AvgScore    float64 `db:"avg_score"`
}
