// analytics_repository.go implements AnalyticsRepository, the aggregate queries
// behind the dashboard. These queries span several tables, so a failure here puts
// the dashboard into degraded mode rather than failing the page.
package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// AnalyticsRepository handles dashboard aggregate queries
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new AnalyticsRepository
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// findingCounts is the combined open/overdue finding query result.
type findingCounts struct {
	Open    int `db:"open_count"`
	Overdue int `db:"overdue_count"`
}

// GetAnalytics returns the aggregate snapshot behind the dashboard cards
func (r *AnalyticsRepository) GetAnalytics(ctx context.Context) (*models.DashboardAnalytics, error) {
	instStats, err := NewInstitutionRepository(r.db.DB).GetInstitutionStatistics(ctx)
	if err != nil {
		return nil, err
	}

	analytics := &models.DashboardAnalytics{Institutions: *instStats}
	now := time.Now()

	var findings findingCounts
	err = r.db.GetContext(ctx, &findings, `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'Closed') AS open_count,
			COUNT(*) FILTER (WHERE status <> 'Closed' AND due_at IS NOT NULL AND due_at < $1) AS overdue_count
		FROM inspection_findings
	`, now)
	if err != nil {
		return nil, err
	}
	analytics.OpenFindings = findings.Open
	analytics.OverdueFindings = findings.Overdue

	err = r.db.GetContext(ctx, &analytics.HighSeverityLogs, `
		SELECT COUNT(*) FROM surveillance_logs
		WHERE severity = 'High' AND occurred_at >= $1
	`, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &analytics.AvgRiskScore,
		`SELECT COALESCE(AVG(risk_score), 0) FROM institutions WHERE status <> 'Revoked'`)
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &analytics.AuditEntries24h,
		`SELECT COUNT(*) FROM audit_logs WHERE created_at >= $1`, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	return analytics, nil
}

// GetTrends returns per-month activity for the last given number of months,
// oldest month first. Months with no activity still appear with zero counts.
func (r *AnalyticsRepository) GetTrends(ctx context.Context, months int) ([]*models.TrendPoint, error) {
	query := `
		WITH m AS (
			SELECT date_trunc('month', NOW()) - (n || ' month')::interval AS month
			FROM generate_series($1::int - 1, 0, -1) AS n
		)
		SELECT
			to_char(m.month, 'YYYY-MM') AS month,
			COALESCE(l.cnt, 0) AS log_count,
			COALESCE(f.cnt, 0) AS findings_new,
			COALESCE(p.avg_score, 0) AS avg_score
		FROM m
		LEFT JOIN (
			SELECT date_trunc('month', occurred_at) AS month, COUNT(*) AS cnt
			FROM surveillance_logs GROUP BY 1
		) l ON l.month = m.month
		LEFT JOIN (
			SELECT date_trunc('month', created_at) AS month, COUNT(*) AS cnt
			FROM inspection_findings GROUP BY 1
		) f ON f.month = m.month
		LEFT JOIN (
			SELECT date_trunc('month', created_at) AS month, AVG(score) AS avg_score
			FROM risk_profiles GROUP BY 1
		) p ON p.month = m.month
		ORDER BY m.month
	`

	points := make([]*models.TrendPoint, 0, months)
	if err := r.db.SelectContext(ctx, &points, query, months); err != nil {
		return nil, err
	}
	return points, nil
}
