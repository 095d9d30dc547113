// surveillance_repository.go implements SurveillanceRepository, providing database
// queries for suspicious-activity logs including the severity window read used by
// the scoring engine.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// SurveillanceRepository handles surveillance log database operations
type SurveillanceRepository struct {
	db *sql.DB
}

// NewSurveillanceRepository creates a new SurveillanceRepository
func NewSurveillanceRepository(db *sql.DB) *SurveillanceRepository {
	return &SurveillanceRepository{db: db}
}

// SurveillanceFilters contains filters for querying surveillance logs
type SurveillanceFilters struct {
	InstitutionID *string
	Severity      *string
	ActivityType  *string
	StartDate     *time.Time
	EndDate       *time.Time
}

// CreateSurveillanceLog creates a new surveillance log entry
func (r *SurveillanceRepository) CreateSurveillanceLog(ctx context.Context, log *models.SurveillanceLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()
	if log.OccurredAt.IsZero() {
		log.OccurredAt = log.CreatedAt
	}

	query := `
		INSERT INTO surveillance_logs (id, institution_id, activity_type, severity, description, reported_by, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.InstitutionID,
		log.ActivityType,
		log.Severity,
		log.Description,
		log.ReportedBy,
		log.OccurredAt,
		log.CreatedAt,
	)

	return err
}

// ListSurveillanceLogs retrieves surveillance logs with optional filters and
// pagination, most recent occurrence first.
func (r *SurveillanceRepository) ListSurveillanceLogs(ctx context.Context, filters SurveillanceFilters, limit, offset int) ([]*models.SurveillanceLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM surveillance_logs WHERE 1=1`
	query := `
		SELECT id, institution_id, activity_type, severity, description, reported_by, occurred_at, created_at
		FROM surveillance_logs
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.InstitutionID != nil {
		countQuery += fmt.Sprintf(` AND institution_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND institution_id = $%d`, paramIndex)
		args = append(args, *filters.InstitutionID)
		paramIndex++
	}

	if filters.Severity != nil {
		countQuery += fmt.Sprintf(` AND severity = $%d`, paramIndex)
		query += fmt.Sprintf(` AND severity = $%d`, paramIndex)
		args = append(args, *filters.Severity)
		paramIndex++
	}

	if filters.ActivityType != nil {
		countQuery += fmt.Sprintf(` AND activity_type = $%d`, paramIndex)
		query += fmt.Sprintf(` AND activity_type = $%d`, paramIndex)
		args = append(args, *filters.ActivityType)
		paramIndex++
	}

	if filters.StartDate != nil {
		countQuery += fmt.Sprintf(` AND occurred_at >= $%d`, paramIndex)
		query += fmt.Sprintf(` AND occurred_at >= $%d`, paramIndex)
		args = append(args, *filters.StartDate)
		paramIndex++
	}

	if filters.EndDate != nil {
		countQuery += fmt.Sprintf(` AND occurred_at <= $%d`, paramIndex)
		query += fmt.Sprintf(` AND occurred_at <= $%d`, paramIndex)
		args = append(args, *filters.EndDate)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]*models.SurveillanceLog, 0)
	for rows.Next() {
		log := &models.SurveillanceLog{}
		err := rows.Scan(
			&log.ID,
			&log.InstitutionID,
			&log.ActivityType,
			&log.Severity,
			&log.Description,
			&log.ReportedBy,
			&log.OccurredAt,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}

// SeveritiesSince returns the severities of every log recorded against an
// institution since the given time. The scoring engine weighs these without
// needing the full rows.
func (r *SurveillanceRepository) SeveritiesSince(ctx context.Context, institutionID string, since time.Time) ([]string, error) {
	query := `
		SELECT severity FROM surveillance_logs
		WHERE institution_id = $1 AND occurred_at >= $2
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	severities := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		severities = append(severities, s)
	}

	return severities, rows.Err()
}
