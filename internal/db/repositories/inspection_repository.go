// inspection_repository.go implements InspectionRepository, providing database queries
// for inspection findings: creation, filtered listing, status transitions, the open
// count used by the scoring engine, and the due-soon read used by the notifier job.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// InspectionRepository handles inspection finding database operations
type InspectionRepository struct {
	db *sql.DB
}

// NewInspectionRepository creates a new InspectionRepository
func NewInspectionRepository(db *sql.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// InspectionFilters contains filters for querying inspection findings
type InspectionFilters struct {
	InstitutionID *string
	Status        *string
	Severity      *string
	InspectorID   *string
}

// FindingDue pairs a due/overdue finding with its institution name for notifications
type FindingDue struct {
	Finding         models.InspectionFinding
	InstitutionName string
}

const findingColumns = `id, institution_id, title, detail, severity, status, inspector_id,
		due_at, closed_at, created_at, updated_at`

// CreateFinding creates a new inspection finding
func (r *InspectionRepository) CreateFinding(ctx context.Context, finding *models.InspectionFinding) error {
	finding.ID = uuid.New().String()
	now := time.Now()
	finding.CreatedAt = now
	finding.UpdatedAt = now
	if finding.Status == "" {
		finding.Status = models.FindingOpen
	}

	query := `
		INSERT INTO inspection_findings (id, institution_id, title, detail, severity, status, inspector_id, due_at, closed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		finding.ID,
		finding.InstitutionID,
		finding.Title,
		finding.Detail,
		finding.Severity,
		finding.Status,
		finding.InspectorID,
		finding.DueAt,
		finding.ClosedAt,
		finding.CreatedAt,
		finding.UpdatedAt,
	)

	return err
}

// GetFinding retrieves a single finding by ID
func (r *InspectionRepository) GetFinding(ctx context.Context, id string) (*models.InspectionFinding, error) {
	query := `SELECT ` + findingColumns + ` FROM inspection_findings WHERE id = $1`

	finding := &models.InspectionFinding{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&finding.ID,
		&finding.InstitutionID,
		&finding.Title,
		&finding.Detail,
		&finding.Severity,
		&finding.Status,
		&finding.InspectorID,
		&finding.DueAt,
		&finding.ClosedAt,
		&finding.CreatedAt,
		&finding.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return finding, nil
}

// ListFindings retrieves findings with optional filters and pagination, newest first
func (r *InspectionRepository) ListFindings(ctx context.Context, filters InspectionFilters, limit, offset int) ([]*models.InspectionFinding, int, error) {
	countQuery := `SELECT COUNT(*) FROM inspection_findings WHERE 1=1`
	query := `SELECT ` + findingColumns + ` FROM inspection_findings WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.InstitutionID != nil {
		countQuery += fmt.Sprintf(` AND institution_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND institution_id = $%d`, paramIndex)
		args = append(args, *filters.InstitutionID)
		paramIndex++
	}

	if filters.Status != nil {
		countQuery += fmt.Sprintf(` AND status = $%d`, paramIndex)
		query += fmt.Sprintf(` AND status = $%d`, paramIndex)
		args = append(args, *filters.Status)
		paramIndex++
	}

	if filters.Severity != nil {
		countQuery += fmt.Sprintf(` AND severity = $%d`, paramIndex)
		query += fmt.Sprintf(` AND severity = $%d`, paramIndex)
		args = append(args, *filters.Severity)
		paramIndex++
	}

	if filters.InspectorID != nil {
		countQuery += fmt.Sprintf(` AND inspector_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND inspector_id = $%d`, paramIndex)
		args = append(args, *filters.InspectorID)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	findings := make([]*models.InspectionFinding, 0)
	for rows.Next() {
		finding := &models.InspectionFinding{}
		err := rows.Scan(
			&finding.ID,
			&finding.InstitutionID,
			&finding.Title,
			&finding.Detail,
			&finding.Severity,
			&finding.Status,
			&finding.InspectorID,
			&finding.DueAt,
			&finding.ClosedAt,
			&finding.CreatedAt,
			&finding.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		findings = append(findings, finding)
	}

	return findings, total, rows.Err()
}

// UpdateFindingStatus transitions a finding's status. closedAt is set when the
// transition closes the finding and cleared when it reopens.
func (r *InspectionRepository) UpdateFindingStatus(ctx context.Context, id, status string, closedAt *time.Time) error {
	query := `UPDATE inspection_findings SET status = $2, closed_at = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, closedAt, time.Now())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountOpenFindings returns the number of findings still counting against the
// institution's risk score (anything not Closed).
func (r *InspectionRepository) CountOpenFindings(ctx context.Context, institutionID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM inspection_findings
		WHERE institution_id = $1 AND status <> 'Closed'
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, institutionID).Scan(&count)
	return count, err
}

// FindingsDueWithin returns open findings whose due date falls within the next
// given number of days, including already overdue ones, with institution names
// for the notification emails.
func (r *InspectionRepository) FindingsDueWithin(ctx context.Context, days int) ([]*FindingDue, error) {
	query := `
		SELECT f.id, f.institution_id, f.title, f.detail, f.severity, f.status, f.inspector_id,
			f.due_at, f.closed_at, f.created_at, f.updated_at, i.name
		FROM inspection_findings f
		JOIN institutions i ON i.id = f.institution_id
		WHERE f.status <> 'Closed'
			AND f.due_at IS NOT NULL
			AND f.due_at <= $1
		ORDER BY f.due_at
	`

	cutoff := time.Now().AddDate(0, 0, days)
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := make([]*FindingDue, 0)
	for rows.Next() {
		d := &FindingDue{}
		err := rows.Scan(
			&d.Finding.ID,
			&d.Finding.InstitutionID,
			&d.Finding.Title,
			&d.Finding.Detail,
			&d.Finding.Severity,
			&d.Finding.Status,
			&d.Finding.InspectorID,
			&d.Finding.DueAt,
			&d.Finding.ClosedAt,
			&d.Finding.CreatedAt,
			&d.Finding.UpdatedAt,
			&d.InstitutionName,
		)
		if err != nil {
			return nil, err
		}
		due = append(due, d)
	}

	return due, rows.Err()
}
