// supervisor_repository.go implements SupervisorRepository, providing database queries
// for supervisors together with their open case loads, the inputs to the performance
// analytics module.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// SupervisorRepository handles supervisor database operations. Rows are
// scanned with sqlx struct tags rather than positional Scan calls.
type SupervisorRepository struct {
	db *sqlx.DB
}

// NewSupervisorRepository creates a new SupervisorRepository
func NewSupervisorRepository(db *sqlx.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db}
}

// SupervisorFilters contains filters for querying supervisors
type SupervisorFilters struct {
	Department *string
	Region     *string
	Active     *bool
}

const supervisorColumns = `s.id, s.user_id, s.full_name, s.department, s.region, s.active,
		s.accuracy_rate, s.timeliness_rate, s.documentation_rate, s.created_at, s.updated_at`

// openCasesColumn aliases the joined count for sqlx struct scanning.
const openCasesColumn = `COALESCE(c.open_cases, 0) AS open_cases`

// openCasesJoin counts only cases that are still open.
const openCasesJoin = `
	LEFT JOIN (
		SELECT supervisor_id, COUNT(*) AS open_cases
		FROM supervisor_cases
		WHERE closed_at IS NULL
		GROUP BY supervisor_id
	) c ON c.supervisor_id = s.id`

// ListSupervisors retrieves supervisors with their open case counts, ordered by name
func (r *SupervisorRepository) ListSupervisors(ctx context.Context, filters SupervisorFilters, limit, offset int) ([]*models.SupervisorWithCaseLoad, int, error) {
	countQuery := `SELECT COUNT(*) FROM supervisors s WHERE 1=1`
	query := `SELECT ` + supervisorColumns + `, ` + openCasesColumn + `
		FROM supervisors s` + openCasesJoin + ` WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Department != nil {
		countQuery += fmt.Sprintf(` AND s.department = $%d`, paramIndex)
		query += fmt.Sprintf(` AND s.department = $%d`, paramIndex)
		args = append(args, *filters.Department)
		paramIndex++
	}

	if filters.Region != nil {
		countQuery += fmt.Sprintf(` AND s.region = $%d`, paramIndex)
		query += fmt.Sprintf(` AND s.region = $%d`, paramIndex)
		args = append(args, *filters.Region)
		paramIndex++
	}

	if filters.Active != nil {
		countQuery += fmt.Sprintf(` AND s.active = $%d`, paramIndex)
		query += fmt.Sprintf(` AND s.active = $%d`, paramIndex)
		args = append(args, *filters.Active)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY s.full_name, s.id LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	supervisors := make([]*models.SupervisorWithCaseLoad, 0)
	if err := r.db.SelectContext(ctx, &supervisors, query, args...); err != nil {
		return nil, 0, err
	}

	return supervisors, total, nil
}

// GetSupervisor retrieves a single supervisor with case load, or nil if not found
func (r *SupervisorRepository) GetSupervisor(ctx context.Context, id string) (*models.SupervisorWithCaseLoad, error) {
	query := `SELECT ` + supervisorColumns + `, ` + openCasesColumn + `
		FROM supervisors s` + openCasesJoin + ` WHERE s.id = $1`

	s := &models.SupervisorWithCaseLoad{}
	err := r.db.GetContext(ctx, s, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListCases retrieves the cases of a supervisor, open cases first then most recent
func (r *SupervisorRepository) ListCases(ctx context.Context, supervisorID string) ([]*models.SupervisorCase, error) {
	query := `
		SELECT id, supervisor_id, institution_id, opened_at, closed_at
		FROM supervisor_cases
		WHERE supervisor_id = $1
		ORDER BY closed_at IS NOT NULL, opened_at DESC
	`

	cases := make([]*models.SupervisorCase, 0)
	if err := r.db.SelectContext(ctx, &cases, query, supervisorID); err != nil {
		return nil, err
	}

	return cases, nil
}
