// compliance_repository.go implements ComplianceRepository, covering the
// per-requirement compliance ledger of an institution and the interventions
// issued against it. Upserting a requirement state recomputes the
// institution's stored compliance score in the same call.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// ComplianceRepository handles compliance status and intervention operations
type ComplianceRepository struct {
	db *sql.DB
}

// NewComplianceRepository creates a new ComplianceRepository
func NewComplianceRepository(db *sql.DB) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

// UpsertComplianceStatus records the state of one requirement, replacing any
// prior state for the same (institution, requirement) pair, then recomputes
// the institution's compliance score from all of its requirements.
func (r *ComplianceRepository) UpsertComplianceStatus(ctx context.Context, cs *models.ComplianceStatus) error {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	cs.UpdatedAt = time.Now()

	query := `
		INSERT INTO compliance_status (id, institution_id, requirement, state, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (institution_id, requirement)
		DO UPDATE SET state = EXCLUDED.state, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		cs.ID,
		cs.InstitutionID,
		cs.Requirement,
		cs.State,
		cs.Notes,
		cs.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return r.recomputeScore(ctx, cs.InstitutionID)
}

// recomputeScore stores the average requirement score on the institution row.
func (r *ComplianceRepository) recomputeScore(ctx context.Context, institutionID string) error {
	query := `
		UPDATE institutions SET
			compliance_score = sub.score,
			updated_at = NOW()
		FROM (
			SELECT ROUND(AVG(CASE state
				WHEN 'Met' THEN 100
				WHEN 'Partial' THEN 50
				ELSE 0
			END)) AS score
			FROM compliance_status
			WHERE institution_id = $1
		) sub
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, institutionID)
	return err
}

// ListComplianceStatus retrieves the compliance ledger of an institution,
// ordered by requirement name.
func (r *ComplianceRepository) ListComplianceStatus(ctx context.Context, institutionID string) ([]*models.ComplianceStatus, error) {
	query := `
		SELECT id, institution_id, requirement, state, notes, updated_at
		FROM compliance_status
		WHERE institution_id = $1
		ORDER BY requirement
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]*models.ComplianceStatus, 0)
	for rows.Next() {
		cs := &models.ComplianceStatus{}
		err := rows.Scan(&cs.ID, &cs.InstitutionID, &cs.Requirement, &cs.State, &cs.Notes, &cs.UpdatedAt)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, cs)
	}

	return statuses, rows.Err()
}

// CreateIntervention records a supervisory action. Append-only.
func (r *ComplianceRepository) CreateIntervention(ctx context.Context, iv *models.Intervention) error {
	iv.ID = uuid.New().String()
	if iv.IssuedAt.IsZero() {
		iv.IssuedAt = time.Now()
	}

	query := `
		INSERT INTO interventions (id, institution_id, action, notes, issued_by, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		iv.ID,
		iv.InstitutionID,
		iv.Action,
		iv.Notes,
		iv.IssuedBy,
		iv.IssuedAt,
	)
	return err
}

// ListInterventions retrieves the interventions issued against an institution,
// most recent first.
func (r *ComplianceRepository) ListInterventions(ctx context.Context, institutionID string) ([]*models.Intervention, error) {
	query := `
		SELECT id, institution_id, action, notes, issued_by, issued_at
		FROM interventions
		WHERE institution_id = $1
		ORDER BY issued_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	interventions := make([]*models.Intervention, 0)
	for rows.Next() {
		iv := &models.Intervention{}
		err := rows.Scan(&iv.ID, &iv.InstitutionID, &iv.Action, &iv.Notes, &iv.IssuedBy, &iv.IssuedAt)
		if err != nil {
			return nil, err
		}
		interventions = append(interventions, iv)
	}

	return interventions, rows.Err()
}
