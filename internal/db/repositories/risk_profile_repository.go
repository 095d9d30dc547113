// risk_profile_repository.go implements RiskProfileRepository, providing database
// queries for historical risk assessments and the recent-score reads consumed by
// the scoring engine.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// RiskProfileRepository handles risk profile database operations
type RiskProfileRepository struct {
	db *sql.DB
}

// NewRiskProfileRepository creates a new RiskProfileRepository
func NewRiskProfileRepository(db *sql.DB) *RiskProfileRepository {
	return &RiskProfileRepository{db: db}
}

// CreateRiskProfile creates a new risk profile entry
func (r *RiskProfileRepository) CreateRiskProfile(ctx context.Context, profile *models.RiskProfile) error {
	profile.ID = uuid.New().String()
	profile.CreatedAt = time.Now()

	factorsJSON := []byte(`{}`)
	if profile.Factors != nil {
		var err error
		factorsJSON, err = json.Marshal(profile.Factors)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO risk_profiles (id, institution_id, score, level, factors, assessed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.InstitutionID,
		profile.Score,
		profile.Level,
		factorsJSON,
		profile.AssessedBy,
		profile.Notes,
		profile.CreatedAt,
	)

	return err
}

// UpdateRiskProfile amends the score and notes of an existing assessment.
// Nil patch fields are preserved; when the score changes the level band is
// recomputed in the same statement. Returns sql.ErrNoRows when the profile
// does not exist.
func (r *RiskProfileRepository) UpdateRiskProfile(ctx context.Context, id string, patch models.RiskProfilePatch) error {
	var level *string
	if patch.Score != nil {
		l := models.LevelForScore(*patch.Score)
		level = &l
	}

	query := `
		UPDATE risk_profiles SET
			score = COALESCE($2, score),
			level = COALESCE($3, level),
			notes = COALESCE($4, notes)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, patch.Score, level, patch.Notes)
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

// ListRiskProfiles retrieves the assessment history of an institution, newest first
func (r *RiskProfileRepository) ListRiskProfiles(ctx context.Context, institutionID string, limit, offset int) ([]*models.RiskProfile, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM risk_profiles WHERE institution_id = $1`, institutionID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, institution_id, score, level, factors, assessed_by, notes, created_at
		FROM risk_profiles
		WHERE institution_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	profiles := make([]*models.RiskProfile, 0)
	for rows.Next() {
		profile := &models.RiskProfile{}
		var factorsJSON []byte

		err := rows.Scan(
			&profile.ID,
			&profile.InstitutionID,
			&profile.Score,
			&profile.Level,
			&factorsJSON,
			&profile.AssessedBy,
			&profile.Notes,
			&profile.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if factorsJSON != nil {
			if err := json.Unmarshal(factorsJSON, &profile.Factors); err != nil {
				return nil, 0, err
			}
		}

		profiles = append(profiles, profile)
	}

	return profiles, total, rows.Err()
}

// RecentScores returns the scores of the n most recent profiles of an
// institution, newest first. The slice may be shorter than n.
func (r *RiskProfileRepository) RecentScores(ctx context.Context, institutionID string, n int) ([]int, error) {
	query := `
		SELECT score FROM risk_profiles
		WHERE institution_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]int, 0, n)
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	return scores, rows.Err()
}

// LatestRiskProfile returns the most recent profile of an institution, or nil
func (r *RiskProfileRepository) LatestRiskProfile(ctx context.Context, institutionID string) (*models.RiskProfile, error) {
	query := `
		SELECT id, institution_id, score, level, factors, assessed_by, notes, created_at
		FROM risk_profiles
		WHERE institution_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	profile := &models.RiskProfile{}
	var factorsJSON []byte

	err := r.db.QueryRowContext(ctx, query, institutionID).Scan(
		&profile.ID,
		&profile.InstitutionID,
		&profile.Score,
		&profile.Level,
		&factorsJSON,
		&profile.AssessedBy,
		&profile.Notes,
		&profile.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if factorsJSON != nil {
		if err := json.Unmarshal(factorsJSON, &profile.Factors); err != nil {
			return nil, err
		}
	}

	return profile, nil
}
