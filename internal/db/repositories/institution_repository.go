// institution_repository.go implements InstitutionRepository, providing database queries
// for the institution registry: creation, filtered listing, partial updates, and
// licensing status transitions.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// InstitutionRepository handles institution database operations
type InstitutionRepository struct {
	db *sql.DB
}

// NewInstitutionRepository creates a new InstitutionRepository
func NewInstitutionRepository(db *sql.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// InstitutionFilters contains filters for querying institutions
type InstitutionFilters struct {
	Search    string // Case-insensitive substring match on name and license number
	Status    *string
	RiskLevel *string
	Category  *string
}

const institutionColumns = `id, name, license_number, category, status, risk_level, risk_score,
		compliance_score, contact_email, contact_phone, address, registered_at, license_expires_at, created_at, updated_at`

// CreateInstitution creates a new institution record
func (r *InstitutionRepository) CreateInstitution(ctx context.Context, inst *models.Institution) error {
	inst.ID = uuid.New().String()
	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	if inst.RegisteredAt.IsZero() {
		inst.RegisteredAt = now
	}
	if inst.Status == "" {
		inst.Status = models.StatusActive
	}
	if inst.RiskLevel == "" {
		inst.RiskLevel = models.RiskLevelLow
	}

	query := `
		INSERT INTO institutions (id, name, license_number, category, status, risk_level, risk_score,
			compliance_score, contact_email, contact_phone, address, registered_at, license_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		inst.ID,
		inst.Name,
		inst.LicenseNumber,
		inst.Category,
		inst.Status,
		inst.RiskLevel,
		inst.RiskScore,
		inst.ComplianceScore,
		inst.ContactEmail,
		inst.ContactPhone,
		inst.Address,
		inst.RegisteredAt,
		inst.LicenseExpiresAt,
		inst.CreatedAt,
		inst.UpdatedAt,
	)

	return err
}

// GetInstitution retrieves a single institution by ID
func (r *InstitutionRepository) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetInstitutionByLicense retrieves a single institution by license number
func (r *InstitutionRepository) GetInstitutionByLicense(ctx context.Context, licenseNumber string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE license_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, licenseNumber))
}

// ListInstitutions retrieves institutions with optional filters and pagination,
// newest registration first.
func (r *InstitutionRepository) ListInstitutions(ctx context.Context, filters InstitutionFilters, limit, offset int) ([]*models.Institution, int, error) {
	countQuery := `SELECT COUNT(*) FROM institutions WHERE 1=1`
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if s := strings.TrimSpace(filters.Search); s != "" {
		clause := fmt.Sprintf(` AND (LOWER(name) LIKE $%d OR LOWER(license_number) LIKE $%d)`, paramIndex, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, "%"+strings.ToLower(s)+"%")
		paramIndex++
	}

	if filters.Status != nil {
		countQuery += fmt.Sprintf(` AND status = $%d`, paramIndex)
		query += fmt.Sprintf(` AND status = $%d`, paramIndex)
		args = append(args, *filters.Status)
		paramIndex++
	}

	if filters.RiskLevel != nil {
		countQuery += fmt.Sprintf(` AND risk_level = $%d`, paramIndex)
		query += fmt.Sprintf(` AND risk_level = $%d`, paramIndex)
		args = append(args, *filters.RiskLevel)
		paramIndex++
	}

	if filters.Category != nil {
		countQuery += fmt.Sprintf(` AND category = $%d`, paramIndex)
		query += fmt.Sprintf(` AND category = $%d`, paramIndex)
		args = append(args, *filters.Category)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY registered_at DESC, id LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	institutions := make([]*models.Institution, 0)
	for rows.Next() {
		inst, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		institutions = append(institutions, inst)
	}

	return institutions, total, rows.Err()
}

// UpdateInstitution applies a partial update. Nil patch fields keep the stored
// value via COALESCE, so callers send only what changed.
func (r *InstitutionRepository) UpdateInstitution(ctx context.Context, id string, patch models.InstitutionPatch) error {
	query := `
		UPDATE institutions SET
			name = COALESCE($2, name),
			category = COALESCE($3, category),
			status = COALESCE($4, status),
			risk_level = COALESCE($5, risk_level),
			risk_score = COALESCE($6, risk_score),
			contact_email = COALESCE($7, contact_email),
			contact_phone = COALESCE($8, contact_phone),
			address = COALESCE($9, address),
			license_expires_at = COALESCE($10, license_expires_at),
			updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		patch.Name,
		patch.Category,
		patch.Status,
		patch.RiskLevel,
		patch.RiskScore,
		patch.ContactEmail,
		patch.ContactPhone,
		patch.Address,
		patch.LicenseExpiresAt,
		time.Now(),
	)
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

// UpdateInstitutionStatus sets the licensing status of an institution
func (r *InstitutionRepository) UpdateInstitutionStatus(ctx context.Context, id, status string) error {
	query := `UPDATE institutions SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
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

// UpdateInstitutionRisk stores the latest computed risk posture on the institution row
func (r *InstitutionRepository) UpdateInstitutionRisk(ctx context.Context, id string, score int, level string) error {
	query := `UPDATE institutions SET risk_score = $2, risk_level = $3, updated_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, score, level, time.Now())
	return err
}

// GetInstitutionStatistics returns registry-wide counts for the dashboard
func (r *InstitutionRepository) GetInstitutionStatistics(ctx context.Context) (*models.InstitutionStatistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Active'),
			COUNT(*) FILTER (WHERE status = 'Suspended'),
			COUNT(*) FILTER (WHERE status = 'Revoked'),
			COUNT(*) FILTER (WHERE status = 'Pending Application'),
			COUNT(*) FILTER (WHERE risk_level = 'High')
		FROM institutions
	`

	stats := &models.InstitutionStatistics{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Suspended,
		&stats.Revoked,
		&stats.Pending,
		&stats.HighRisk,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *InstitutionRepository) scanOne(row *sql.Row) (*models.Institution, error) {
	inst := &models.Institution{}
	err := row.Scan(
		&inst.ID,
		&inst.Name,
		&inst.LicenseNumber,
		&inst.Category,
		&inst.Status,
		&inst.RiskLevel,
		&inst.RiskScore,
		&inst.ComplianceScore,
		&inst.ContactEmail,
		&inst.ContactPhone,
		&inst.Address,
		&inst.RegisteredAt,
		&inst.LicenseExpiresAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *InstitutionRepository) scanRow(rows *sql.Rows) (*models.Institution, error) {
	inst := &models.Institution{}
	err := rows.Scan(
		&inst.ID,
		&inst.Name,
		&inst.LicenseNumber,
		&inst.Category,
		&inst.Status,
		&inst.RiskLevel,
		&inst.RiskScore,
		&inst.ComplianceScore,
		&inst.ContactEmail,
		&inst.ContactPhone,
		&inst.Address,
		&inst.RegisteredAt,
		&inst.LicenseExpiresAt,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
