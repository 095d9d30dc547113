// postgres.go implements Store on PostgreSQL by delegating to the repositories.
// Row-level semantics (COALESCE patches, filter building, pagination) live in
// the repositories; this layer only normalises their error conventions to the
// Store contract.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
)

// PostgresStore implements Store over a PostgreSQL connection pool
type PostgresStore struct {
	db           *sql.DB
	institutions *repositories.InstitutionRepository
	riskProfiles *repositories.RiskProfileRepository
	surveillance *repositories.SurveillanceRepository
	inspections  *repositories.InspectionRepository
	audit        *repositories.AuditRepository
	users        *repositories.UserRepository
	supervisors  *repositories.SupervisorRepository
	analytics    *repositories.AnalyticsRepository
	compliance   *repositories.ComplianceRepository
}

// NewPostgresStore creates a PostgresStore over an open connection pool. The
// supervisor and analytics repositories scan through sqlx; the rest use
// database/sql directly.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	sqlxDB := sqlx.NewDb(db, "postgres")
	return &PostgresStore{
		db:           db,
		institutions: repositories.NewInstitutionRepository(db),
		riskProfiles: repositories.NewRiskProfileRepository(db),
		surveillance: repositories.NewSurveillanceRepository(db),
		inspections:  repositories.NewInspectionRepository(db),
		audit:        repositories.NewAuditRepository(db),
		users:        repositories.NewUserRepository(db),
		supervisors:  repositories.NewSupervisorRepository(sqlxDB),
		analytics:    repositories.NewAnalyticsRepository(sqlxDB),
		compliance:   repositories.NewComplianceRepository(db),
	}
}

// DB exposes the underlying pool for the stats collector
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateInstitution(ctx context.Context, inst *models.Institution) error {
	return s.institutions.CreateInstitution(ctx, inst)
}

func (s *PostgresStore) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	return s.institutions.GetInstitution(ctx, id)
}

func (s *PostgresStore) GetInstitutionByLicense(ctx context.Context, licenseNumber string) (*models.Institution, error) {
	return s.institutions.GetInstitutionByLicense(ctx, licenseNumber)
}

func (s *PostgresStore) ListInstitutions(ctx context.Context, filters repositories.InstitutionFilters, limit, offset int) ([]*models.Institution, int, error) {
	return s.institutions.ListInstitutions(ctx, filters, limit, offset)
}

func (s *PostgresStore) UpdateInstitution(ctx context.Context, id string, patch models.InstitutionPatch) error {
	return mapNoRows(s.institutions.UpdateInstitution(ctx, id, patch))
}

func (s *PostgresStore) UpdateInstitutionStatus(ctx context.Context, id, status string) error {
	return mapNoRows(s.institutions.UpdateInstitutionStatus(ctx, id, status))
}

func (s *PostgresStore) UpdateInstitutionRisk(ctx context.Context, id string, score int, level string) error {
	return s.institutions.UpdateInstitutionRisk(ctx, id, score, level)
}

func (s *PostgresStore) InstitutionStatistics(ctx context.Context) (*models.InstitutionStatistics, error) {
	return s.institutions.GetInstitutionStatistics(ctx)
}

func (s *PostgresStore) CreateRiskProfile(ctx context.Context, profile *models.RiskProfile) error {
	return s.riskProfiles.CreateRiskProfile(ctx, profile)
}

func (s *PostgresStore) UpdateRiskProfile(ctx context.Context, id string, patch models.RiskProfilePatch) error {
	return mapNoRows(s.riskProfiles.UpdateRiskProfile(ctx, id, patch))
}

func (s *PostgresStore) ListRiskProfiles(ctx context.Context, institutionID string, limit, offset int) ([]*models.RiskProfile, int, error) {
	return s.riskProfiles.ListRiskProfiles(ctx, institutionID, limit, offset)
}

func (s *PostgresStore) RecentProfileScores(ctx context.Context, institutionID string, n int) ([]int, error) {
	return s.riskProfiles.RecentScores(ctx, institutionID, n)
}

func (s *PostgresStore) LatestRiskProfile(ctx context.Context, institutionID string) (*models.RiskProfile, error) {
	return s.riskProfiles.LatestRiskProfile(ctx, institutionID)
}

func (s *PostgresStore) CreateSurveillanceLog(ctx context.Context, log *models.SurveillanceLog) error {
	return s.surveillance.CreateSurveillanceLog(ctx, log)
}

func (s *PostgresStore) ListSurveillanceLogs(ctx context.Context, filters repositories.SurveillanceFilters, limit, offset int) ([]*models.SurveillanceLog, int, error) {
	return s.surveillance.ListSurveillanceLogs(ctx, filters, limit, offset)
}

func (s *PostgresStore) SeveritiesSince(ctx context.Context, institutionID string, since time.Time) ([]string, error) {
	return s.surveillance.SeveritiesSince(ctx, institutionID, since)
}

func (s *PostgresStore) CreateFinding(ctx context.Context, finding *models.InspectionFinding) error {
	return s.inspections.CreateFinding(ctx, finding)
}

func (s *PostgresStore) GetFinding(ctx context.Context, id string) (*models.InspectionFinding, error) {
	return s.inspections.GetFinding(ctx, id)
}

func (s *PostgresStore) ListFindings(ctx context.Context, filters repositories.InspectionFilters, limit, offset int) ([]*models.InspectionFinding, int, error) {
	return s.inspections.ListFindings(ctx, filters, limit, offset)
}

func (s *PostgresStore) UpdateFindingStatus(ctx context.Context, id, status string, closedAt *time.Time) error {
	return mapNoRows(s.inspections.UpdateFindingStatus(ctx, id, status, closedAt))
}

func (s *PostgresStore) UpsertComplianceStatus(ctx context.Context, cs *models.ComplianceStatus) error {
	return s.compliance.UpsertComplianceStatus(ctx, cs)
}

func (s *PostgresStore) ListComplianceStatus(ctx context.Context, institutionID string) ([]*models.ComplianceStatus, error) {
	return s.compliance.ListComplianceStatus(ctx, institutionID)
}

func (s *PostgresStore) CreateIntervention(ctx context.Context, iv *models.Intervention) error {
	return s.compliance.CreateIntervention(ctx, iv)
}

func (s *PostgresStore) ListInterventions(ctx context.Context, institutionID string) ([]*models.Intervention, error) {
	return s.compliance.ListInterventions(ctx, institutionID)
}

func (s *PostgresStore) CountOpenFindings(ctx context.Context, institutionID string) (int, error) {
	return s.inspections.CountOpenFindings(ctx, institutionID)
}

func (s *PostgresStore) FindingsDueWithin(ctx context.Context, days int) ([]*repositories.FindingDue, error) {
	return s.inspections.FindingsDueWithin(ctx, days)
}

func (s *PostgresStore) AppendAuditLog(ctx context.Context, log *models.AuditLog) error {
	return s.audit.CreateAuditLog(ctx, log)
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	return s.audit.ListAuditLogs(ctx, filters, limit, offset)
}

func (s *PostgresStore) LatestAuditHash(ctx context.Context) (string, error) {
	return s.audit.LatestAuditHash(ctx)
}

func (s *PostgresStore) ListAuditChain(ctx context.Context, fromSeq int64, limit int) ([]*models.AuditLog, error) {
	return s.audit.ListAuditChain(ctx, fromSeq, limit)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.users.CreateUser(ctx, user)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

func (s *PostgresStore) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.ListActiveUsers(ctx)
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id string) error {
	return s.users.TouchLastLogin(ctx, id)
}

func (s *PostgresStore) ListSupervisors(ctx context.Context, filters repositories.SupervisorFilters, limit, offset int) ([]*models.SupervisorWithCaseLoad, int, error) {
	return s.supervisors.ListSupervisors(ctx, filters, limit, offset)
}

func (s *PostgresStore) GetSupervisor(ctx context.Context, id string) (*models.SupervisorWithCaseLoad, error) {
	return s.supervisors.GetSupervisor(ctx, id)
}

func (s *PostgresStore) ListSupervisorCases(ctx context.Context, supervisorID string) ([]*models.SupervisorCase, error) {
	return s.supervisors.ListCases(ctx, supervisorID)
}

func (s *PostgresStore) Analytics(ctx context.Context) (*models.DashboardAnalytics, error) {
	return s.analytics.GetAnalytics(ctx)
}

func (s *PostgresStore) Trends(ctx context.Context, months int) ([]*models.TrendPoint, error) {
	return s.analytics.GetTrends(ctx, months)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
