// Package store defines the persistence boundary of the supervision portal and
// its two implementations: a Postgres-backed store for production and a
// fixture-seeded memory store for demos and development without a database.
// The backend is chosen once at startup from configuration; everything above
// this interface is unaware of which one is running.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
)

// ErrNotFound is returned by mutating operations when the target row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence boundary used by the services and API handlers.
type Store interface {
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Institutions
	CreateInstitution(ctx context.Context, inst *models.Institution) error
	GetInstitution(ctx context.Context, id string) (*models.Institution, error)
	GetInstitutionByLicense(ctx context.Context, licenseNumber string) (*models.Institution, error)
	ListInstitutions(ctx context.Context, filters repositories.InstitutionFilters, limit, offset int) ([]*models.Institution, int, error)
	UpdateInstitution(ctx context.Context, id string, patch models.InstitutionPatch) error
	UpdateInstitutionStatus(ctx context.Context, id, status string) error
	UpdateInstitutionRisk(ctx context.Context, id string, score int, level string) error
	InstitutionStatistics(ctx context.Context) (*models.InstitutionStatistics, error)

	// Risk profiles
	CreateRiskProfile(ctx context.Context, profile *models.RiskProfile) error
	UpdateRiskProfile(ctx context.Context, id string, patch models.RiskProfilePatch) error
	ListRiskProfiles(ctx context.Context, institutionID string, limit, offset int) ([]*models.RiskProfile, int, error)
	RecentProfileScores(ctx context.Context, institutionID string, n int) ([]int, error)
	LatestRiskProfile(ctx context.Context, institutionID string) (*models.RiskProfile, error)

	// Surveillance
	CreateSurveillanceLog(ctx context.Context, log *models.SurveillanceLog) error
	ListSurveillanceLogs(ctx context.Context, filters repositories.SurveillanceFilters, limit, offset int) ([]*models.SurveillanceLog, int, error)
	SeveritiesSince(ctx context.Context, institutionID string, since time.Time) ([]string, error)

	// Inspection findings
	CreateFinding(ctx context.Context, finding *models.InspectionFinding) error
	GetFinding(ctx context.Context, id string) (*models.InspectionFinding, error)
	ListFindings(ctx context.Context, filters repositories.InspectionFilters, limit, offset int) ([]*models.InspectionFinding, int, error)
	UpdateFindingStatus(ctx context.Context, id, status string, closedAt *time.Time) error
	CountOpenFindings(ctx context.Context, institutionID string) (int, error)
	FindingsDueWithin(ctx context.Context, days int) ([]*repositories.FindingDue, error)

	// Compliance
	UpsertComplianceStatus(ctx context.Context, cs *models.ComplianceStatus) error
	ListComplianceStatus(ctx context.Context, institutionID string) ([]*models.ComplianceStatus, error)
	CreateIntervention(ctx context.Context, iv *models.Intervention) error
	ListInterventions(ctx context.Context, institutionID string) ([]*models.Intervention, error)

	// Audit trail
	AppendAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	LatestAuditHash(ctx context.Context) (string, error)
	ListAuditChain(ctx context.Context, fromSeq int64, limit int) ([]*models.AuditLog, error)

	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListActiveUsers(ctx context.Context) ([]*models.User, error)
	TouchLastLogin(ctx context.Context, id string) error

	// Supervisors
	ListSupervisors(ctx context.Context, filters repositories.SupervisorFilters, limit, offset int) ([]*models.SupervisorWithCaseLoad, int, error)
	GetSupervisor(ctx context.Context, id string) (*models.SupervisorWithCaseLoad, error)
	ListSupervisorCases(ctx context.Context, supervisorID string) ([]*models.SupervisorCase, error)

	// Dashboard aggregates
	Analytics(ctx context.Context) (*models.DashboardAnalytics, error)
	Trends(ctx context.Context, months int) ([]*models.TrendPoint, error)
}
