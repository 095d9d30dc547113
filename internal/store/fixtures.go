// fixtures.go seeds the memory store with a believable demo data set so the
// portal is usable out of the box without a database. Seeding also creates the
// demo accounts (admin/admin123, supervisor/supervisor123, entity/entity123);
// their passwords are hashed at seed time at minimum bcrypt cost, which is
// acceptable only because this store never backs a real deployment.
package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

func demoHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		// bcrypt only fails on absurd cost or password length; neither applies.
		panic(err)
	}
	return string(hash)
}

// SeedFixtures populates an empty MemoryStore with demo institutions, their
// supervision history, supervisors, and the demo accounts. Calling it on a
// non-empty store is a no-op.
func (s *MemoryStore) SeedFixtures(ctx context.Context) error {
	s.mu.RLock()
	seeded := len(s.institutions) > 0
	s.mu.RUnlock()
	if seeded {
		return nil
	}

	now := time.Now()

	institutions := []*models.Institution{
		{
			Name:          "CBZ Bank",
			LicenseNumber: "BL-2020-001",
			Category:      "Commercial Bank",
			Status:        models.StatusActive,
			RiskLevel:     models.RiskLevelHigh,
			RiskScore:     81,
			ContactEmail:  strptr("compliance@cbz.example"),
			RegisteredAt:  now.AddDate(-6, 0, 0),
		},
		{
			Name:          "ZB Bank",
			LicenseNumber: "BL-2019-014",
			Category:      "Commercial Bank",
			Status:        models.StatusActive,
			RiskLevel:     models.RiskLevelMedium,
			RiskScore:     52,
			ContactEmail:  strptr("aml@zb.example"),
			RegisteredAt:  now.AddDate(-7, -2, 0),
		},
		{
			Name:          "Steward Microfinance",
			LicenseNumber: "MF-2022-033",
			Category:      "Microfinance",
			Status:        models.StatusActive,
			RiskLevel:     models.RiskLevelLow,
			RiskScore:     28,
			RegisteredAt:  now.AddDate(-4, -5, 0),
		},
		{
			Name:          "Harare Bureau de Change",
			LicenseNumber: "BC-2021-107",
			Category:      "Bureau de Change",
			Status:        models.StatusSuspended,
			RiskLevel:     models.RiskLevelHigh,
			RiskScore:     74,
			RegisteredAt:  now.AddDate(-5, -1, 0),
		},
		{
			Name:          "Mutapa Savings and Credit",
			LicenseNumber: "MF-2024-061",
			Category:      "Microfinance",
			Status:        models.StatusPendingApplication,
			RiskLevel:     models.RiskLevelLow,
			RiskScore:     0,
			RegisteredAt:  now.AddDate(0, -2, 0),
		},
	}
	for _, inst := range institutions {
		if err := s.CreateInstitution(ctx, inst); err != nil {
			return fmt.Errorf("seed institutions: %w", err)
		}
	}
	cbz, zb, harareBC := institutions[0], institutions[1], institutions[3]

	profiles := []*models.RiskProfile{
		{InstitutionID: cbz.ID, Score: 50, Level: models.RiskLevelMedium, CreatedAt: now.AddDate(0, -5, 0)},
		{InstitutionID: cbz.ID, Score: 55, Level: models.RiskLevelMedium, CreatedAt: now.AddDate(0, -3, 0)},
		{InstitutionID: cbz.ID, Score: 60, Level: models.RiskLevelMedium, CreatedAt: now.AddDate(0, -1, 0)},
		{InstitutionID: zb.ID, Score: 48, Level: models.RiskLevelMedium, CreatedAt: now.AddDate(0, -2, 0)},
		{InstitutionID: harareBC.ID, Score: 70, Level: models.RiskLevelHigh, CreatedAt: now.AddDate(0, -2, -10)},
	}
	for _, p := range profiles {
		if err := s.CreateRiskProfile(ctx, p); err != nil {
			return fmt.Errorf("seed risk profiles: %w", err)
		}
	}

	logs := []*models.SurveillanceLog{
		{InstitutionID: cbz.ID, ActivityType: models.ActivityMonitoring, Severity: models.SeverityHigh,
			Description: "Structured cash deposits just under the reporting threshold", OccurredAt: now.AddDate(0, -1, -4)},
		{InstitutionID: cbz.ID, ActivityType: models.ActivityReporting, Severity: models.SeverityHigh,
			Description: "Single wire transfer above the unreported threshold", OccurredAt: now.AddDate(0, -2, -12)},
		{InstitutionID: cbz.ID, ActivityType: models.ActivityCDD, Severity: models.SeverityMedium,
			Description: "Dormant account reactivated without refreshed KYC", OccurredAt: now.AddDate(0, -4, 0)},
		{InstitutionID: harareBC.ID, ActivityType: models.ActivityMonitoring, Severity: models.SeverityHigh,
			Description: "Repeated same-day currency conversions for one client", OccurredAt: now.AddDate(0, 0, -20)},
		{InstitutionID: zb.ID, ActivityType: models.ActivityReporting, Severity: models.SeverityLow,
			Description: "Monthly return filed three days late", OccurredAt: now.AddDate(0, -1, 0)},
	}
	for _, log := range logs {
		if err := s.CreateSurveillanceLog(ctx, log); err != nil {
			return fmt.Errorf("seed surveillance logs: %w", err)
		}
	}

	findings := []*models.InspectionFinding{
		{InstitutionID: cbz.ID, Title: "KYC records incomplete", Severity: models.SeverityHigh,
			Status: models.FindingOpen, Detail: strptr("Sampled accounts missing identity documents"),
			DueAt: timeptr(now.AddDate(0, 0, 14))},
		{InstitutionID: cbz.ID, Title: "Transaction monitoring rules outdated", Severity: models.SeverityMedium,
			Status: models.FindingInProgress, DueAt: timeptr(now.AddDate(0, 1, 0))},
		{InstitutionID: harareBC.ID, Title: "No designated compliance officer", Severity: models.SeverityHigh,
			Status: models.FindingOpen, DueAt: timeptr(now.AddDate(0, 0, -3))},
		{InstitutionID: zb.ID, Title: "Staff AML training overdue", Severity: models.SeverityLow,
			Status: models.FindingClosed, ClosedAt: timeptr(now.AddDate(0, -1, 0))},
	}
	for _, f := range findings {
		if err := s.CreateFinding(ctx, f); err != nil {
			return fmt.Errorf("seed findings: %w", err)
		}
	}

	users := []*models.User{
		{Username: "admin", Email: "admin@portal.example", PasswordHash: demoHash("admin123"),
			Role: models.RoleAdministrator, IsActive: true},
		{Username: "supervisor", Email: "supervisor@portal.example", PasswordHash: demoHash("supervisor123"),
			Role: models.RoleSupervisor, IsActive: true},
		{Username: "entity", Email: "entity@cbz.example", PasswordHash: demoHash("entity123"),
			Role: models.RoleEntity, InstitutionID: &cbz.ID, IsActive: true},
	}
	for _, u := range users {
		if err := s.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	compliance := []*models.ComplianceStatus{
		{InstitutionID: cbz.ID, Requirement: "AML/CFT programme", State: models.ComplianceMet},
		{InstitutionID: cbz.ID, Requirement: "Customer due diligence", State: models.CompliancePartial,
			Notes: strptr("Remediation of legacy accounts in progress")},
		{InstitutionID: harareBC.ID, Requirement: "AML/CFT programme", State: models.ComplianceUnmet},
		{InstitutionID: zb.ID, Requirement: "AML/CFT programme", State: models.ComplianceMet},
	}
	for _, cs := range compliance {
		if err := s.UpsertComplianceStatus(ctx, cs); err != nil {
			return fmt.Errorf("seed compliance: %w", err)
		}
	}

	interventions := []*models.Intervention{
		{InstitutionID: harareBC.ID, Action: "Warning letter",
			Notes:    strptr("Appoint a compliance officer within 30 days"),
			IssuedAt: now.AddDate(0, 0, -10)},
		{InstitutionID: cbz.ID, Action: "Directive",
			Notes:    strptr("Complete KYC remediation of sampled accounts"),
			IssuedAt: now.AddDate(0, -1, 0)},
	}
	for _, iv := range interventions {
		if err := s.CreateIntervention(ctx, iv); err != nil {
			return fmt.Errorf("seed interventions: %w", err)
		}
	}

	s.seedSupervisors(now, cbz.ID, zb.ID, harareBC.ID)
	return nil
}

func (s *MemoryStore) seedSupervisors(now time.Time, institutionIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supervisors := []*models.Supervisor{
		{ID: "sup-moyo", FullName: "T. Moyo", Department: "Bank Supervision", Region: strptr("Harare"),
			Active: true, AccuracyRate: 92.5, TimelinessRate: 88.0, DocumentationRate: 95.0},
		{ID: "sup-ncube", FullName: "R. Ncube", Department: "Bank Supervision", Region: strptr("Bulawayo"),
			Active: true, AccuracyRate: 85.0, TimelinessRate: 91.0, DocumentationRate: 82.0},
		{ID: "sup-chirwa", FullName: "L. Chirwa", Department: "Exchange Control", Region: strptr("Harare"),
			Active: true, AccuracyRate: 60.0, TimelinessRate: 55.0, DocumentationRate: 48.0},
		{ID: "sup-dube", FullName: "P. Dube", Department: "Microfinance Supervision", Region: strptr("Mutare"),
			Active: false, AccuracyRate: 78.0, TimelinessRate: 80.0, DocumentationRate: 75.0},
	}
	for _, sup := range supervisors {
		sup.CreatedAt = now.AddDate(-2, 0, 0)
		sup.UpdatedAt = now
		s.supervisors = append(s.supervisors, sup)
	}

	// Give the first supervisor a case per seeded institution and the rest a
	// spread so the case-load histogram has more than one bucket.
	caseNum := 0
	addCase := func(supID, instID string, closed bool) {
		caseNum++
		c := &models.SupervisorCase{
			ID:            fmt.Sprintf("case-%d", caseNum),
			SupervisorID:  supID,
			InstitutionID: instID,
			OpenedAt:      now.AddDate(0, -caseNum, 0),
		}
		if closed {
			c.ClosedAt = timeptr(now.AddDate(0, 0, -caseNum))
		}
		s.cases = append(s.cases, c)
	}

	for _, instID := range institutionIDs {
		addCase("sup-moyo", instID, false)
	}
	addCase("sup-ncube", institutionIDs[0], false)
	addCase("sup-ncube", institutionIDs[1], true)
	addCase("sup-chirwa", institutionIDs[2], false)
}

func strptr(s string) *string        { return &s }
func timeptr(t time.Time) *time.Time { return &t }
