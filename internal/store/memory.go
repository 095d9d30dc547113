// memory.go implements Store in process memory. It backs demo and development
// deployments where no DATABASE_URL is configured, and mirrors the Postgres
// implementation's filter, ordering, and pagination semantics so handlers
// behave identically on either backend.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supervision-portal/supervision-portal/internal/collection"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
)

// MemoryStore implements Store with in-process state guarded by a single mutex.
// Values are copied on the way in and out, so callers can never mutate stored
// state through a returned pointer.
type MemoryStore struct {
	mu sync.RWMutex

	institutions []*models.Institution
	riskProfiles []*models.RiskProfile
	surveillance []*models.SurveillanceLog
	findings     []*models.InspectionFinding
	auditLogs    []*models.AuditLog
	users        []*models.User
	supervisors  []*models.Supervisor
	cases        []*models.SupervisorCase
	compliance   []*models.ComplianceStatus
	intervention []*models.Intervention

	auditSeq int64
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Institutions
// ---------------------------------------------------------------------------

func (s *MemoryStore) CreateInstitution(ctx context.Context, inst *models.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	stored := *inst
	s.institutions = append(s.institutions, &stored)
	return nil
}

func (s *MemoryStore) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inst := range s.institutions {
		if inst.ID == id {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetInstitutionByLicense(ctx context.Context, licenseNumber string) (*models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inst := range s.institutions {
		if inst.LicenseNumber == licenseNumber {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListInstitutions(ctx context.Context, filters repositories.InstitutionFilters, limit, offset int) ([]*models.Institution, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	matched := collection.Filter(s.institutions, func(inst *models.Institution) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(inst.Name), search) &&
			!strings.Contains(strings.ToLower(inst.LicenseNumber), search) {
			return false
		}
		if filters.Status != nil && inst.Status != *filters.Status {
			return false
		}
		if filters.RiskLevel != nil && inst.RiskLevel != *filters.RiskLevel {
			return false
		}
		if filters.Category != nil && inst.Category != *filters.Category {
			return false
		}
		return true
	})

	sorted := collection.SortBy(matched, func(a, b *models.Institution) bool {
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.After(b.RegisteredAt)
		}
		return a.ID < b.ID
	})

	return copyWindow(sorted, limit, offset)
}

func (s *MemoryStore) UpdateInstitution(ctx context.Context, id string, patch models.InstitutionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.findInstitution(id)
	if inst == nil {
		return ErrNotFound
	}

	if patch.Name != nil {
		inst.Name = *patch.Name
	}
	if patch.Category != nil {
		inst.Category = *patch.Category
	}
	if patch.Status != nil {
		inst.Status = *patch.Status
	}
	if patch.RiskLevel != nil {
		inst.RiskLevel = *patch.RiskLevel
	}
	if patch.RiskScore != nil {
		inst.RiskScore = *patch.RiskScore
	}
	if patch.ContactEmail != nil {
		inst.ContactEmail = patch.ContactEmail
	}
	if patch.ContactPhone != nil {
		inst.ContactPhone = patch.ContactPhone
	}
	if patch.Address != nil {
		inst.Address = patch.Address
	}
	if patch.LicenseExpiresAt != nil {
		inst.LicenseExpiresAt = patch.LicenseExpiresAt
	}
	inst.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateInstitutionStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.findInstitution(id)
	if inst == nil {
		return ErrNotFound
	}
	inst.Status = status
	inst.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateInstitutionRisk(ctx context.Context, id string, score int, level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.findInstitution(id)
	if inst == nil {
		return ErrNotFound
	}
	inst.RiskScore = score
	inst.RiskLevel = level
	inst.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) InstitutionStatistics(ctx context.Context) (*models.InstitutionStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.InstitutionStatistics{Total: len(s.institutions)}
	for _, inst := range s.institutions {
		switch inst.Status {
		case models.StatusActive:
			stats.Active++
		case models.StatusSuspended:
			stats.Suspended++
		case models.StatusRevoked:
			stats.Revoked++
		case models.StatusPendingApplication:
			stats.Pending++
		}
		if inst.RiskLevel == models.RiskLevelHigh {
			stats.HighRisk++
		}
	}
	return stats, nil
}

func (s *MemoryStore) findInstitution(id string) *models.Institution {
	for _, inst := range s.institutions {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Risk profiles
// ---------------------------------------------------------------------------

func (s *MemoryStore) CreateRiskProfile(ctx context.Context, profile *models.RiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.ID = uuid.New().String()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	stored := *profile
	s.riskProfiles = append(s.riskProfiles, &stored)
	return nil
}

func (s *MemoryStore) UpdateRiskProfile(ctx context.Context, id string, patch models.RiskProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.riskProfiles {
		if p.ID != id {
			continue
		}
		if patch.Score != nil {
			p.Score = *patch.Score
			p.Level = models.LevelForScore(*patch.Score)
		}
		if patch.Notes != nil {
			p.Notes = patch.Notes
		}
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) ListRiskProfiles(ctx context.Context, institutionID string, limit, offset int) ([]*models.RiskProfile, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.profilesNewestFirst(institutionID)
	return copyWindow(sorted, limit, offset)
}

func (s *MemoryStore) RecentProfileScores(ctx context.Context, institutionID string, n int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.profilesNewestFirst(institutionID)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	scores := make([]int, len(sorted))
	for i, p := range sorted {
		scores[i] = p.Score
	}
	return scores, nil
}

func (s *MemoryStore) LatestRiskProfile(ctx context.Context, institutionID string) (*models.RiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.profilesNewestFirst(institutionID)
	if len(sorted) == 0 {
		return nil, nil
	}
	cp := *sorted[0]
	return &cp, nil
}

func (s *MemoryStore) profilesNewestFirst(institutionID string) []*models.RiskProfile {
	matched := collection.Filter(s.riskProfiles, func(p *models.RiskProfile) bool {
		return p.InstitutionID == institutionID
	})
	return collection.SortBy(matched, func(a, b *models.RiskProfile) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// ---------------------------------------------------------------------------
// Surveillance
// ---------------------------------------------------------------------------

func (s *MemoryStore) CreateSurveillanceLog(ctx context.Context, log *models.SurveillanceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()
	if log.OccurredAt.IsZero() {
		log.OccurredAt = log.CreatedAt
	}

	stored := *log
	s.surveillance = append(s.surveillance, &stored)
	return nil
}

func (s *MemoryStore) ListSurveillanceLogs(ctx context.Context, filters repositories.SurveillanceFilters, limit, offset int) ([]*models.SurveillanceLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.surveillance, func(log *models.SurveillanceLog) bool {
		if filters.InstitutionID != nil && log.InstitutionID != *filters.InstitutionID {
			return false
		}
		if filters.Severity != nil && log.Severity != *filters.Severity {
			return false
		}
		if filters.ActivityType != nil && log.ActivityType != *filters.ActivityType {
			return false
		}
		if filters.StartDate != nil && log.OccurredAt.Before(*filters.StartDate) {
			return false
		}
		if filters.EndDate != nil && log.OccurredAt.After(*filters.EndDate) {
			return false
		}
		return true
	})

	sorted := collection.SortBy(matched, func(a, b *models.SurveillanceLog) bool {
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID < b.ID
	})

	return copyWindow(sorted, limit, offset)
}

func (s *MemoryStore) SeveritiesSince(ctx context.Context, institutionID string, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	severities := make([]string, 0)
	for _, log := range s.surveillance {
		if log.InstitutionID == institutionID && !log.OccurredAt.Before(since) {
			severities = append(severities, log.Severity)
		}
	}
	return severities, nil
}

// ---------------------------------------------------------------------------
// Inspection findings
// ---------------------------------------------------------------------------

func (s *MemoryStore) CreateFinding(ctx context.Context, finding *models.InspectionFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finding.ID = uuid.New().String()
	now := time.Now()
	finding.CreatedAt = now
	finding.UpdatedAt = now
	if finding.Status == "" {
		finding.Status = models.FindingOpen
	}

	stored := *finding
	s.findings = append(s.findings, &stored)
	return nil
}

func (s *MemoryStore) GetFinding(ctx context.Context, id string) (*models.InspectionFinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.findings {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListFindings(ctx context.Context, filters repositories.InspectionFilters, limit, offset int) ([]*models.InspectionFinding, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.findings, func(f *models.InspectionFinding) bool {
		if filters.InstitutionID != nil && f.InstitutionID != *filters.InstitutionID {
			return false
		}
		if filters.Status != nil && f.Status != *filters.Status {
			return false
		}
		if filters.Severity != nil && f.Severity != *filters.Severity {
			return false
		}
		if filters.InspectorID != nil && (f.InspectorID == nil || *f.InspectorID != *filters.InspectorID) {
			return false
		}
		return true
	})

	sorted := collection.SortBy(matched, func(a, b *models.InspectionFinding) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return copyWindow(sorted, limit, offset)
}

func (s *MemoryStore) UpdateFindingStatus(ctx context.Context, id, status string, closedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.findings {
		if f.ID == id {
			f.Status = status
			f.ClosedAt = closedAt
			f.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CountOpenFindings(ctx context.Context, institutionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, f := range s.findings {
		if f.InstitutionID == institutionID && f.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) FindingsDueWithin(ctx context.Context, days int) ([]*repositories.FindingDue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, days)
	due := make([]*repositories.FindingDue, 0)
	for _, f := range s.findings {
		if !f.IsOpen() || f.DueAt == nil || f.DueAt.After(cutoff) {
			continue
		}
		name := ""
		if inst := s.findInstitution(f.InstitutionID); inst != nil {
			name = inst.Name
		}
		due = append(due, &repositories.FindingDue{Finding: *f, InstitutionName: name})
	}

	return collection.SortBy(due, func(a, b *repositories.FindingDue) bool {
		return a.Finding.DueAt.Before(*b.Finding.DueAt)
	}), nil
}

// ---------------------------------------------------------------------------
// Compliance
// ---------------------------------------------------------------------------

func (s *MemoryStore) UpsertComplianceStatus(ctx context.Context, cs *models.ComplianceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs.UpdatedAt = time.Now()
	replaced := false
	for _, existing := range s.compliance {
		if existing.InstitutionID == cs.InstitutionID && existing.Requirement == cs.Requirement {
			existing.State = cs.State
			existing.Notes = cs.Notes
			existing.UpdatedAt = cs.UpdatedAt
			cs.ID = existing.ID
			replaced = true
			break
		}
	}
	if !replaced {
		if cs.ID == "" {
			cs.ID = uuid.New().String()
		}
		stored := *cs
		s.compliance = append(s.compliance, &stored)
	}

	// Recompute the institution's stored compliance score from all of its
	// requirements, mirroring the SQL recompute.
	sum, n := 0, 0
	for _, existing := range s.compliance {
		if existing.InstitutionID == cs.InstitutionID {
			sum += models.ComplianceStateScore(existing.State)
			n++
		}
	}
	if inst := s.findInstitution(cs.InstitutionID); inst != nil && n > 0 {
		score := (sum + n/2) / n
		inst.ComplianceScore = &score
		inst.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) ListComplianceStatus(ctx context.Context, institutionID string) ([]*models.ComplianceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.compliance, func(cs *models.ComplianceStatus) bool {
		return cs.InstitutionID == institutionID
	})
	sorted := collection.SortBy(matched, func(a, b *models.ComplianceStatus) bool {
		return a.Requirement < b.Requirement
	})

	out := make([]*models.ComplianceStatus, 0, len(sorted))
	for _, cs := range sorted {
		cp := *cs
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) CreateIntervention(ctx context.Context, iv *models.Intervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv.ID = uuid.New().String()
	if iv.IssuedAt.IsZero() {
		iv.IssuedAt = time.Now()
	}
	stored := *iv
	s.intervention = append(s.intervention, &stored)
	return nil
}

func (s *MemoryStore) ListInterventions(ctx context.Context, institutionID string) ([]*models.Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.intervention, func(iv *models.Intervention) bool {
		return iv.InstitutionID == institutionID
	})
	sorted := collection.SortBy(matched, func(a, b *models.Intervention) bool {
		if !a.IssuedAt.Equal(b.IssuedAt) {
			return a.IssuedAt.After(b.IssuedAt)
		}
		return a.ID < b.ID
	})

	out := make([]*models.Intervention, 0, len(sorted))
	for _, iv := range sorted {
		cp := *iv
		out = append(out, &cp)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Audit trail
// ---------------------------------------------------------------------------

func (s *MemoryStore) AppendAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.New().String()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.auditSeq++
	log.Seq = s.auditSeq

	stored := *log
	s.auditLogs = append(s.auditLogs, &stored)
	return nil
}

func (s *MemoryStore) ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.auditLogs, func(log *models.AuditLog) bool {
		if filters.Actor != nil && log.Actor != *filters.Actor {
			return false
		}
		if filters.Action != nil && log.Action != *filters.Action {
			return false
		}
		if filters.ResourceType != nil && log.ResourceType != *filters.ResourceType {
			return false
		}
		if filters.ResourceID != nil && (log.ResourceID == nil || *log.ResourceID != *filters.ResourceID) {
			return false
		}
		if filters.StartDate != nil && log.CreatedAt.Before(*filters.StartDate) {
			return false
		}
		if filters.EndDate != nil && log.CreatedAt.After(*filters.EndDate) {
			return false
		}
		return true
	})

	sorted := collection.SortBy(matched, func(a, b *models.AuditLog) bool {
		return a.Seq > b.Seq
	})

	return copyWindow(sorted, limit, offset)
}

func (s *MemoryStore) LatestAuditHash(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.auditLogs) == 0 {
		return "", nil
	}
	return s.auditLogs[len(s.auditLogs)-1].EntryHash, nil
}

func (s *MemoryStore) ListAuditChain(ctx context.Context, fromSeq int64, limit int) ([]*models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AuditLog, 0)
	for _, log := range s.auditLogs {
		if log.Seq > fromSeq {
			cp := *log
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = uuid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleSupervisor
	}

	stored := *user
	s.users = append(s.users, &stored)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if u.IsActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) TouchLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			now := time.Now()
			u.LastLoginAt = &now
			u.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

// ---------------------------------------------------------------------------
// Supervisors
// ---------------------------------------------------------------------------

func (s *MemoryStore) ListSupervisors(ctx context.Context, filters repositories.SupervisorFilters, limit, offset int) ([]*models.SupervisorWithCaseLoad, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.supervisors, func(sup *models.Supervisor) bool {
		if filters.Department != nil && sup.Department != *filters.Department {
			return false
		}
		if filters.Region != nil && (sup.Region == nil || *sup.Region != *filters.Region) {
			return false
		}
		if filters.Active != nil && sup.Active != *filters.Active {
			return false
		}
		return true
	})

	sorted := collection.SortBy(matched, func(a, b *models.Supervisor) bool {
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})

	withLoad := make([]*models.SupervisorWithCaseLoad, len(sorted))
	for i, sup := range sorted {
		withLoad[i] = &models.SupervisorWithCaseLoad{Supervisor: *sup, OpenCases: s.openCases(sup.ID)}
	}

	return copyWindow(withLoad, limit, offset)
}

func (s *MemoryStore) GetSupervisor(ctx context.Context, id string) (*models.SupervisorWithCaseLoad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sup := range s.supervisors {
		if sup.ID == id {
			return &models.SupervisorWithCaseLoad{Supervisor: *sup, OpenCases: s.openCases(id)}, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListSupervisorCases(ctx context.Context, supervisorID string) ([]*models.SupervisorCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := collection.Filter(s.cases, func(c *models.SupervisorCase) bool {
		return c.SupervisorID == supervisorID
	})
	sorted := collection.SortBy(matched, func(a, b *models.SupervisorCase) bool {
		if (a.ClosedAt == nil) != (b.ClosedAt == nil) {
			return a.ClosedAt == nil
		}
		return a.OpenedAt.After(b.OpenedAt)
	})

	out := make([]*models.SupervisorCase, len(sorted))
	for i, c := range sorted {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) openCases(supervisorID string) int {
	count := 0
	for _, c := range s.cases {
		if c.SupervisorID == supervisorID && c.ClosedAt == nil {
			count++
		}
	}
	return count
}

// ---------------------------------------------------------------------------
// Dashboard aggregates
// ---------------------------------------------------------------------------

func (s *MemoryStore) Analytics(ctx context.Context) (*models.DashboardAnalytics, error) {
	stats, err := s.InstitutionStatistics(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	analytics := &models.DashboardAnalytics{Institutions: *stats}
	now := time.Now()

	for _, f := range s.findings {
		if f.IsOpen() {
			analytics.OpenFindings++
			if f.DueAt != nil && f.DueAt.Before(now) {
				analytics.OverdueFindings++
			}
		}
	}

	cutoff := now.AddDate(0, 0, -30)
	for _, log := range s.surveillance {
		if log.Severity == models.SeverityHigh && !log.OccurredAt.Before(cutoff) {
			analytics.HighSeverityLogs++
		}
	}

	scored := 0
	sum := 0
	for _, inst := range s.institutions {
		if inst.Status != models.StatusRevoked {
			sum += inst.RiskScore
			scored++
		}
	}
	if scored > 0 {
		analytics.AvgRiskScore = float64(sum) / float64(scored)
	}

	dayAgo := now.Add(-24 * time.Hour)
	for _, log := range s.auditLogs {
		if !log.CreatedAt.Before(dayAgo) {
			analytics.AuditEntries24h++
		}
	}

	return analytics, nil
}

func (s *MemoryStore) Trends(ctx context.Context, months int) ([]*models.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	points := make([]*models.TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)

		pt := &models.TrendPoint{Month: monthStart.Format("2006-01")}
		for _, log := range s.surveillance {
			if inWindow(log.OccurredAt, monthStart, monthEnd) {
				pt.LogCount++
			}
		}
		scoreSum, scoreCount := 0, 0
		for _, p := range s.riskProfiles {
			if inWindow(p.CreatedAt, monthStart, monthEnd) {
				scoreSum += p.Score
				scoreCount++
			}
		}
		if scoreCount > 0 {
			pt.AvgScore = float64(scoreSum) / float64(scoreCount)
		}
		for _, f := range s.findings {
			if inWindow(f.CreatedAt, monthStart, monthEnd) {
				pt.FindingsNew++
			}
		}
		points = append(points, pt)
	}

	return points, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// copyWindow applies limit/offset to a sorted slice and copies the survivors so
// internal state never escapes the lock.
func copyWindow[T any](sorted []*T, limit, offset int) ([]*T, int, error) {
	total := len(sorted)
	if offset >= total {
		return []*T{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*T, 0, end-offset)
	for _, item := range sorted[offset:end] {
		cp := *item
		out = append(out, &cp)
	}
	return out, total, nil
}
