// Package registry implements the institution registry service: a loaded
// in-memory view over the store with reactive filtering, pagination, derived
// statistics, and the licensing state machine. Mutations write through to the
// store and update the view, so reads after a mutation see the new state
// without a full reload.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/apperr"
	"github.com/supervision-portal/supervision-portal/internal/collection"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// License actions accepted by PerformLicenseAction
const (
	ActionSuspend = "suspend"
	ActionRevoke  = "revoke"
	ActionRenew   = "renew"
)

// renewalPeriod is how far a renewal pushes the license expiry.
const renewalPeriod = 365 * 24 * time.Hour

// expiringSoonWindow is the lookahead used by the expiringSoon statistic.
const expiringSoonWindow = 90 * 24 * time.Hour

// Filters is the active filter criteria of the registry view.
type Filters struct {
	Search    string
	Status    string
	RiskLevel string
	Category  string
}

// Statistics is derived from the loaded collection on every read, never stored.
type Statistics struct {
	TotalEntities  int
	ActiveLicenses int
	ExpiringSoon   int
	Suspended      int
	ByCategory     map[string]int
	ByRiskLevel    map[string]int
	AvgRiskScore   float64

	// AvgComplianceScore covers only institutions that have been assessed;
	// nil compliance scores are excluded from the mean.
	AvgComplianceScore float64
}

// Service holds the loaded institution collection and its filter state
type Service struct {
	store store.Store

	mu      sync.RWMutex
	items   []*models.Institution
	loaded  bool
	loading bool
	filters Filters
}

// NewService creates a registry service over the given store
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Load replaces the collection from the store. While a load is running the
// loading flag is set; on failure the previously loaded collection is kept
// and the error returned to the caller.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	items := make([]*models.Institution, 0)
	const batch = 500
	for offset := 0; ; offset += batch {
		page, total, err := s.store.ListInstitutions(ctx, repositories.InstitutionFilters{}, batch, offset)
		if err != nil {
			slog.Error("registry load failed, keeping previous collection", "error", err)
			return apperr.Persistence("load institutions", err)
		}
		items = append(items, page...)
		if len(items) >= total || len(page) == 0 {
			break
		}
	}

	s.mu.Lock()
	s.items = items
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Loading reports whether a Load is in flight
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetFilters replaces the active filter criteria
func (s *Service) SetFilters(f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}

// ResetFilters clears the active filter criteria
func (s *Service) ResetFilters() {
	s.SetFilters(Filters{})
}

// ActiveFilters returns the current filter criteria
func (s *Service) ActiveFilters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// View returns one page of the filtered collection, newest registration first,
// and the filtered total. The page is recomputed from the collection and the
// active filters on each call.
func (s *Service) View(page, pageSize int) ([]*models.Institution, int) {
	s.mu.RLock()
	items := s.items
	f := s.filters
	s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := collection.Filter(items, func(inst *models.Institution) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(inst.Name), search) &&
			!strings.Contains(strings.ToLower(inst.LicenseNumber), search) {
			return false
		}
		if f.Status != "" && inst.Status != f.Status {
			return false
		}
		if f.RiskLevel != "" && inst.RiskLevel != f.RiskLevel {
			return false
		}
		if f.Category != "" && inst.Category != f.Category {
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

	return collection.Paginate(sorted, page, pageSize)
}

// Statistics derives registry-wide statistics from the full loaded collection.
// Filters do not apply; the dashboard cards always describe the whole registry.
func (s *Service) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		TotalEntities: len(s.items),
		ByCategory:    make(map[string]int),
		ByRiskLevel:   make(map[string]int),
	}

	expiryCutoff := time.Now().Add(expiringSoonWindow)
	scoreSum := 0
	complianceSum, complianceN := 0, 0
	for _, inst := range s.items {
		stats.ByCategory[inst.Category]++
		stats.ByRiskLevel[inst.RiskLevel]++
		scoreSum += inst.RiskScore
		if inst.ComplianceScore != nil {
			complianceSum += *inst.ComplianceScore
			complianceN++
		}

		switch inst.Status {
		case models.StatusActive:
			stats.ActiveLicenses++
			if inst.LicenseExpiresAt != nil && inst.LicenseExpiresAt.Before(expiryCutoff) {
				stats.ExpiringSoon++
			}
		case models.StatusSuspended:
			stats.Suspended++
		}
	}
	if len(s.items) > 0 {
		stats.AvgRiskScore = float64(scoreSum) / float64(len(s.items))
	}
	if complianceN > 0 {
		stats.AvgComplianceScore = float64(complianceSum) / float64(complianceN)
	}
	return stats
}

// Register creates a new institution. License numbers are unique; registering
// a duplicate is a conflict.
func (s *Service) Register(ctx context.Context, inst *models.Institution) error {
	if strings.TrimSpace(inst.Name) == "" {
		return apperr.Validation("name is required")
	}
	if strings.TrimSpace(inst.LicenseNumber) == "" {
		return apperr.Validation("licenseNumber is required")
	}
	if strings.TrimSpace(inst.Category) == "" {
		return apperr.Validation("category is required")
	}
	if inst.Status != "" && !models.ValidStatus(inst.Status) {
		return apperr.Validation("invalid status: " + inst.Status)
	}

	existing, err := s.store.GetInstitutionByLicense(ctx, inst.LicenseNumber)
	if err != nil {
		return apperr.Persistence("check license number", err)
	}
	if existing != nil {
		return apperr.Conflict("license number already registered: " + inst.LicenseNumber)
	}

	if err := s.store.CreateInstitution(ctx, inst); err != nil {
		return apperr.Persistence("create institution", err)
	}

	s.mu.Lock()
	if s.loaded {
		cp := *inst
		s.items = append(s.items, &cp)
	}
	s.mu.Unlock()
	return nil
}

// Update applies a partial update. Omitted fields keep their stored values.
func (s *Service) Update(ctx context.Context, id string, patch models.InstitutionPatch) error {
	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return apperr.Validation("invalid status: " + *patch.Status)
	}
	if patch.RiskLevel != nil && !models.ValidRiskLevel(*patch.RiskLevel) {
		return apperr.Validation("invalid risk level: " + *patch.RiskLevel)
	}
	if patch.RiskScore != nil && (*patch.RiskScore < 0 || *patch.RiskScore > 100) {
		return apperr.Validation("risk score must be between 0 and 100")
	}

	if err := s.store.UpdateInstitution(ctx, id, patch); err != nil {
		if err == store.ErrNotFound {
			return apperr.NotFound("institution", id)
		}
		return apperr.Persistence("update institution", err)
	}

	s.refreshItem(ctx, id)
	return nil
}

// PerformLicenseAction applies a licensing transition. Suspend and revoke are
// rejected once an institution is revoked; renewals reactivate and push the
// expiry a year out.
func (s *Service) PerformLicenseAction(ctx context.Context, id, action string) error {
	inst, err := s.store.GetInstitution(ctx, id)
	if err != nil {
		return apperr.Persistence("load institution", err)
	}
	if inst == nil {
		return apperr.NotFound("institution", id)
	}

	switch action {
	case ActionSuspend, ActionRevoke:
		if inst.Status == models.StatusRevoked {
			return apperr.Conflict("license is revoked; " + action + " is not permitted")
		}
		status := models.StatusSuspended
		if action == ActionRevoke {
			status = models.StatusRevoked
		}
		if err := s.store.UpdateInstitutionStatus(ctx, id, status); err != nil {
			return apperr.Persistence("update status", err)
		}

	case ActionRenew:
		expiry := time.Now().Add(renewalPeriod)
		if inst.LicenseExpiresAt != nil && inst.LicenseExpiresAt.After(time.Now()) {
			expiry = inst.LicenseExpiresAt.Add(renewalPeriod)
		}
		status := models.StatusActive
		patch := models.InstitutionPatch{Status: &status, LicenseExpiresAt: &expiry}
		if err := s.store.UpdateInstitution(ctx, id, patch); err != nil {
			return apperr.Persistence("renew license", err)
		}

	default:
		return apperr.Validation("unknown license action: " + action)
	}

	s.refreshItem(ctx, id)
	return nil
}

// refreshItem re-reads one institution into the loaded collection. A failed
// refresh leaves the stale item in place; the next Load catches it up.
func (s *Service) refreshItem(ctx context.Context, id string) {
	fresh, err := s.store.GetInstitution(ctx, id)
	if err != nil || fresh == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items[i] = fresh
			return
		}
	}
	if s.loaded {
		s.items = append(s.items, fresh)
	}
}
