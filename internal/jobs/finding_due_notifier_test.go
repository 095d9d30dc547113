package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newNotifierConfig(enabled bool, smtpHost string) *config.NotificationsConfig {
	return &config.NotificationsConfig{
		Enabled: enabled,
		SMTP: config.SMTPConfig{
			Host: smtpHost,
			Port: 25,
			From: "noreply@portal.example",
		},
		FindingDueWarningDays:        7,
		FindingDueCheckIntervalHours: 24,
	}
}

// failDueStore fails the due-findings query.
type failDueStore struct {
	*store.MemoryStore
}

func (f *failDueStore) FindingsDueWithin(ctx context.Context, days int) ([]*repositories.FindingDue, error) {
	return nil, errors.New("backend unavailable")
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewFindingDueNotifier_DefaultInterval(t *testing.T) {
	cfg := newNotifierConfig(true, "smtp.example.com")
	cfg.FindingDueCheckIntervalHours = 0

	n := NewFindingDueNotifier(store.NewMemoryStore(), cfg)
	if n.interval != 24*time.Hour {
		t.Errorf("interval = %v, want 24h default", n.interval)
	}
}

func TestNewFindingDueNotifier_CustomInterval(t *testing.T) {
	cfg := newNotifierConfig(true, "smtp.example.com")
	cfg.FindingDueCheckIntervalHours = 6

	n := NewFindingDueNotifier(store.NewMemoryStore(), cfg)
	if n.interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", n.interval)
	}
}

func TestFindingDueNotifier_WarningDaysDefault(t *testing.T) {
	cfg := newNotifierConfig(true, "smtp.example.com")
	cfg.FindingDueWarningDays = 0

	n := NewFindingDueNotifier(store.NewMemoryStore(), cfg)
	if n.warningDays() != 7 {
		t.Errorf("warningDays() = %d, want 7", n.warningDays())
	}
}

// ---------------------------------------------------------------------------
// Start guards
// ---------------------------------------------------------------------------

func TestFindingDueNotifier_Start_Disabled(t *testing.T) {
	n := NewFindingDueNotifier(store.NewMemoryStore(), newNotifierConfig(false, "smtp.example.com"))

	done := make(chan struct{})
	go func() {
		n.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return immediately when disabled")
	}
}

func TestFindingDueNotifier_Start_BlankSMTPHost(t *testing.T) {
	n := NewFindingDueNotifier(store.NewMemoryStore(), newNotifierConfig(true, ""))

	done := make(chan struct{})
	go func() {
		n.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return immediately without an SMTP host")
	}
}

// ---------------------------------------------------------------------------
// runCheck
// ---------------------------------------------------------------------------

func TestFindingDueNotifier_RunCheck_QueryError(t *testing.T) {
	s := &failDueStore{MemoryStore: store.NewMemoryStore()}
	n := NewFindingDueNotifier(s, newNotifierConfig(true, "smtp.example.com"))

	// Must log and return, not panic.
	n.runCheck(context.Background())
}

func TestFindingDueNotifier_RunCheck_SkipsFindingsWithoutInspector(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	inst := &models.Institution{Name: "Test Bank", LicenseNumber: "BL-1", Category: "Commercial Bank"}
	if err := s.CreateInstitution(ctx, inst); err != nil {
		t.Fatalf("CreateInstitution: %v", err)
	}
	due := time.Now().AddDate(0, 0, 3)
	if err := s.CreateFinding(ctx, &models.InspectionFinding{
		InstitutionID: inst.ID,
		Title:         "No inspector assigned",
		Severity:      models.SeverityLow,
		Status:        models.FindingOpen,
		DueAt:         &due,
	}); err != nil {
		t.Fatalf("CreateFinding: %v", err)
	}

	n := NewFindingDueNotifier(s, newNotifierConfig(true, "smtp.example.com"))
	// Nothing to email, so no SMTP connection is attempted.
	n.runCheck(ctx)

	if len(n.notified) != 0 {
		t.Errorf("notified = %d entries, want 0", len(n.notified))
	}
}

func TestFindingDueNotifier_RunCheck_SkipsInspectorWithoutAccount(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	inst := &models.Institution{Name: "Test Bank", LicenseNumber: "BL-1", Category: "Commercial Bank"}
	if err := s.CreateInstitution(ctx, inst); err != nil {
		t.Fatalf("CreateInstitution: %v", err)
	}
	due := time.Now().AddDate(0, 0, 3)
	inspector := "ghost"
	if err := s.CreateFinding(ctx, &models.InspectionFinding{
		InstitutionID: inst.ID,
		Title:         "Inspector account deleted",
		Severity:      models.SeverityLow,
		Status:        models.FindingOpen,
		InspectorID:   &inspector,
		DueAt:         &due,
	}); err != nil {
		t.Fatalf("CreateFinding: %v", err)
	}

	n := NewFindingDueNotifier(s, newNotifierConfig(true, "smtp.example.com"))
	n.runCheck(ctx)

	if len(n.notified) != 0 {
		t.Errorf("notified = %d entries, want 0", len(n.notified))
	}
}

func TestFindingDueNotifier_Stop_DoesNotPanic(t *testing.T) {
	n := NewFindingDueNotifier(store.NewMemoryStore(), newNotifierConfig(true, "smtp.example.com"))
	n.Stop()
}
