package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var auditCols = []string{
	"id", "seq", "actor", "action", "resource_type", "resource_id",
	"details", "ip_address", "prev_hash", "entry_hash", "created_at",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func strPtr(s string) *string { return &s }

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

func sampleAuditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow("log-1", int64(1), "admin", "institution.create",
			"institution", "inst-1", []byte(`{"name":"CBZ Bank"}`), "1.2.3.4",
			"", "aabbccdd", time.Now())
}

// ---------------------------------------------------------------------------
// CreateAuditLog
// ---------------------------------------------------------------------------

func TestCreateAuditLog_Success(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	log := &models.AuditLog{
		Actor:        "admin",
		Action:       "institution.create",
		ResourceType: "institution",
		ResourceID:   strPtr("inst-1"),
		Details:      map[string]interface{}{"name": "CBZ Bank"},
		PrevHash:     "",
		EntryHash:    "aabbccdd",
	}
	if err := repo.CreateAuditLog(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Seq != 7 {
		t.Errorf("Seq = %d, want 7", log.Seq)
	}
}

func TestCreateAuditLog_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnError(errDB)

	log := &models.AuditLog{Actor: "admin", Action: "institution.create", ResourceType: "institution"}
	if err := repo.CreateAuditLog(context.Background(), log); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListAuditLogs
// ---------------------------------------------------------------------------

func TestListAuditLogs_NoFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WillReturnRows(sampleAuditRow())

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(logs) != 1 {
		t.Errorf("len(logs) = %d, want 1", len(logs))
	}
	if logs[0].EntryHash != "aabbccdd" {
		t.Errorf("EntryHash = %q, want %q", logs[0].EntryHash, "aabbccdd")
	}
}

func TestListAuditLogs_WithFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	actor := "admin"
	action := "institution.create"
	resourceType := "institution"

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WithArgs(actor, action, resourceType).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WithArgs(actor, action, resourceType, 100, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	logs, total, err := repo.ListAuditLogs(context.Background(), AuditFilters{
		Actor:        &actor,
		Action:       &action,
		ResourceType: &resourceType,
	}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if len(logs) != 0 {
		t.Errorf("len(logs) = %d, want 0", len(logs))
	}
}

func TestListAuditLogs_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnError(errDB)

	_, _, err := repo.ListAuditLogs(context.Background(), AuditFilters{}, 100, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// LatestAuditHash
// ---------------------------------------------------------------------------

func TestLatestAuditHash_EmptyTrail(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT entry_hash FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}))

	hash, err := repo.LatestAuditHash(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty", hash)
	}
}

func TestLatestAuditHash_Found(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT entry_hash FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"entry_hash"}).AddRow("aabbccdd"))

	hash, err := repo.LatestAuditHash(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "aabbccdd" {
		t.Errorf("hash = %q, want %q", hash, "aabbccdd")
	}
}

// ---------------------------------------------------------------------------
// ListAuditChain
// ---------------------------------------------------------------------------

func TestListAuditChain(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs WHERE seq").
		WithArgs(int64(0), 100).
		WillReturnRows(sampleAuditRow())

	logs, err := repo.ListAuditChain(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}
	if logs[0].Seq != 1 {
		t.Errorf("Seq = %d, want 1", logs[0].Seq)
	}
}
