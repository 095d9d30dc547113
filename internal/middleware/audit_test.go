package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/audit"
	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAuditQueue(t *testing.T) (*store.MemoryStore, *audit.Queue) {
	t.Helper()
	s := store.NewMemoryStore()
	q, err := audit.NewQueue(s, 16, 1)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	t.Cleanup(func() { q.Stop(time.Second) })
	return s, q
}

func newAuditRouter(q *audit.Queue, auditCfg *config.AuditConfig) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(UsernameKey, "j.moyo"); c.Next() })
	r.Use(AuditMiddleware(q, auditCfg))
	r.POST("/api/v1/institutions", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/api/v1/institutions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func auditEntries(t *testing.T, s *store.MemoryStore) []*models.AuditLog {
	t.Helper()
	logs, _, err := s.ListAuditLogs(context.Background(), repositories.AuditFilters{}, 100, 0)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	return logs
}

// waitForEntries polls until the async queue worker has persisted n entries.
func waitForEntries(t *testing.T, s *store.MemoryStore, n int) []*models.AuditLog {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if logs := auditEntries(t, s); len(logs) >= n {
			return logs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d audit entries, have %d", n, len(auditEntries(t, s)))
	return nil
}

func serveAudit(r *gin.Engine, method, path string) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
}

// ---------------------------------------------------------------------------
// AuditMiddleware
// ---------------------------------------------------------------------------

func TestAuditMiddleware_RecordsSuccessfulWrite(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, nil)

	serveAudit(r, http.MethodPost, "/api/v1/institutions")

	logs := waitForEntries(t, s, 1)
	entry := logs[0]
	if entry.Actor != "j.moyo" {
		t.Errorf("actor = %q, want j.moyo", entry.Actor)
	}
	if entry.Action != "POST /api/v1/institutions" {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.ResourceType != "institution" {
		t.Errorf("resource type = %q, want institution", entry.ResourceType)
	}
}

func TestAuditMiddleware_SkipsReadsByDefault(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, nil)

	serveAudit(r, http.MethodGet, "/api/v1/institutions/inst-1")
	serveAudit(r, http.MethodPost, "/api/v1/institutions")

	logs := waitForEntries(t, s, 1)
	if len(logs) != 1 {
		t.Fatalf("got %d entries, want only the write", len(logs))
	}
	if logs[0].Action != "POST /api/v1/institutions" {
		t.Errorf("recorded action = %q", logs[0].Action)
	}
}

func TestAuditMiddleware_SkipsFailuresByDefault(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, nil)

	serveAudit(r, http.MethodPost, "/api/v1/broken")
	serveAudit(r, http.MethodPost, "/api/v1/institutions")

	logs := waitForEntries(t, s, 1)
	if len(logs) != 1 {
		t.Fatalf("got %d entries, want only the successful write", len(logs))
	}
}

func TestAuditMiddleware_LogReadOperations(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, &config.AuditConfig{LogReadOperations: true})

	serveAudit(r, http.MethodGet, "/api/v1/institutions/inst-1")

	logs := waitForEntries(t, s, 1)
	if logs[0].Action != "GET /api/v1/institutions/:id" {
		t.Errorf("recorded action = %q", logs[0].Action)
	}
	if logs[0].ResourceID == nil || *logs[0].ResourceID != "inst-1" {
		t.Errorf("resource ID = %v, want inst-1", logs[0].ResourceID)
	}
}

func TestAuditMiddleware_LogFailedRequests(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, &config.AuditConfig{LogFailedRequests: true})

	serveAudit(r, http.MethodPost, "/api/v1/broken")

	logs := waitForEntries(t, s, 1)
	if logs[0].Action != "POST /api/v1/broken" {
		t.Errorf("recorded action = %q", logs[0].Action)
	}
}

func TestAuditMiddleware_DetailsCarryStatus(t *testing.T) {
	s, q := newAuditQueue(t)
	r := newAuditRouter(q, nil)

	serveAudit(r, http.MethodPost, "/api/v1/institutions")

	logs := waitForEntries(t, s, 1)
	status, ok := logs[0].Details["status"]
	if !ok {
		t.Fatal("details missing status")
	}
	// Postgres round-trips details through JSON, turning numbers into
	// float64; the memory store keeps the original int.
	var got int
	switch n := status.(type) {
	case int:
		got = n
	case float64:
		got = int(n)
	default:
		t.Fatalf("details status has unexpected type %T", status)
	}
	if got != http.StatusCreated {
		t.Errorf("details status = %d, want 201", got)
	}
}

// ---------------------------------------------------------------------------
// resourceTypeFor
// ---------------------------------------------------------------------------

func TestResourceTypeFor(t *testing.T) {
	cases := map[string]string{
		"/api/v1/institutions/:id":                 "institution",
		"/api/v1/institutions/:id/license-actions": "institution",
		"/api/v1/risk-profiles":                    "risk_profile",
		"/api/v1/risk-assessment":                  "risk_profile",
		"/api/v1/surveillance":                     "surveillance_log",
		"/api/v1/inspections/:id/status":           "inspection_finding",
		"/api/v1/audit-logs/verify":                "audit_log",
		"/api/v1/supervisors/:id/performance":      "supervisor",
		"/api/v1/auth/login":                       "session",
		"/api/v1/dashboard/analytics":              "dashboard",
		"/health":                                  "",
	}
	for path, want := range cases {
		if got := resourceTypeFor(path); got != want {
			t.Errorf("resourceTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}
