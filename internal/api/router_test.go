package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

func TestMain(m *testing.M) {
	os.Setenv("SUP_AUTH_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.SessionSweepInterval = time.Minute
	cfg.Security.CORS.AllowedOrigins = []string{"https://portal.example.com"}
	cfg.Logging.Format = "json"
	cfg.Audit.Enabled = true
	cfg.Audit.QueueSize = 16
	cfg.Audit.RetryBudget = 1
	return cfg
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.SeedFixtures(context.Background()); err != nil {
		t.Fatalf("SeedFixtures: %v", err)
	}
	return s
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, bg, err := NewRouter(testConfig(), seededStore(t))
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(bg.Shutdown)
	return r
}

// pingFailStore reports an unreachable backing store.
type pingFailStore struct {
	*store.MemoryStore
}

func (s *pingFailStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, body %s", username, w.Code, w.Body.String())
	}

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if envelope.Data.Token == "" {
		t.Fatal("login returned empty token")
	}
	return envelope.Data.Token
}

// ---------------------------------------------------------------------------
// System handlers
// ---------------------------------------------------------------------------

func TestHealthCheckHandler_Healthy(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthCheckHandler(store.NewMemoryStore()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", resp["status"])
	}
}

func TestHealthCheckHandler_Unhealthy(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthCheckHandler(&pingFailStore{MemoryStore: store.NewMemoryStore()}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestVersionHandler(t *testing.T) {
	r := gin.New()
	r.GET("/version", versionHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/version", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["api_version"] != "v1" {
		t.Errorf("api_version = %v, want v1", resp["api_version"])
	}
}

// ---------------------------------------------------------------------------
// CORS middleware
// ---------------------------------------------------------------------------

func corsRouter(origins ...string) *gin.Engine {
	cfg := testConfig()
	cfg.Security.CORS.AllowedOrigins = origins
	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })
	return r
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	r := corsRouter("https://portal.example.com")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	r := corsRouter("*")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example.net")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example.net" {
		t.Errorf("Allow-Origin = %q, want echoed origin under wildcard", got)
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	r := corsRouter("https://portal.example.com")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want unset for disallowed origin", got)
	}
}

func TestCORSMiddleware_PreflightOptions(t *testing.T) {
	r := corsRouter("*")

	req := httptest.NewRequest("OPTIONS", "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Full router: authentication and role gates
// ---------------------------------------------------------------------------

func TestNewRouter_RejectsUnauthenticated(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/institutions", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a token", w.Code)
	}
}

func TestNewRouter_AdminCanListInstitutions(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "admin", "admin123")

	req := httptest.NewRequest("GET", "/api/v1/institutions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestNewRouter_SupervisorCannotRegisterInstitution(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "supervisor", "supervisor123")

	req := httptest.NewRequest("POST", "/api/v1/institutions",
		strings.NewReader(`{"name":"New Bank","licenseNumber":"BL-9999","category":"Commercial Bank"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for supervisor registering an institution", w.Code)
	}
}

func TestNewRouter_EntityConfinedToOwnInstitution(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "entity", "entity123")

	// The institution list is staff-only.
	req := httptest.NewRequest("GET", "/api/v1/institutions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("list status = %d, want 403 for entity user", w.Code)
	}

	// Another institution's detail page is off-limits too.
	req = httptest.NewRequest("GET", "/api/v1/institutions/not-their-institution", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign institution status = %d, want 403", w.Code)
	}
}

func TestNewRouter_SupervisorCasework(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "supervisor", "supervisor123")

	for _, path := range []string{
		"/api/v1/surveillance",
		"/api/v1/inspections",
		"/api/v1/supervisors",
		"/api/v1/risk-profiles?institutionId=missing",
	} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusForbidden || w.Code == http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want supervisor access", path, w.Code)
		}
	}
}

func TestNewRouter_AuditLogsAdminOnly(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "supervisor", "supervisor123")

	req := httptest.NewRequest("GET", "/api/v1/audit-logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for supervisor reading the audit trail", w.Code)
	}
}

func TestNewRouter_ReadyAfterRegistryLoad(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ready, _ := resp["ready"].(bool); !ready {
		t.Error("ready = false, want true once the registry is loaded")
	}
}
