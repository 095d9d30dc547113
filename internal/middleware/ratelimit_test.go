package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/config"
)

func newTestLimiter(t *testing.T, cfg RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute,
	})

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
}

func TestRateLimiter_DeniesBeyondBurst(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 1, BurstSize: 2, CleanupInterval: time.Minute,
	})

	rl.Allow("client-a")
	rl.Allow("client-a")
	if rl.Allow("client-a") {
		t.Error("request beyond burst was allowed")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 1, BurstSize: 1, CleanupInterval: time.Minute,
	})

	rl.Allow("client-a")
	if rl.Allow("client-a") {
		t.Error("client-a second request should be denied")
	}
	if !rl.Allow("client-b") {
		t.Error("client-b should not be affected by client-a's usage")
	}
}

func TestRateLimiter_TokensRefillOverTime(t *testing.T) {
	// 6000 rpm = 100 tokens/sec, so a short sleep refills a 1-token bucket.
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 6000, BurstSize: 1, CleanupInterval: time.Minute,
	})

	rl.Allow("client-a")
	if rl.Allow("client-a") {
		t.Fatal("bucket should be empty immediately after burst")
	}
	time.Sleep(50 * time.Millisecond)
	if !rl.Allow("client-a") {
		t.Error("bucket did not refill after waiting")
	}
}

func TestRateLimiter_RemainingTokensForNewClient(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 60, BurstSize: 7, CleanupInterval: time.Minute,
	})

	if got := rl.RemainingTokens("never-seen"); got != 7 {
		t.Errorf("RemainingTokens = %d, want full burst 7", got)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func newRateLimitRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(rl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware_Returns429WhenExhausted(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 1, BurstSize: 1, CleanupInterval: time.Minute,
	})
	r := newRateLimitRouter(rl)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimitMiddleware_SetsRateLimitHeaders(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 100, BurstSize: 10, CleanupInterval: time.Minute,
	})
	r := newRateLimitRouter(rl)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want 100", got)
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining header not set")
	}
}

func TestRateLimitMiddleware_AuthenticatedUsersKeyedByAccount(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{
		RequestsPerMinute: 1, BurstSize: 1, CleanupInterval: time.Minute,
	})

	r := gin.New()
	user := "user-1"
	r.Use(func(c *gin.Context) { c.Set(UserIDKey, user); c.Next() })
	r.Use(RateLimitMiddleware(rl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	// Same IP, different account: gets its own bucket.
	user = "user-2"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("second account status = %d, want 200", w.Code)
	}
}

// ---------------------------------------------------------------------------
// RateLimitConfigFrom
// ---------------------------------------------------------------------------

func TestRateLimitConfigFrom_MapsConfiguredValues(t *testing.T) {
	cfg := RateLimitConfigFrom(config.RateLimitingConfig{
		RequestsPerMinute: 42, Burst: 9,
	})
	if cfg.RequestsPerMinute != 42 || cfg.BurstSize != 9 {
		t.Errorf("got rpm=%d burst=%d, want 42/9", cfg.RequestsPerMinute, cfg.BurstSize)
	}
}

func TestRateLimitConfigFrom_ZeroValuesFallBackToDefaults(t *testing.T) {
	cfg := RateLimitConfigFrom(config.RateLimitingConfig{})
	def := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != def.RequestsPerMinute || cfg.BurstSize != def.BurstSize {
		t.Errorf("got rpm=%d burst=%d, want defaults %d/%d",
			cfg.RequestsPerMinute, cfg.BurstSize, def.RequestsPerMinute, def.BurstSize)
	}
}
