// session_sweeper.go implements the SessionSweeper background job. Session
// tokens are stateless, so expiry is enforced by validation, not by the
// server; the sweeper exists for visibility. On each sweep it derives which
// accounts still hold a live token from their last login time and the token
// TTL, publishes the count as the active_sessions gauge, and logs the sweep.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/store"
	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

// SessionSweeper periodically recounts unexpired sessions.
type SessionSweeper struct {
	store    store.Store
	ttl      time.Duration
	interval time.Duration
	stopChan chan struct{}
}

// NewSessionSweeper creates a sweeper from the auth configuration.
func NewSessionSweeper(st store.Store, cfg *config.AuthConfig) *SessionSweeper {
	interval := cfg.SessionSweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionSweeper{
		store:    st,
		ttl:      ttl,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. It sweeps once immediately, then on the
// configured interval until ctx is cancelled or Stop() is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("session sweeper started", "interval", s.interval, "token_ttl", s.ttl)

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			slog.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the sweep loop to exit.
func (s *SessionSweeper) Stop() {
	close(s.stopChan)
}

// ActiveSessions counts accounts whose most recent login is within the token
// TTL, meaning a token issued then could still be valid.
func (s *SessionSweeper) ActiveSessions(ctx context.Context) (int, error) {
	users, err := s.store.ListActiveUsers(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.ttl)
	active := 0
	for _, u := range users {
		if u.LastLoginAt != nil && u.LastLoginAt.After(cutoff) {
			active++
		}
	}
	return active, nil
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	active, err := s.ActiveSessions(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	telemetry.ActiveSessions.Set(float64(active))
	slog.Debug("session sweep complete", "active_sessions", active)
}
