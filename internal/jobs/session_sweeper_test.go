package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

func sweeperStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.SeedFixtures(context.Background()); err != nil {
		t.Fatalf("SeedFixtures: %v", err)
	}
	return s
}

func TestActiveSessions_NoLogins(t *testing.T) {
	s := sweeperStore(t)
	sw := NewSessionSweeper(s, &config.AuthConfig{TokenTTL: time.Hour, SessionSweepInterval: time.Minute})

	active, err := sw.ActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if active != 0 {
		t.Errorf("active = %d, want 0 before any login", active)
	}
}

func TestActiveSessions_CountsRecentLogins(t *testing.T) {
	ctx := context.Background()
	s := sweeperStore(t)
	sw := NewSessionSweeper(s, &config.AuthConfig{TokenTTL: time.Hour, SessionSweepInterval: time.Minute})

	admin, err := s.GetUserByUsername(ctx, "admin")
	if err != nil || admin == nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	if err := s.TouchLastLogin(ctx, admin.ID); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}

	active, err := sw.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if active != 1 {
		t.Errorf("active = %d, want 1", active)
	}
}

func TestActiveSessions_ExcludesExpired(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	stale := time.Now().Add(-2 * time.Hour)
	if err := s.CreateUser(ctx, &models.User{
		Username:     "dormant",
		Email:        "dormant@portal.example",
		PasswordHash: "x",
		Role:         models.RoleSupervisor,
		IsActive:     true,
		LastLoginAt:  &stale,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	sw := NewSessionSweeper(s, &config.AuthConfig{TokenTTL: time.Hour, SessionSweepInterval: time.Minute})
	active, err := sw.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if active != 0 {
		t.Errorf("active = %d, want 0 once the token TTL has passed", active)
	}
}

func TestSessionSweeper_StopEndsLoop(t *testing.T) {
	s := sweeperStore(t)
	sw := NewSessionSweeper(s, &config.AuthConfig{TokenTTL: time.Hour, SessionSweepInterval: 10 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		sw.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	sw.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
