package portal

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/audit"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/db/repositories"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

func newAuditLogRouter(t *testing.T) (*gin.Engine, *store.MemoryStore, *audit.Queue) {
	t.Helper()
	s := seededStore(t)

	queue, err := audit.NewQueue(s, 16, 1)
	if err != nil {
		t.Fatalf("audit.NewQueue: %v", err)
	}
	t.Cleanup(func() { queue.Stop(time.Second) })

	h := NewAuditLogHandlers(s, queue)
	r := gin.New()
	r.Use(withUsername("admin"))
	r.GET("/api/v1/audit-logs", h.ListHandler())
	r.POST("/api/v1/audit-logs", h.CreateHandler())
	r.GET("/api/v1/audit-logs/verify", h.VerifyHandler())
	return r, s, queue
}

// enqueueAndWait pushes entries through the queue and waits for them to land.
func enqueueAndWait(t *testing.T, s *store.MemoryStore, queue *audit.Queue, entries ...audit.Entry) {
	t.Helper()
	for _, e := range entries {
		if !queue.Enqueue(e) {
			t.Fatalf("Enqueue rejected entry %+v", e)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs, _, err := s.ListAuditLogs(context.Background(), repositories.AuditFilters{}, 1000, 0)
		if err != nil {
			t.Fatalf("ListAuditLogs: %v", err)
		}
		if len(logs) >= len(entries) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("audit entries did not land before the deadline")
}

func TestListAuditLogs_DefaultLimit(t *testing.T) {
	r, s, queue := newAuditLogRouter(t)
	enqueueAndWait(t, s, queue,
		audit.Entry{Actor: "admin", Action: "POST /api/v1/institutions", ResourceType: "institution"},
		audit.Entry{Actor: "admin", Action: "PUT /api/v1/institutions/:id", ResourceType: "institution"},
	)

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit-logs", nil)
	wantStatus(t, w, http.StatusOK)

	data := decodeData(t, w)
	if data["limit"].(float64) != 100 {
		t.Errorf("limit = %v, want default 100", data["limit"])
	}
	if data["total"].(float64) != 2 {
		t.Errorf("total = %v, want 2", data["total"])
	}
}

func TestListAuditLogs_LimitClamped(t *testing.T) {
	r, _, _ := newAuditLogRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit-logs?limit=9999", nil)
	wantStatus(t, w, http.StatusOK)

	if limit := decodeData(t, w)["limit"].(float64); limit != 500 {
		t.Errorf("limit = %v, want clamp to 500", limit)
	}
}

func TestListAuditLogs_ActorFilter(t *testing.T) {
	r, s, queue := newAuditLogRouter(t)
	enqueueAndWait(t, s, queue,
		audit.Entry{Actor: "admin", Action: "POST /api/v1/institutions", ResourceType: "institution"},
		audit.Entry{Actor: "supervisor", Action: "POST /api/v1/inspections", ResourceType: "inspection_finding"},
	)

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit-logs?actor=supervisor", nil)
	wantStatus(t, w, http.StatusOK)

	rows := decodeData(t, w)["logs"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(rows))
	}
	if actor := rows[0].(map[string]interface{})["actor"]; actor != "supervisor" {
		t.Errorf("actor = %v, want supervisor", actor)
	}
}

func TestCreateAuditLog_AcceptedAndLands(t *testing.T) {
	r, s, _ := newAuditLogRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/audit-logs", gin.H{
		"action":        "export.csv",
		"resource_type": "institution",
		"resource_id":   "inst-1",
	})
	wantStatus(t, w, http.StatusAccepted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs, _, err := s.ListAuditLogs(context.Background(), repositories.AuditFilters{}, 10, 0)
		if err != nil {
			t.Fatalf("ListAuditLogs: %v", err)
		}
		if len(logs) == 1 {
			if logs[0].Actor != "admin" {
				t.Errorf("actor = %q, want admin", logs[0].Actor)
			}
			if logs[0].Details["source"] != "client" {
				t.Errorf("details.source = %v, want client", logs[0].Details["source"])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client event never landed")
}

func TestCreateAuditLog_MissingFields(t *testing.T) {
	r, _, _ := newAuditLogRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/audit-logs", gin.H{"action": "x"})
	wantStatus(t, w, http.StatusBadRequest)
}

func TestVerifyAuditChain_Intact(t *testing.T) {
	r, s, queue := newAuditLogRouter(t)
	enqueueAndWait(t, s, queue,
		audit.Entry{Actor: "admin", Action: "a", ResourceType: "institution"},
		audit.Entry{Actor: "admin", Action: "b", ResourceType: "institution"},
		audit.Entry{Actor: "admin", Action: "c", ResourceType: "institution"},
	)

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit-logs/verify", nil)
	wantStatus(t, w, http.StatusOK)

	data := decodeData(t, w)
	if data["intact"] != true {
		t.Fatalf("intact = %v, want true", data["intact"])
	}
	if data["checked"].(float64) != 3 {
		t.Errorf("checked = %v, want 3", data["checked"])
	}
}

func TestVerifyAuditChain_DetectsTamper(t *testing.T) {
	r, s, queue := newAuditLogRouter(t)
	enqueueAndWait(t, s, queue,
		audit.Entry{Actor: "admin", Action: "a", ResourceType: "institution"},
	)

	// Append an entry whose hash does not extend the chain.
	forged := &models.AuditLog{
		Actor:        "intruder",
		Action:       "b",
		ResourceType: "institution",
		PrevHash:     "0000",
		EntryHash:    "ffff",
	}
	if err := s.AppendAuditLog(context.Background(), forged); err != nil {
		t.Fatalf("AppendAuditLog: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit-logs/verify", nil)
	wantStatus(t, w, http.StatusOK)

	data := decodeData(t, w)
	if data["intact"] != false {
		t.Fatalf("intact = %v, want false", data["intact"])
	}
	if data["broken_seq"].(float64) != 2 {
		t.Errorf("broken_seq = %v, want 2", data["broken_seq"])
	}
}
