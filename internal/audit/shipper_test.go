package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

func sampleEntry(seq int64) *models.AuditLog {
	return &models.AuditLog{
		Seq:          seq,
		Actor:        "supervisor",
		Action:       "UPDATE",
		ResourceType: "institution",
		PrevHash:     "aa",
		EntryHash:    "bb",
		CreatedAt:    time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// MultiShipper
// ---------------------------------------------------------------------------

func TestNewMultiShipper_Empty(t *testing.T) {
	ms, err := NewMultiShipper(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.shippers) != 0 {
		t.Errorf("shippers = %d, want 0", len(ms.shippers))
	}
}

func TestMultiShipper_ShipEmpty(t *testing.T) {
	ms, _ := NewMultiShipper(nil)
	if err := ms.Ship(context.Background(), sampleEntry(1)); err != nil {
		t.Errorf("Ship with no destinations: %v", err)
	}
}

func TestNewMultiShipper_DisabledConfigSkipped(t *testing.T) {
	ms, err := NewMultiShipper([]ShipperConfig{
		{Enabled: false, Type: "webhook"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.shippers) != 0 {
		t.Errorf("shippers = %d, want disabled config skipped", len(ms.shippers))
	}
}

func TestNewMultiShipper_UnknownType(t *testing.T) {
	if _, err := NewMultiShipper([]ShipperConfig{{Enabled: true, Type: "syslog"}}); err == nil {
		t.Error("expected error for unknown shipper type")
	}
}

func TestNewMultiShipper_WebhookNilConfig(t *testing.T) {
	if _, err := NewMultiShipper([]ShipperConfig{{Enabled: true, Type: "webhook"}}); err == nil {
		t.Error("expected error for webhook shipper without webhook config")
	}
}

func TestNewMultiShipper_FileNilConfig(t *testing.T) {
	if _, err := NewMultiShipper([]ShipperConfig{{Enabled: true, Type: "file"}}); err == nil {
		t.Error("expected error for file shipper without file config")
	}
}

type failingShipper struct{}

func (failingShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	return errors.New("destination down")
}
func (failingShipper) Close() error { return nil }

type countingShipper struct {
	shipped int32
}

func (c *countingShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	atomic.AddInt32(&c.shipped, 1)
	return nil
}
func (c *countingShipper) Close() error { return nil }

func TestMultiShipper_ContinuesAfterShipperError(t *testing.T) {
	counter := &countingShipper{}
	ms := &MultiShipper{shippers: []Shipper{failingShipper{}, counter}}

	err := ms.Ship(context.Background(), sampleEntry(1))
	if err == nil {
		t.Error("expected the failing destination's error to surface")
	}
	if atomic.LoadInt32(&counter.shipped) != 1 {
		t.Error("second destination was not attempted after the first failed")
	}
}

// ---------------------------------------------------------------------------
// WebhookShipper
// ---------------------------------------------------------------------------

func TestWebhookShipper_ShipEntry(t *testing.T) {
	var received models.AuditLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode shipped entry: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, err := NewWebhookShipper(&WebhookConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}
	defer ws.Close()

	if err := ws.Ship(context.Background(), sampleEntry(7)); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if received.Seq != 7 || received.Actor != "supervisor" {
		t.Errorf("shipped entry = seq %d actor %q, want 7/supervisor", received.Seq, received.Actor)
	}
	if received.EntryHash != "bb" {
		t.Errorf("entry hash not shipped, got %q", received.EntryHash)
	}
}

func TestWebhookShipper_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ws, _ := NewWebhookShipper(&WebhookConfig{URL: srv.URL})
	defer ws.Close()

	if err := ws.Ship(context.Background(), sampleEntry(1)); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestWebhookShipper_CustomHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	ws, _ := NewWebhookShipper(&WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer siem-token"},
	})
	defer ws.Close()

	if err := ws.Ship(context.Background(), sampleEntry(1)); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if gotAuth != "Bearer siem-token" {
		t.Errorf("Authorization = %q, want configured header", gotAuth)
	}
}

func TestWebhookShipper_BatchFlushOnClose(t *testing.T) {
	var batchLen int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []models.AuditLog
		if err := json.NewDecoder(r.Body).Decode(&batch); err == nil {
			atomic.StoreInt32(&batchLen, int32(len(batch)))
		}
	}))
	defer srv.Close()

	ws, _ := NewWebhookShipper(&WebhookConfig{
		URL:           srv.URL,
		BatchSize:     10,
		FlushInterval: time.Hour,
	})

	for i := int64(1); i <= 3; i++ {
		if err := ws.Ship(context.Background(), sampleEntry(i)); err != nil {
			t.Fatalf("Ship %d: %v", i, err)
		}
	}

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&batchLen) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&batchLen); got != 3 {
		t.Errorf("flushed batch size = %d, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// FileShipper
// ---------------------------------------------------------------------------

func TestFileShipper_ShipEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-export.jsonl")

	fs, err := NewFileShipper(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	if err := fs.Ship(context.Background(), sampleEntry(3)); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var entry models.AuditLog
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("unmarshal exported line: %v", err)
	}
	if entry.Seq != 3 || entry.Action != "UPDATE" {
		t.Errorf("exported entry = seq %d action %q", entry.Seq, entry.Action)
	}
}

func TestFileShipper_MultipleEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-export.jsonl")
	fs, err := NewFileShipper(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		if err := fs.Ship(context.Background(), sampleEntry(i)); err != nil {
			t.Fatalf("Ship %d: %v", i, err)
		}
	}
	fs.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 5 {
		t.Errorf("exported %d lines, want 5", lines)
	}
}

func TestNewFileShipper_InvalidPath(t *testing.T) {
	if _, err := NewFileShipper(&FileConfig{Path: "/nonexistent-dir/audit.jsonl"}); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestFileShipper_Rotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-export.jsonl")
	fs, err := NewFileShipper(&FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}
	defer fs.Close()

	if err := fs.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("rotated backup missing: %v", err)
	}
	if err := fs.Ship(context.Background(), sampleEntry(1)); err != nil {
		t.Errorf("Ship after rotate: %v", err)
	}
}
