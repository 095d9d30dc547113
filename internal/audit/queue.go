package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/safego"
	"github.com/supervision-portal/supervision-portal/internal/store"
	"github.com/supervision-portal/supervision-portal/internal/telemetry"
)

// Entry is what callers enqueue. Chain fields and timestamps are filled in by
// the queue worker, which is the only writer and therefore the only place the
// chain order is decided.
type Entry struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	IPAddress    string
}

// Queue is a bounded, single-worker audit writer. Enqueue never blocks the
// caller: when the buffer is full the entry is dropped and counted. Persistence
// failures are retried up to the retry budget, then the entry is dropped; the
// chain head only advances on a successful write, so drops never break
// verification of the surviving trail.
type Queue struct {
	store       store.Store
	entries     chan Entry
	retryBudget int
	lastHash    string
	shipper     Shipper

	stopOnce sync.Once
	done     chan struct{}
}

// NewQueue creates and starts an audit queue. size is the buffer capacity and
// retryBudget the number of attempts after the first failed write.
func NewQueue(s store.Store, size, retryBudget int) (*Queue, error) {
	lastHash, err := s.LatestAuditHash(context.Background())
	if err != nil {
		return nil, err
	}

	q := &Queue{
		store:       s,
		entries:     make(chan Entry, size),
		retryBudget: retryBudget,
		lastHash:    lastHash,
		done:        make(chan struct{}),
	}
	safego.Go(q.run)
	return q, nil
}

// SetShipper attaches an external destination that receives a copy of every
// persisted entry. Must be called before the first Enqueue; the worker reads
// the field without locking.
func (q *Queue) SetShipper(sh Shipper) {
	q.shipper = sh
}

// Enqueue hands an entry to the writer without blocking. It reports false when
// the buffer is full and the entry was dropped.
func (q *Queue) Enqueue(entry Entry) bool {
	select {
	case q.entries <- entry:
		telemetry.AuditQueueDepth.Set(float64(len(q.entries)))
		return true
	default:
		telemetry.AuditEntriesDroppedTotal.WithLabelValues("queue_full").Inc()
		slog.Warn("audit queue full, entry dropped",
			"action", entry.Action, "resourceType", entry.ResourceType)
		return false
	}
}

// Stop closes the queue and waits for buffered entries to drain, up to the
// given timeout. Entries still buffered at the deadline are lost.
func (q *Queue) Stop(timeout time.Duration) {
	q.stopOnce.Do(func() {
		close(q.entries)
		select {
		case <-q.done:
		case <-time.After(timeout):
			slog.Warn("audit queue drain timed out", "remaining", len(q.entries))
		}
		if q.shipper != nil {
			if err := q.shipper.Close(); err != nil {
				slog.Warn("closing audit shipper", "error", err)
			}
		}
	})
}

func (q *Queue) run() {
	defer close(q.done)
	for entry := range q.entries {
		q.write(entry)
		telemetry.AuditQueueDepth.Set(float64(len(q.entries)))
	}
}

func (q *Queue) write(entry Entry) {
	log := &models.AuditLog{
		Actor:        entry.Actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		Details:      entry.Details,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		PrevHash:     q.lastHash,
	}
	if entry.ResourceID != "" {
		log.ResourceID = &entry.ResourceID
	}
	if entry.IPAddress != "" {
		log.IPAddress = &entry.IPAddress
	}
	log.EntryHash = EntryHash(q.lastHash, log)

	// Writes must not inherit request deadlines; the request is long gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt <= q.retryBudget; attempt++ {
		if err = q.store.AppendAuditLog(ctx, log); err == nil {
			q.lastHash = log.EntryHash
			telemetry.AuditEntriesWrittenTotal.Inc()
			if q.shipper != nil {
				// Best effort: the chain write already succeeded.
				if shipErr := q.shipper.Ship(ctx, log); shipErr != nil {
					slog.Warn("audit entry not shipped",
						"seq", log.Seq, "error", shipErr)
				}
			}
			return
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}

	telemetry.AuditEntriesDroppedTotal.WithLabelValues("retries_exhausted").Inc()
	slog.Error("audit entry dropped after retries",
		"action", entry.Action, "resourceType", entry.ResourceType, "error", err)
}
