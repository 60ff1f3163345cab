// Package observability persists sessiond's lifecycle trail to SQLite:
// session events for after-the-fact debugging, plus periodic daemon
// heartbeats.
//
// Persistence is async and non-blocking: a full buffer drops events
// rather than applying backpressure to session operations.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/sessiond/dbopen"
	"github.com/hazyhaar/sessiond/events"
	"github.com/hazyhaar/sessiond/idgen"
)

const (
	auditBufferSize   = 256
	auditRetainRows   = 50_000
	auditPruneEvery   = 500 // inserts between retention sweeps
	auditFlushTimeout = 5 * time.Second
)

// AuditLog is an events.Sink writing session events to SQLite.
type AuditLog struct {
	db     *sql.DB
	logger *slog.Logger
	newID  idgen.Generator

	buf     chan events.Event
	done    chan struct{}
	once    sync.Once
	dropped int64
	mu      sync.Mutex
}

var _ events.Sink = (*AuditLog)(nil)

// NewAuditLog creates the sink and starts its writer goroutine. The
// schema must already be applied (see Init).
func NewAuditLog(db *sql.DB, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuditLog{
		db:     db,
		logger: logger,
		newID:  idgen.Prefixed("ev", idgen.UUIDv7()),
		buf:    make(chan events.Event, auditBufferSize),
		done:   make(chan struct{}),
	}
	go a.writeLoop()
	return a
}

// Send enqueues an event. Never blocks; a full buffer drops the event
// and counts the drop.
func (a *AuditLog) Send(ctx context.Context, ev events.Event) error {
	select {
	case a.buf <- ev:
		return nil
	default:
		a.mu.Lock()
		a.dropped++
		n := a.dropped
		a.mu.Unlock()
		if n%100 == 1 {
			a.logger.Warn("observability: audit buffer full", "dropped_total", n)
		}
		return nil
	}
}

// Dropped returns the number of events lost to buffer overflow.
func (a *AuditLog) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close drains buffered events and stops the writer.
func (a *AuditLog) Close() error {
	a.once.Do(func() { close(a.buf) })
	select {
	case <-a.done:
	case <-time.After(auditFlushTimeout):
		a.logger.Warn("observability: audit close timed out")
	}
	return nil
}

func (a *AuditLog) writeLoop() {
	defer close(a.done)

	inserts := 0
	for ev := range a.buf {
		if err := a.insert(ev); err != nil {
			a.logger.Error("observability: audit insert", "type", ev.Type, "error", err)
			continue
		}
		inserts++
		if inserts%auditPruneEvery == 0 {
			if err := a.prune(); err != nil {
				a.logger.Warn("observability: audit prune", "error", err)
			}
		}
	}
}

func (a *AuditLog) insert(ev events.Event) error {
	var data any
	if ev.Data != nil {
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("observability: marshal event data: %w", err)
		}
		data = string(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditFlushTimeout)
	defer cancel()
	_, err := dbopen.Exec(ctx, a.db,
		`INSERT INTO session_events (event_id, event_type, session_id, timestamp, data)
		 VALUES (?, ?, ?, ?, ?)`,
		a.newID(), ev.Type, ev.SessionID, ev.Timestamp.UnixMilli(), data)
	return err
}

// prune keeps the newest auditRetainRows rows.
func (a *AuditLog) prune() error {
	ctx, cancel := context.WithTimeout(context.Background(), auditFlushTimeout)
	defer cancel()
	return dbopen.RunTx(ctx, a.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`DELETE FROM session_events WHERE event_id NOT IN (
				SELECT event_id FROM session_events ORDER BY timestamp DESC LIMIT ?
			)`, auditRetainRows)
		return err
	})
}

// EventRecord is one row read back from the audit trail.
type EventRecord struct {
	EventID   string
	Type      string
	SessionID string
	Timestamp time.Time
	Data      string
}

// SessionEvents returns the most recent events for a session, newest
// first, capped at limit (default 100).
func (a *AuditLog) SessionEvents(ctx context.Context, sessionID string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT event_id, event_type, session_id, timestamp, COALESCE(data, '')
		 FROM session_events WHERE session_id = ?
		 ORDER BY timestamp DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		var ts int64
		if err := rows.Scan(&r.EventID, &r.Type, &r.SessionID, &ts, &r.Data); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
