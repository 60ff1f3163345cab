package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/hazyhaar/sessiond/dbopen"
	"github.com/hazyhaar/sessiond/idgen"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int
	MemoryAllocMB   float64
	MemorySysMB     float64
	GCCount         uint32
}

// CollectRuntimeMetrics reads current Go runtime stats (~10µs overhead).
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / (1 << 20),
		MemorySysMB:     float64(mem.Sys) / (1 << 20),
		GCCount:         mem.NumGC,
	}
}

// Heartbeat periodically writes daemon liveness rows so an operator can
// tell a hung daemon from a dead one by looking at the database alone.
type Heartbeat struct {
	db       *sql.DB
	logger   *slog.Logger
	newID    idgen.Generator
	hostname string
	interval time.Duration
}

// NewHeartbeat creates a heartbeat writer. interval <= 0 defaults to 30s.
func NewHeartbeat(db *sql.DB, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	hostname, _ := os.Hostname()
	return &Heartbeat{
		db:       db,
		logger:   logger,
		newID:    idgen.Prefixed("hb", idgen.UUIDv7()),
		hostname: hostname,
		interval: interval,
	}
}

// Run writes heartbeats until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	m := CollectRuntimeMetrics()
	_, err := dbopen.Exec(ctx, h.db,
		`INSERT INTO daemon_heartbeats
		 (heartbeat_id, hostname, pid, timestamp, goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.newID(), h.hostname, os.Getpid(), time.Now().UnixMilli(),
		m.GoroutinesCount, m.MemoryAllocMB, m.MemorySysMB, m.GCCount)
	if err != nil && ctx.Err() == nil {
		h.logger.Warn("observability: heartbeat insert", "error", err)
	}
}
