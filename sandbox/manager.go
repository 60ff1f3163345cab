package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hazyhaar/sessiond/config"
	"github.com/hazyhaar/sessiond/events"
)

const namePrefix = "sessiond-sbx-"

// Sandbox lifecycle states as tracked by the manager.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusError   = "error"
)

// containerName is the deterministic name for a session's sandbox. The
// determinism is what makes orphan recovery possible: a restarted daemon
// derives the same name and finds containers the previous process left
// behind.
func containerName(sessionID string) string {
	return namePrefix + sessionID
}

// CreateOptions parameterize sandbox provisioning. WorkspaceDir is the
// host directory bound into the container as its working directory; when
// empty the manager allocates one under the OS temp dir. Env entries are
// "KEY=value" pairs injected into the container.
type CreateOptions struct {
	SessionID    string
	WorkspaceDir string
	Env          []string
}

// Info is a point-in-time snapshot of a session's sandbox record.
type Info struct {
	SessionID    string    `json:"sessionId"`
	ContainerID  string    `json:"containerId"`
	WorkspaceDir string    `json:"workspaceDir"`
	CreatedAt    time.Time `json:"createdAt"`
	Status       string    `json:"status"`
}

type record struct {
	sessionID    string
	containerID  string
	workspaceDir string
	createdAt    time.Time
	status       string
}

func (r *record) info() Info {
	return Info{
		SessionID:    r.sessionID,
		ContainerID:  r.containerID,
		WorkspaceDir: r.workspaceDir,
		CreatedAt:    r.createdAt,
		Status:       r.status,
	}
}

// Manager owns the sandbox container pool.
type Manager struct {
	cfg    config.SandboxConfig
	rt     ContainerRuntime
	events *events.Router
	logger *slog.Logger

	mu       sync.Mutex
	records  map[string]*record
	creating map[string]chan struct{} // in-flight provisions, keyed by session
	broken   string                   // non-empty once setup has failed unrecoverably
}

// NewManager creates the pool manager around a connected runtime.
func NewManager(cfg config.SandboxConfig, rt ContainerRuntime, router *events.Router, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		rt:       rt,
		events:   router,
		logger:   logger,
		records:  make(map[string]*record),
		creating: make(map[string]chan struct{}),
	}
}

// Enabled reports whether the sandbox pool can provision containers. It
// turns false permanently once setup fails unrecoverably.
func (m *Manager) Enabled() bool {
	if !m.cfg.Enabled {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broken == ""
}

// SetupFailure returns the cached reason the pool became unavailable, or
// "" while it is healthy.
func (m *Manager) SetupFailure() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broken
}

// Create provisions the session's sandbox container, returning the
// existing record when one is already running. An orphan with the
// session's name from a previous process is force-removed and replaced,
// its state being unknowable. Once setup fails unrecoverably, every
// later call fails immediately with the cached reason instead of
// re-probing a dead environment.
//
// Provisioning runs outside the manager lock. The session is marked
// in-flight while its container comes up, so concurrent calls for the
// same session coalesce onto one provision and other sessions are never
// held behind a slow engine.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (Info, error) {
	if !m.cfg.Enabled {
		return Info{}, fmt.Errorf("sandbox: pool disabled")
	}
	if opts.SessionID == "" {
		return Info{}, fmt.Errorf("sandbox: session id required")
	}

	for {
		m.mu.Lock()
		if m.broken != "" {
			m.mu.Unlock()
			return Info{}, fmt.Errorf("%w: %s", ErrSetup, m.broken)
		}
		if rec, ok := m.records[opts.SessionID]; ok && rec.status == StatusRunning {
			info := rec.info()
			m.mu.Unlock()
			return info, nil
		}
		inflight, busy := m.creating[opts.SessionID]
		if !busy {
			done := make(chan struct{})
			m.creating[opts.SessionID] = done
			m.mu.Unlock()
			return m.create(ctx, opts, done)
		}
		m.mu.Unlock()

		// Another caller is provisioning this session. Wait for its
		// outcome, then re-check the record.
		select {
		case <-inflight:
		case <-ctx.Done():
			return Info{}, ctx.Err()
		}
	}
}

// create runs one provision attempt. done is closed after the outcome
// has been recorded, releasing any coalesced waiters.
func (m *Manager) create(ctx context.Context, opts CreateOptions, done chan struct{}) (Info, error) {
	defer func() {
		m.mu.Lock()
		delete(m.creating, opts.SessionID)
		m.mu.Unlock()
		close(done)
	}()

	workspace := opts.WorkspaceDir
	if workspace == "" {
		workspace = filepath.Join(os.TempDir(), "sessiond", opts.SessionID)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Info{}, fmt.Errorf("sandbox: workspace dir: %w", err)
	}

	id, err := m.provision(ctx, opts.SessionID, workspace, opts.Env)
	if err != nil {
		if errors.Is(err, ErrSetup) {
			m.mu.Lock()
			m.broken = err.Error()
			m.mu.Unlock()
			m.logger.Error("sandbox: environment unrecoverable", "error", err)
		}
		return Info{}, err
	}

	rec := &record{
		sessionID:    opts.SessionID,
		containerID:  id,
		workspaceDir: workspace,
		createdAt:    time.Now(),
		status:       StatusRunning,
	}
	m.mu.Lock()
	m.records[opts.SessionID] = rec
	m.mu.Unlock()

	m.emit(ctx, events.New(events.TypeSandboxReady, opts.SessionID, map[string]any{
		"container_id":  id,
		"image":         m.cfg.Image,
		"workspace_dir": workspace,
	}))
	m.logger.Info("sandbox: container ready", "session_id", opts.SessionID, "container_id", id)
	return rec.info(), nil
}

func (m *Manager) provision(ctx context.Context, sessionID, workspace string, env []string) (string, error) {
	name := containerName(sessionID)

	orphanID, _, err := m.rt.FindByName(ctx, name)
	if err != nil {
		return "", err
	}
	if orphanID != "" {
		m.logger.Warn("sandbox: removing orphan container", "session_id", sessionID, "container_id", orphanID)
		if err := m.rt.Remove(ctx, orphanID); err != nil {
			return "", fmt.Errorf("sandbox: orphan removal: %w", err)
		}
	}

	spec := ContainerSpec{
		Image:          m.cfg.Image,
		WorkspaceDir:   workspace,
		Env:            env,
		MemoryBytes:    ParseMemory(m.cfg.Memory),
		NanoCPUs:       NanoCPUs(m.cfg.CPUs),
		ScratchSize:    m.cfg.DiskSpace,
		NetworkEnabled: m.cfg.NetworkAccess,
		Labels: map[string]string{
			"sessiond.session": sessionID,
			"sessiond.managed": "true",
		},
	}

	id, err := m.rt.Create(ctx, name, spec)
	if err != nil {
		return "", err
	}
	if err := m.rt.Start(ctx, id); err != nil {
		if rmErr := m.rt.Remove(ctx, id); rmErr != nil {
			m.logger.Warn("sandbox: cleanup after failed start", "container_id", id, "error", rmErr)
		}
		return "", err
	}
	return id, nil
}

// Status returns the session's sandbox record, if any.
func (m *Manager) Status(sessionID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return Info{}, false
	}
	return rec.info(), true
}

// running returns the container ID of the session's running sandbox.
func (m *Manager) running(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok || rec.status != StatusRunning {
		return "", fmt.Errorf("%w: %s", ErrNotRunning, sessionID)
	}
	return rec.containerID, nil
}

// Exec runs a command in the session's sandbox. It requires an
// already-provisioned sandbox. The spec's Timeout bounds the run; when
// zero the configured default applies. The timer races stream
// completion; on timeout the result reports exit code -1 with whatever
// output was captured, and the in-container process is left to the
// container's resource limits.
func (m *Manager) Exec(ctx context.Context, sessionID string, spec ExecSpec) (ExecResult, error) {
	id, err := m.running(sessionID)
	if err != nil {
		return ExecResult{}, err
	}

	timeout := m.cfg.ExecTimeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	type outcome struct {
		res ExecResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := m.rt.Exec(execCtx, id, spec)
		done <- outcome{res, err}
	}()

	var res ExecResult
	select {
	case o := <-done:
		if o.err != nil && !errors.Is(o.err, context.DeadlineExceeded) {
			return ExecResult{}, o.err
		}
		res = o.res
		if errors.Is(o.err, context.DeadlineExceeded) {
			res.TimedOut = true
			res.ExitCode = -1
		}
	case <-execCtx.Done():
		res = ExecResult{
			ExitCode: -1,
			TimedOut: execCtx.Err() == context.DeadlineExceeded,
			Duration: time.Since(start),
		}
	}
	res.Success = !res.TimedOut && res.ExitCode == 0

	m.emit(ctx, events.New(events.TypeExecFinished, sessionID, map[string]any{
		"exit_code": res.ExitCode,
		"success":   res.Success,
		"timed_out": res.TimedOut,
		"duration":  res.Duration.String(),
	}))
	return res, nil
}

// Teardown stops and removes the session's container. The record is
// dropped even when the engine calls fail, so a session never wedges in
// a half-dead state. Unknown sessions are a no-op, so shutdown paths can
// call this unconditionally.
func (m *Manager) Teardown(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	rec, ok := m.records[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.rt.Stop(ctx, rec.containerID); err != nil {
		m.logger.Warn("sandbox: stop before removal", "session_id", sessionID, "container_id", rec.containerID, "error", err)
	}
	m.setStatus(sessionID, StatusStopped)

	if err := m.rt.Remove(ctx, rec.containerID); err != nil {
		m.setStatus(sessionID, StatusError)
		m.dropRecord(sessionID)
		return err
	}
	m.dropRecord(sessionID)
	m.emit(ctx, events.New(events.TypeSandboxTeardown, sessionID, map[string]any{
		"container_id": rec.containerID,
	}))
	m.logger.Info("sandbox: container removed", "session_id", sessionID, "container_id", rec.containerID)
	return nil
}

// Cleanup tears down every tracked container and closes the runtime.
func (m *Manager) Cleanup(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Teardown(ctx, id); err != nil {
			m.logger.Warn("sandbox: teardown during shutdown", "session_id", id, "error", err)
		}
	}
	if m.rt != nil {
		if err := m.rt.Close(); err != nil {
			m.logger.Warn("sandbox: runtime close", "error", err)
		}
	}
}

func (m *Manager) setStatus(sessionID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[sessionID]; ok {
		rec.status = status
	}
}

func (m *Manager) dropRecord(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
}

func (m *Manager) emit(ctx context.Context, ev events.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Send(ctx, ev); err != nil {
		m.logger.Warn("sandbox: event emit", "type", ev.Type, "error", err)
	}
}
