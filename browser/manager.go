// Package browser manages the per-session headless browser pool: launch
// via a binary ladder, stealth page setup, idle reaping, CDP screencast
// into the frame service, and ordered teardown.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/sessiond/config"
	"github.com/hazyhaar/sessiond/events"
	"github.com/hazyhaar/sessiond/frames"
)

// session is one live browser session: its own browser process, one
// stealth page, an idle reaper, and an optional screencast stream.
type session struct {
	id        string
	browser   *rod.Browser
	lnch      *launcher.Launcher
	page      *rod.Page
	createdAt time.Time
	idle      *idleTimer

	// ready is closed once the launch finishes, successfully or not;
	// err is set before the close. The slot is reserved in the session
	// map while the launch runs, so other sessions are never blocked
	// behind it.
	ready chan struct{}
	err   error

	mu         sync.Mutex
	currentURL string
	cast       *screencast
}

// Info is a point-in-time snapshot of a session.
type Info struct {
	ID            string    `json:"id"`
	CurrentURL    string    `json:"currentUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	Screencasting bool      `json:"screencasting"`
	FrameCount    int       `json:"frameCount"`
}

// Manager owns the session pool. All methods are safe for concurrent use.
type Manager struct {
	cfg    config.BrowserConfig
	frames *frames.Service
	events *events.Router
	logger *slog.Logger

	// launchFn and setupFn are swappable for tests that have no browser.
	launchFn func() (*rod.Browser, *launcher.Launcher, error)
	setupFn  func(b *rod.Browser) (*rod.Page, error)

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewManager creates the pool manager. Nothing is launched until the
// first session is created.
func NewManager(cfg config.BrowserConfig, fsvc *frames.Service, router *events.Router, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		frames:   fsvc,
		events:   router,
		logger:   logger,
		sessions: make(map[string]*session),
	}
	m.launchFn = func() (*rod.Browser, *launcher.Launcher, error) {
		return launchBrowser(m.cfg, m.logger)
	}
	m.setupFn = m.setupPage
	return m
}

// Enabled reports whether the browser pool is configured on.
func (m *Manager) Enabled() bool { return m.cfg.Enabled }

// CanCreate reports whether the pool has room for another session. The
// answer is advisory: Create re-checks under the same lock it inserts
// under, so concurrent creators cannot oversubscribe the pool.
func (m *Manager) CanCreate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && len(m.sessions) < m.cfg.MaxSessions
}

// Create launches a browser session. A caller hitting a session another
// goroutine is mid-launching waits for that launch and shares its
// result; an already-live session is a no-op, so callers retry freely.
func (m *Manager) Create(ctx context.Context, sessionID string) error {
	if !m.cfg.Enabled {
		return fmt.Errorf("browser: pool disabled")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("browser: manager is closed")
	}
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		<-existing.ready
		return existing.err
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return fmt.Errorf("browser: session limit reached (%d)", m.cfg.MaxSessions)
	}

	// Reserve the slot, then launch outside the lock: a slow launch
	// must not stall creation or lookups for other sessions.
	s := &session{
		id:        sessionID,
		createdAt: time.Now(),
		ready:     make(chan struct{}),
	}
	m.sessions[sessionID] = s
	m.mu.Unlock()

	b, lnch, err := m.launchFn()
	var page *rod.Page
	if err == nil {
		m.emit(ctx, events.New(events.TypeBrowserLaunched, sessionID, nil))
		page, err = m.setupFn(b)
		if err != nil {
			if b != nil {
				b.Close()
			}
			if lnch != nil {
				lnch.Cleanup()
			}
			err = fmt.Errorf("browser: page setup: %w", err)
		}
	}
	if err != nil {
		m.mu.Lock()
		if m.sessions[sessionID] == s {
			delete(m.sessions, sessionID)
		}
		m.mu.Unlock()
		s.err = err
		close(s.ready)
		return err
	}

	s.browser = b
	s.lnch = lnch
	s.page = page
	s.idle = newIdleTimer(m.cfg.IdleTimeout, func() {
		m.logger.Info("browser: reaping idle session", "session_id", sessionID)
		if err := m.Destroy(context.Background(), sessionID); err != nil {
			m.logger.Warn("browser: idle reap failed", "session_id", sessionID, "error", err)
		}
	})
	m.mu.Lock()
	inUse := len(m.sessions)
	m.mu.Unlock()
	close(s.ready)

	m.emit(ctx, events.New(events.TypeSessionCreated, sessionID, map[string]any{
		"max_sessions": m.cfg.MaxSessions,
		"in_use":       inUse,
	}))
	m.logger.Info("browser: session created", "session_id", sessionID, "in_use", inUse)
	return nil
}

// setupPage makes the browsing context tolerate certificate errors, then
// creates the stealth page and applies viewport, locale and user agent
// from the configuration.
func (m *Manager) setupPage(b *rod.Browser) (*rod.Page, error) {
	if err := b.IgnoreCertErrors(true); err != nil {
		return nil, fmt.Errorf("ignore cert errors: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("viewport: %w", err)
	}

	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      m.cfg.UserAgent,
			AcceptLanguage: m.cfg.Locale,
		}); err != nil {
			page.Close()
			return nil, fmt.Errorf("user agent: %w", err)
		}
	}
	return page, nil
}

// Page returns the session's page, creating the session on first use.
// Every access pushes the idle deadline out.
func (m *Manager) Page(ctx context.Context, sessionID string) (*rod.Page, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()

	if !ok {
		if err := m.Create(ctx, sessionID); err != nil {
			return nil, err
		}
		m.mu.Lock()
		s = m.sessions[sessionID]
		m.mu.Unlock()
		if s == nil {
			return nil, fmt.Errorf("browser: session %s vanished during create", sessionID)
		}
	}

	<-s.ready
	if s.err != nil {
		return nil, s.err
	}
	s.idle.Touch()
	return s.page, nil
}

// NavPage returns the session's page behind the navigation interface.
func (m *Manager) NavPage(ctx context.Context, sessionID string) (*RodPage, error) {
	page, err := m.Page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &RodPage{page: page}, nil
}

// SetCurrentURL records the session's current location and emits the
// navigation event. Unknown sessions are ignored.
func (m *Manager) SetCurrentURL(ctx context.Context, sessionID, url string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	<-s.ready
	if s.err != nil {
		return
	}

	s.mu.Lock()
	s.currentURL = url
	s.mu.Unlock()
	s.idle.Touch()

	m.emit(ctx, events.New(events.TypeNavigated, sessionID, map[string]any{"url": url}))
}

// SessionInfo returns a snapshot of one session.
func (m *Manager) SessionInfo(sessionID string) (Info, bool) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	return m.snapshot(s), true
}

// Sessions returns snapshots of every live session.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, m.snapshot(s))
	}
	return out
}

func (m *Manager) snapshot(s *session) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:            s.id,
		CurrentURL:    s.currentURL,
		CreatedAt:     s.createdAt,
		Screencasting: s.cast != nil,
		FrameCount:    m.frames.Count(s.id),
	}
}

// Destroy tears a session down in dependency order: stop the idle timer,
// stop the screencast, drop the frame buffer, close the page, then the
// browser. Every step is best-effort; teardown never aborts halfway.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("browser: unknown session %s", sessionID)
	}

	<-s.ready
	if s.err != nil {
		// The launch failed; its creator already cleaned up.
		return nil
	}

	s.idle.Stop()

	s.mu.Lock()
	cast := s.cast
	s.cast = nil
	s.mu.Unlock()
	if cast != nil {
		cast.stop(m.logger)
	}

	m.frames.Clear(sessionID)

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			m.logger.Warn("browser: page close", "session_id", sessionID, "error", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			m.logger.Warn("browser: browser close", "session_id", sessionID, "error", err)
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}

	m.emit(ctx, events.New(events.TypeSessionDestroyed, sessionID, nil))
	m.logger.Info("browser: session destroyed", "session_id", sessionID)
	return nil
}

// DestroyAll tears down every session in parallel and closes the pool.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Destroy(ctx, id); err != nil {
				m.logger.Warn("browser: destroy during shutdown", "session_id", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}

func (m *Manager) emit(ctx context.Context, ev events.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Send(ctx, ev); err != nil {
		m.logger.Warn("browser: event emit", "type", ev.Type, "error", err)
	}
}
