// Package session composes the resource pools into the session-scoped API
// the embedding platform drives: one call surface for browser navigation,
// sandbox execution, frame access, and teardown.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/sessiond/browser"
	"github.com/hazyhaar/sessiond/events"
	"github.com/hazyhaar/sessiond/frames"
	"github.com/hazyhaar/sessiond/sandbox"
	"github.com/hazyhaar/sessiond/webnav"
)

// Service is the orchestrator façade. Sandboxes may be nil when the
// container engine is unavailable; sandbox operations then fail while
// browser sessions keep working.
type Service struct {
	browsers  *browser.Manager
	sandboxes *sandbox.Manager
	frames    *frames.Service
	navigator *webnav.Navigator
	events    *events.Router
	logger    *slog.Logger
}

// New wires the façade. navigator must not be nil.
func New(browsers *browser.Manager, sandboxes *sandbox.Manager, fsvc *frames.Service,
	navigator *webnav.Navigator, router *events.Router, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		browsers:  browsers,
		sandboxes: sandboxes,
		frames:    fsvc,
		navigator: navigator,
		events:    router,
		logger:    logger,
	}
}

// Navigate drives the session's page to a URL through the resilience
// engine. The session is created on first use. The recorded current URL
// follows the outcome, including reader-mode fallbacks.
func (s *Service) Navigate(ctx context.Context, sessionID, rawURL string) (webnav.Outcome, error) {
	page, err := s.browsers.NavPage(ctx, sessionID)
	if err != nil {
		return webnav.Outcome{}, err
	}

	out := s.navigator.Navigate(ctx, page, rawURL)
	if out.OK {
		s.browsers.SetCurrentURL(ctx, sessionID, out.LoadedURL)
	}
	if out.Mode == webnav.ReasonReader {
		s.emit(ctx, events.New(events.TypeNavigationFallback, sessionID, map[string]any{
			"url":           out.LoadedURL,
			"failure_class": string(out.Diagnostics.FinalFailureClass),
			"attempts":      len(out.Diagnostics.Attempts),
		}))
	}
	return out, nil
}

// StartScreencast begins streaming the session's frames into the ring.
func (s *Service) StartScreencast(ctx context.Context, sessionID string) error {
	return s.browsers.StartScreencast(ctx, sessionID)
}

// StopScreencast halts the stream; buffered frames stay scrubbable.
func (s *Service) StopScreencast(ctx context.Context, sessionID string) error {
	return s.browsers.StopScreencast(ctx, sessionID)
}

// Frame returns a buffered frame by its monotonic index.
func (s *Service) Frame(sessionID string, index uint64) (frames.Frame, bool) {
	return s.frames.Frame(sessionID, index)
}

// LastFrameIndex returns the newest frame index, zero when none.
func (s *Service) LastFrameIndex(sessionID string) uint64 {
	return s.frames.LastIndex(sessionID)
}

// CreateSandbox provisions the session's sandbox container, reusing an
// already-running one.
func (s *Service) CreateSandbox(ctx context.Context, opts sandbox.CreateOptions) (sandbox.Info, error) {
	if s.sandboxes == nil {
		return sandbox.Info{}, fmt.Errorf("session: sandbox pool unavailable")
	}
	return s.sandboxes.Create(ctx, opts)
}

// SandboxStatus reports the session's sandbox record, if any.
func (s *Service) SandboxStatus(sessionID string) (sandbox.Info, bool) {
	if s.sandboxes == nil {
		return sandbox.Info{}, false
	}
	return s.sandboxes.Status(sessionID)
}

// Exec runs a command in the session's sandbox. The sandbox must have
// been provisioned with CreateSandbox first.
func (s *Service) Exec(ctx context.Context, sessionID string, spec sandbox.ExecSpec) (sandbox.ExecResult, error) {
	if s.sandboxes == nil {
		return sandbox.ExecResult{}, fmt.Errorf("session: sandbox pool unavailable")
	}
	return s.sandboxes.Exec(ctx, sessionID, spec)
}

// FileTree lists the session's workspace.
func (s *Service) FileTree(ctx context.Context, sessionID, relPath string) ([]sandbox.FileInfo, error) {
	if s.sandboxes == nil {
		return nil, fmt.Errorf("session: sandbox pool unavailable")
	}
	return s.sandboxes.FileTree(ctx, sessionID, relPath)
}

// ExportArtifacts copies workspace files out of the session's sandbox.
func (s *Service) ExportArtifacts(ctx context.Context, sessionID string, relPaths []string) ([]sandbox.Artifact, error) {
	if s.sandboxes == nil {
		return nil, fmt.Errorf("session: sandbox pool unavailable")
	}
	return s.sandboxes.ExportArtifacts(ctx, sessionID, relPaths)
}

// Sessions snapshots the live browser sessions.
func (s *Service) Sessions() []browser.Info {
	return s.browsers.Sessions()
}

// Destroy tears down everything a session holds. Both pools are attempted
// regardless of individual failures.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	var firstErr error
	if err := s.browsers.Destroy(ctx, sessionID); err != nil {
		firstErr = err
	}
	if s.sandboxes != nil {
		if err := s.sandboxes.Teardown(ctx, sessionID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close shuts both pools down.
func (s *Service) Close(ctx context.Context) {
	s.browsers.DestroyAll(ctx)
	if s.sandboxes != nil {
		s.sandboxes.Cleanup(ctx)
	}
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Send(ctx, ev); err != nil {
		s.logger.Warn("session: event emit", "type", ev.Type, "error", err)
	}
}
