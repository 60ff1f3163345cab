package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/sessiond/config"
	"github.com/hazyhaar/sessiond/events"
	"github.com/hazyhaar/sessiond/frames"
)

// screencast is one running CDP screencast stream. Each received frame is
// pushed into the frame service and acked; the ack is the backpressure:
// Chrome holds the next frame until the previous one is acknowledged.
type screencast struct {
	sessionID string
	page      *rod.Page
	cancel    context.CancelFunc
	done      chan struct{}
}

func screencastParams(cfg config.ScreencastConfig) *proto.PageStartScreencast {
	return &proto.PageStartScreencast{
		Format:        proto.PageStartScreencastFormat(cfg.Format),
		Quality:       gson.Int(cfg.Quality),
		MaxWidth:      gson.Int(cfg.MaxWidth),
		MaxHeight:     gson.Int(cfg.MaxHeight),
		EveryNthFrame: gson.Int(cfg.EveryNthFrame),
	}
}

// StartScreencast begins streaming frames for a session. Starting an
// already-streaming session is a no-op. A screencast failure degrades the
// session (no frames) but never destroys it.
func (m *Manager) StartScreencast(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("browser: unknown session %s", sessionID)
	}
	<-s.ready
	if s.err != nil {
		return s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cast != nil {
		return nil
	}

	if err := screencastParams(m.cfg.Screencast).Call(s.page); err != nil {
		return fmt.Errorf("browser: start screencast: %w", err)
	}

	castCtx, cancel := context.WithCancel(context.Background())
	cast := &screencast{
		sessionID: sessionID,
		page:      s.page,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go cast.run(castCtx, m.frames, m.logger)
	s.cast = cast

	m.emit(ctx, events.New(events.TypeScreencastStarted, sessionID, map[string]any{
		"format":  m.cfg.Screencast.Format,
		"quality": m.cfg.Screencast.Quality,
	}))
	m.logger.Info("browser: screencast started", "session_id", sessionID)
	return nil
}

// StopScreencast halts the stream. The ring buffer keeps its frames so
// the timeline remains scrubbable after stopping.
func (m *Manager) StopScreencast(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("browser: unknown session %s", sessionID)
	}

	s.mu.Lock()
	cast := s.cast
	s.cast = nil
	s.mu.Unlock()
	if cast == nil {
		return nil
	}

	cast.stop(m.logger)
	m.emit(ctx, events.New(events.TypeScreencastStopped, sessionID, nil))
	m.logger.Info("browser: screencast stopped", "session_id", sessionID)
	return nil
}

func (c *screencast) run(ctx context.Context, fsvc *frames.Service, logger *slog.Logger) {
	defer close(c.done)

	page := c.page.Context(ctx)
	wait := page.EachEvent(func(e *proto.PageScreencastFrame) {
		var meta *frames.Metadata
		if e.Metadata != nil {
			meta = &frames.Metadata{Timestamp: float64(e.Metadata.Timestamp)}
		}
		fsvc.Push(c.sessionID, e.Data, meta)

		if err := (proto.PageScreencastFrameAck{SessionID: e.SessionID}).Call(page); err != nil {
			logger.Debug("browser: screencast ack", "session_id", c.sessionID, "error", err)
		}
	})
	wait()
}

func (c *screencast) stop(logger *slog.Logger) {
	if err := (proto.PageStopScreencast{}).Call(c.page); err != nil {
		logger.Debug("browser: stop screencast", "session_id", c.sessionID, "error", err)
	}
	c.cancel()
	<-c.done
}
