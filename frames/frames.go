// Package frames implements the per-session screencast frame service: a
// bounded ring buffer for timeline scrubbing plus best-effort fan-out to
// live subscribers.
//
// Frames are opaque binary blobs (JPEG/PNG bytes from the CDP screencast).
// The service stores, it does not decode.
package frames

import (
	"log/slog"
	"sync"
)

// DefaultMaxFrames is the per-session ring capacity when none is configured.
const DefaultMaxFrames = 100

// Metadata carries optional frame annotations from the screencast stream.
type Metadata struct {
	Timestamp float64 `json:"timestamp,omitempty"`
	PageURL   string  `json:"pageUrl,omitempty"`
}

// Frame is one stored screencast frame. Index is monotonic per session,
// strictly increasing even across ring evictions, and never reused.
type Frame struct {
	Index    uint64
	Data     []byte
	Metadata *Metadata
}

// Subscriber receives live frames as they are pushed. Send must not block
// indefinitely; a failing subscriber is skipped, never retried.
type Subscriber interface {
	SendFrame(sessionID string, frame Frame) error
}

type sessionBuffer struct {
	entries []Frame // ring, oldest first
	last    uint64  // index of the most recently pushed frame
	subs    map[Subscriber]struct{}
}

// Service holds frame buffers for all live sessions.
type Service struct {
	maxFrames int
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionBuffer
}

// NewService creates a frame service with the given per-session capacity.
// maxFrames <= 0 uses DefaultMaxFrames.
func NewService(maxFrames int, logger *slog.Logger) *Service {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		maxFrames: maxFrames,
		logger:    logger,
		sessions:  make(map[string]*sessionBuffer),
	}
}

func (s *Service) buffer(sessionID string) *sessionBuffer {
	buf, ok := s.sessions[sessionID]
	if !ok {
		buf = &sessionBuffer{subs: make(map[Subscriber]struct{})}
		s.sessions[sessionID] = buf
	}
	return buf
}

// Push stores a frame under the next monotonic index and fans it out to
// every subscriber for the session. Delivery is best-effort: a failed send
// to one subscriber affects neither the others nor storage.
func (s *Service) Push(sessionID string, data []byte, meta *Metadata) Frame {
	s.mu.Lock()
	buf := s.buffer(sessionID)
	buf.last++
	frame := Frame{Index: buf.last, Data: data, Metadata: meta}
	buf.entries = append(buf.entries, frame)
	if len(buf.entries) > s.maxFrames {
		buf.entries = buf.entries[len(buf.entries)-s.maxFrames:]
	}
	subs := make([]Subscriber, 0, len(buf.subs))
	for sub := range buf.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.SendFrame(sessionID, frame); err != nil {
			s.logger.Debug("frames: subscriber send failed",
				"session_id", sessionID, "index", frame.Index, "error", err)
		}
	}
	return frame
}

// Subscribe registers a sink for live frames of a session.
func (s *Service) Subscribe(sessionID string, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer(sessionID).subs[sub] = struct{}{}
}

// Unsubscribe removes a sink. Sessions with no buffered frames and no
// remaining subscribers are pruned.
func (s *Service) Unsubscribe(sessionID string, sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(buf.subs, sub)
	if len(buf.subs) == 0 && len(buf.entries) == 0 {
		delete(s.sessions, sessionID)
	}
}

// Frame looks up a stored frame by absolute index, for timeline scrubbing.
// Returns false if the frame was evicted or never existed.
func (s *Service) Frame(sessionID string, index uint64) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf, ok := s.sessions[sessionID]
	if !ok || len(buf.entries) == 0 {
		return Frame{}, false
	}
	oldest := buf.entries[0].Index
	if index < oldest || index > buf.last {
		return Frame{}, false
	}
	return buf.entries[index-oldest], true
}

// Count returns the number of frames currently stored for a session.
func (s *Service) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if buf, ok := s.sessions[sessionID]; ok {
		return len(buf.entries)
	}
	return 0
}

// LastIndex returns the index of the most recently pushed frame, or 0 if
// the session has never received a frame.
func (s *Service) LastIndex(sessionID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if buf, ok := s.sessions[sessionID]; ok {
		return buf.last
	}
	return 0
}

// Clear drops the buffer, index counter, and subscriber set for a session
// in one step.
func (s *Service) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
