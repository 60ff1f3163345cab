package events

import (
	"context"
	"log/slog"
)

// LogSink writes every event to a structured logger. Useful as a default
// sink when no streaming gateway is attached.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Send(ctx context.Context, ev Event) error {
	l.logger.InfoContext(ctx, "events: "+ev.Type,
		"session_id", ev.SessionID,
		"data", ev.Data)
	return nil
}

func (l *LogSink) Close() error { return nil }
