package events

import (
	"context"
)

// EventFunc is called for each event (in-process, zero serialisation).
type EventFunc func(ctx context.Context, ev Event) error

// Callback delivers events via Go function calls. This is the in-process
// path: when the streaming gateway lives in the same binary, events are
// delivered as function calls with zero serialisation overhead.
type Callback struct {
	onEvent EventFunc
}

// NewCallback creates a Callback sink. A nil handler drops all events.
func NewCallback(onEvent EventFunc) *Callback {
	return &Callback{onEvent: onEvent}
}

func (c *Callback) Send(ctx context.Context, ev Event) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
