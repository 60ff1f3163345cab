// Package events defines the lifecycle event boundary between the session
// resource managers and external consumers (SSE gateways, audit logs).
//
// Managers emit discrete named events; sinks deliver them. sessiond emits,
// it does not interpret.
package events

import (
	"context"
	"time"
)

// Event types emitted by the resource managers.
const (
	TypeBrowserLaunched    = "browser_launched"
	TypeSessionCreated     = "browser_session_created"
	TypeSessionDestroyed   = "browser_session_destroyed"
	TypeNavigated          = "navigated"
	TypeNavigationFallback = "navigation_fallback"
	TypeScreencastStarted  = "screencast_started"
	TypeScreencastStopped  = "screencast_stopped"
	TypeSandboxReady       = "sandbox_ready"
	TypeSandboxTeardown    = "sandbox_teardown"
	TypeExecFinished       = "exec_finished"
)

// Event is a single lifecycle transition.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// New builds an Event stamped with the current time.
func New(eventType, sessionID string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Sink delivers events to a backend. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}
