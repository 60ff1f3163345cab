package events

import (
	"context"
	"errors"
	"testing"
)

type recordSink struct {
	events []Event
	fail   bool
}

func (r *recordSink) Send(ctx context.Context, ev Event) error {
	if r.fail {
		return errors.New("sink down")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordSink) Close() error { return nil }

func TestRouter_FanOut(t *testing.T) {
	a := &recordSink{}
	b := &recordSink{}
	r := NewRouter(nil, a, b)

	ev := New(TypeSessionCreated, "s1", map[string]any{"url": "about:blank"})
	if err := r.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks to receive, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0].Type != TypeSessionCreated || a.events[0].SessionID != "s1" {
		t.Errorf("wrong event delivered: %+v", a.events[0])
	}
}

func TestRouter_OneFailureDoesNotBlockOthers(t *testing.T) {
	bad := &recordSink{fail: true}
	good := &recordSink{}
	r := NewRouter(nil, bad, good)

	err := r.Send(context.Background(), New(TypeSandboxReady, "s2", nil))
	if err == nil {
		t.Error("expected first error to surface")
	}
	if len(good.events) != 1 {
		t.Errorf("good sink should still receive, got %d", len(good.events))
	}
}

func TestCallback_NilHandler(t *testing.T) {
	c := NewCallback(nil)
	if err := c.Send(context.Background(), New(TypeNavigated, "s3", nil)); err != nil {
		t.Fatalf("nil handler should drop silently: %v", err)
	}
}

func TestNew_StampsTimestamp(t *testing.T) {
	ev := New(TypeExecFinished, "s4", nil)
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}
