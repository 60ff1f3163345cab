package browser

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestIdleTimerFires(t *testing.T) {
	var fired atomic.Bool
	newIdleTimer(20*time.Millisecond, func() { fired.Store(true) })

	deadline := time.Now().Add(time.Second)
	for !fired.Load() {
		if time.Now().After(deadline) {
			t.Fatal("timer never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIdleTimerTouchDefersFiring(t *testing.T) {
	var fired atomic.Bool
	it := newIdleTimer(60*time.Millisecond, func() { fired.Store(true) })

	// Keep touching for longer than the idle window.
	for i := 0; i < 5; i++ {
		time.Sleep(25 * time.Millisecond)
		it.Touch()
		if fired.Load() {
			t.Fatal("fired despite activity")
		}
	}

	time.Sleep(150 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("never fired after activity stopped")
	}
}

func TestIdleTimerStop(t *testing.T) {
	var fired atomic.Bool
	it := newIdleTimer(20*time.Millisecond, func() { fired.Store(true) })
	it.Stop()

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("stopped timer fired")
	}

	// Touch after Stop must not resurrect it.
	it.Touch()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("touched stopped timer fired")
	}
}

func TestBinCandidatesAlwaysHasDefault(t *testing.T) {
	cands := binCandidates(poolConfig())
	if len(cands) == 0 || cands[len(cands)-1] != "" {
		t.Errorf("candidates = %q, want launcher default last", cands)
	}
}

func TestBinCandidatesSkipsMissingPaths(t *testing.T) {
	cfg := poolConfig()
	cfg.BinPaths = []string{"/does/not/exist/chrome", ""}
	for _, c := range binCandidates(cfg) {
		if c == "/does/not/exist/chrome" {
			t.Error("nonexistent path kept as candidate")
		}
	}
}
