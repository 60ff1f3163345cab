package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/sessiond/browser"
	"github.com/hazyhaar/sessiond/config"
	"github.com/hazyhaar/sessiond/frames"
	"github.com/hazyhaar/sessiond/sandbox"
	"github.com/hazyhaar/sessiond/webnav"
)

func testService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fsvc := frames.NewService(8, logger)
	cfg := config.BrowserConfig{Enabled: false, MaxSessions: 2, IdleTimeout: time.Minute}
	browsers := browser.NewManager(cfg, fsvc, nil, logger)
	nav := webnav.NewNavigator(webnav.NewHostMemory(0), nil, logger)
	return New(browsers, nil, fsvc, nav, nil, logger)
}

func TestNavigatePropagatesPoolErrors(t *testing.T) {
	s := testService(t)
	if _, err := s.Navigate(context.Background(), "s1", "https://example.com/"); err == nil {
		t.Fatal("disabled browser pool should surface an error")
	}
}

func TestSandboxOperationsWithoutRuntime(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.CreateSandbox(ctx, sandbox.CreateOptions{SessionID: "s1"}); err == nil {
		t.Error("CreateSandbox without a runtime should fail")
	}
	if _, ok := s.SandboxStatus("s1"); ok {
		t.Error("SandboxStatus without a runtime should report absent")
	}
	if _, err := s.Exec(ctx, "s1", sandbox.ExecSpec{Cmd: []string{"true"}}); err == nil {
		t.Error("Exec without a runtime should fail")
	}
	if _, err := s.FileTree(ctx, "s1", "."); err == nil {
		t.Error("FileTree without a runtime should fail")
	}
	if _, err := s.ExportArtifacts(ctx, "s1", []string{"out.txt"}); err == nil {
		t.Error("ExportArtifacts without a runtime should fail")
	}
}

func TestFrameAccess(t *testing.T) {
	s := testService(t)
	s.frames.Push("s1", []byte{1}, nil)
	s.frames.Push("s1", []byte{2}, nil)

	if got := s.LastFrameIndex("s1"); got != 2 {
		t.Errorf("LastFrameIndex = %d", got)
	}
	f, ok := s.Frame("s1", 1)
	if !ok || f.Data[0] != 1 {
		t.Errorf("Frame(1) = %+v, %v", f, ok)
	}
	if _, ok := s.Frame("s1", 99); ok {
		t.Error("out-of-range frame reported present")
	}
}

func TestDestroyTouchesBothPools(t *testing.T) {
	s := testService(t)
	// Unknown everywhere: the browser error surfaces, nothing panics.
	if err := s.Destroy(context.Background(), "ghost"); err == nil {
		t.Error("expected unknown-session error")
	}
	s.Close(context.Background())
}
