// Command sessiond runs the session orchestrator daemon: the browser
// session pool, the sandbox container pool, and the resilient navigation
// engine, with lifecycle events audited to SQLite.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/sessiond/browser"
	"github.com/hazyhaar/sessiond/config"
	"github.com/hazyhaar/sessiond/dbopen"
	"github.com/hazyhaar/sessiond/events"
	"github.com/hazyhaar/sessiond/frames"
	"github.com/hazyhaar/sessiond/observability"
	"github.com/hazyhaar/sessiond/sandbox"
	"github.com/hazyhaar/sessiond/session"
	"github.com/hazyhaar/sessiond/webnav"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (empty = built-in defaults)")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Event sinks: always the structured log; the SQLite audit trail when
	// a path is configured.
	sinks := []events.Sink{events.NewLogSink(logger)}
	var audit *observability.AuditLog
	if cfg.Audit.Path != "" {
		db, err := dbopen.Open(cfg.Audit.Path,
			dbopen.WithMkdirAll(),
			dbopen.WithSchema(observability.Schema))
		if err != nil {
			slog.Error("audit db", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		audit = observability.NewAuditLog(db, logger)
		sinks = append(sinks, audit)

		go observability.NewHeartbeat(db, 30*time.Second, logger).Run(ctx)
	}
	router := events.NewRouter(logger, sinks...)
	defer router.Close()

	frameSvc := frames.NewService(cfg.Browser.Screencast.MaxFrames, logger)
	browsers := browser.NewManager(cfg.Browser, frameSvc, router, logger)

	var sandboxes *sandbox.Manager
	if cfg.Sandbox.Enabled {
		rt, err := sandbox.NewDockerRuntime(ctx, cfg.Sandbox.Endpoint, logger)
		if err != nil {
			// The daemon still serves browser sessions; sandbox requests
			// will fail with the cached reason.
			slog.Error("sandbox runtime unavailable", "error", err)
		} else {
			sandboxes = sandbox.NewManager(cfg.Sandbox, rt, router, logger)
		}
	}

	hostMemory := webnav.NewHostMemory(cfg.Nav.MaxTrackedHosts)
	reader := webnav.NewReader(cfg.Nav.ReaderFetchTimeout)
	navigator := webnav.NewNavigator(hostMemory, reader, logger)

	svc := session.New(browsers, sandboxes, frameSvc, navigator, router, logger)

	slog.Info("sessiond started",
		"browser_enabled", cfg.Browser.Enabled,
		"max_sessions", cfg.Browser.MaxSessions,
		"sandbox_enabled", cfg.Sandbox.Enabled && sandboxes != nil,
		"audit", cfg.Audit.Path != "")

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	svc.Close(shutdownCtx)
	if audit != nil {
		audit.Close()
	}
	slog.Info("shutdown complete")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
