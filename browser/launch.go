package browser

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/sessiond/config"
)

// systemBinNames are looked up on PATH after the configured paths, before
// falling back to the launcher's own browser resolution.
var systemBinNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome-stable",
	"google-chrome",
	"headless-shell",
}

// LaunchError aggregates the failure of every candidate binary so the
// operator sees the whole ladder, not just the last rung.
type LaunchError struct {
	Attempts []string
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser: no usable browser binary (%d candidates tried): %s",
		len(e.Attempts), strings.Join(e.Attempts, "; "))
}

// binCandidates builds the ordered list of binaries to try. An empty
// string terminates the ladder and means "let the launcher decide".
func binCandidates(cfg config.BrowserConfig) []string {
	var out []string
	for _, p := range cfg.BinPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	for _, name := range systemBinNames {
		if p, err := exec.LookPath(name); err == nil {
			out = append(out, p)
		}
	}
	out = append(out, "")
	return out
}

// launchBrowser walks the binary ladder until one launches and connects.
// The returned launcher must be cleaned up when the browser is closed.
func launchBrowser(cfg config.BrowserConfig, logger *slog.Logger) (*rod.Browser, *launcher.Launcher, error) {
	lerr := &LaunchError{}

	for _, bin := range binCandidates(cfg) {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("lang", cfg.Locale).
			Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))
		if bin != "" {
			l = l.Bin(bin)
		}

		wsURL, err := l.Launch()
		if err != nil {
			lerr.Attempts = append(lerr.Attempts, fmt.Sprintf("%s: launch: %v", binLabel(bin), err))
			l.Cleanup()
			continue
		}

		b := rod.New().ControlURL(wsURL)
		if err := b.Connect(); err != nil {
			lerr.Attempts = append(lerr.Attempts, fmt.Sprintf("%s: connect: %v", binLabel(bin), err))
			l.Kill()
			l.Cleanup()
			continue
		}

		logger.Info("browser: launched", "bin", binLabel(bin), "control_url", wsURL)
		return b, l, nil
	}

	return nil, nil, lerr
}

func binLabel(bin string) string {
	if bin == "" {
		return "launcher-default"
	}
	return bin
}
