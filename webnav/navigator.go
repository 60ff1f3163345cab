package webnav

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Page is the minimal page-like handle the navigator drives. The browser
// package adapts a live rod page; tests substitute fakes.
type Page interface {
	// Goto navigates and returns the main-document HTTP status. A zero
	// status with nil error means the status was unobservable (e.g.
	// about: URLs) and is treated as success.
	Goto(ctx context.Context, url string, timeout time.Duration) (status int, err error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	SetContent(ctx context.Context, html string) error
}

// AttemptRecord is the diagnostic trail of one navigation attempt.
type AttemptRecord struct {
	Target string       `json:"target"`
	Reason string       `json:"reason"`
	OK     bool         `json:"ok"`
	Class  FailureClass `json:"class,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Diagnostics accompanies every outcome, successful or not.
type Diagnostics struct {
	Attempts          []AttemptRecord `json:"attempts"`
	FinalFailureClass FailureClass    `json:"finalFailureClass,omitempty"`
	PolicyName        string          `json:"policyName"`
	Hostname          string          `json:"hostname"`
}

// Outcome is the result of a resilient navigation.
type Outcome struct {
	OK          bool
	Mode        string // direct | reader
	LoadedURL   string
	Title       string
	Errors      []string
	Diagnostics Diagnostics
}

// Navigator drives a Page through bounded retries with per-domain policy,
// failure classification, challenge-wall detection, and a reader-mode
// fallback. A Navigator is safe for concurrent use across pages.
type Navigator struct {
	memory *HostMemory
	reader *Reader
	logger *slog.Logger

	// sleep is injectable so tests don't wait out real backoffs.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewNavigator wires a navigator. A nil reader disables the fallback
// (outcomes then fail once attempts are exhausted).
func NewNavigator(memory *HostMemory, reader *Reader, logger *slog.Logger) *Navigator {
	if memory == nil {
		memory = NewHostMemory(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		memory: memory,
		reader: reader,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Navigate loads rawURL into page, retrying per the resolved domain policy
// and falling back to a synthesized reader page when every live attempt
// fails. It always returns an outcome; the only failing outcome is a
// fallback that itself could not be rendered.
func (n *Navigator) Navigate(ctx context.Context, page Page, rawURL string) Outcome {
	target := NormalizeURL(rawURL)
	attempts := BuildAttempts(target, n.memory)
	policy := ResolvePolicy(hostnameOf(target))

	out := Outcome{
		Diagnostics: Diagnostics{
			PolicyName: policy.Name,
			Hostname:   policy.Hostname,
		},
	}

	for i := 0; i < policy.MaxAttempts; i++ {
		attempt := attempts[i%len(attempts)]
		host := hostnameOf(attempt.Target)

		class, errMsg, ok := n.tryOnce(ctx, page, attempt, policy)
		n.memory.Record(host, ok, class)

		if ok {
			loadedURL, _ := page.URL(ctx)
			title, _ := page.Title(ctx)
			out.OK = true
			out.Mode = attempt.Reason
			out.LoadedURL = loadedURL
			out.Title = title
			out.Diagnostics.Attempts = append(out.Diagnostics.Attempts,
				AttemptRecord{Target: attempt.Target, Reason: attempt.Reason, OK: true})
			return out
		}

		out.Errors = append(out.Errors, errMsg)
		out.Diagnostics.Attempts = append(out.Diagnostics.Attempts, AttemptRecord{
			Target: attempt.Target,
			Reason: attempt.Reason,
			Class:  class,
			Error:  errMsg,
		})
		out.Diagnostics.FinalFailureClass = class

		n.logger.Warn("webnav: attempt failed",
			"target", attempt.Target,
			"attempt", i+1,
			"max_attempts", policy.MaxAttempts,
			"class", class,
			"error", errMsg)

		if i < policy.MaxAttempts-1 {
			wait := policy.backoffBase(class) * time.Duration(i+1)
			if err := n.sleep(ctx, wait); err != nil {
				break
			}
		}
	}

	return n.fallback(ctx, page, target, out)
}

// tryOnce performs a single attempt: navigate, check status, settle, and
// run the challenge-wall detector. ok is true only for a live render of
// real content.
func (n *Navigator) tryOnce(ctx context.Context, page Page, attempt Attempt, policy Policy) (FailureClass, string, bool) {
	status, err := page.Goto(ctx, attempt.Target, policy.NavTimeout)
	if err != nil {
		return Classify(0, err.Error()), err.Error(), false
	}
	if status >= 400 {
		return Classify(status, ""), fmt.Sprintf("http %d from %s", status, attempt.Target), false
	}

	// Let client-side rendering settle before inspecting the page.
	if err := n.sleep(ctx, policy.SettleDelay); err != nil {
		return ClassUnknown, err.Error(), false
	}

	title, _ := page.Title(ctx)
	loadedURL, _ := page.URL(ctx)
	content, _ := page.Content(ctx)
	if IsChallengeWall(title, loadedURL, content) {
		return ClassChallengeWall, fmt.Sprintf("challenge wall at %s (title %q)", loadedURL, title), false
	}
	return "", "", true
}

// fallback synthesizes a reader-mode page from an out-of-band fetch and
// loads it in place of the failed navigation.
func (n *Navigator) fallback(ctx context.Context, page Page, target string, out Outcome) Outcome {
	if n.reader == nil {
		return out
	}

	doc := n.reader.Build(ctx, target, out.Errors)
	if err := page.SetContent(ctx, doc.HTML); err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("reader fallback render: %v", err))
		n.logger.Error("webnav: reader fallback failed", "target", target, "error", err)
		return out
	}

	out.OK = true
	out.Mode = ReasonReader
	out.LoadedURL = target
	out.Title = doc.Title
	n.logger.Info("webnav: served reader fallback", "target", target, "title", doc.Title)
	return out
}
