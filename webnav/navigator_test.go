package webnav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

// fakePage scripts navigation outcomes per call.
type fakePage struct {
	gotos      []string
	statuses   []int
	errs       []error
	title      string
	content    string
	setHTML    string
	setErr     error
	currentURL string
}

func (p *fakePage) Goto(ctx context.Context, url string, timeout time.Duration) (int, error) {
	i := len(p.gotos)
	p.gotos = append(p.gotos, url)
	p.currentURL = url
	var status int
	var err error
	if i < len(p.statuses) {
		status = p.statuses[i]
	}
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return status, err
}

func (p *fakePage) Title(ctx context.Context) (string, error)   { return p.title, nil }
func (p *fakePage) URL(ctx context.Context) (string, error)     { return p.currentURL, nil }
func (p *fakePage) Content(ctx context.Context) (string, error) { return p.content, nil }
func (p *fakePage) SetContent(ctx context.Context, html string) error {
	p.setHTML = html
	return p.setErr
}

func testNavigator(reader *Reader) (*Navigator, *HostMemory) {
	mem := NewHostMemory(0)
	n := NewNavigator(mem, reader, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return n, mem
}

func TestNavigateFirstAttemptSucceeds(t *testing.T) {
	page := &fakePage{title: "A Story", statuses: []int{200}}
	n, mem := testNavigator(nil)

	out := n.Navigate(context.Background(), page, "https://example.test/story?utm_source=x")
	if !out.OK {
		t.Fatalf("not OK: %+v", out)
	}
	if out.Mode != ReasonDirect {
		t.Errorf("Mode = %q", out.Mode)
	}
	if out.Title != "A Story" {
		t.Errorf("Title = %q", out.Title)
	}
	if len(page.gotos) != 1 {
		t.Fatalf("gotos = %v", page.gotos)
	}
	// Tracking params are stripped before the page ever sees the URL.
	if page.gotos[0] != "https://example.test/story" {
		t.Errorf("navigated to %q", page.gotos[0])
	}
	if s := mem.Stats("example.test"); s.Successes != 1 {
		t.Errorf("memory not updated: %+v", s)
	}
	if len(out.Diagnostics.Attempts) != 1 || !out.Diagnostics.Attempts[0].OK {
		t.Errorf("attempts = %+v", out.Diagnostics.Attempts)
	}
}

func TestNavigateRetriesThenSucceeds(t *testing.T) {
	page := &fakePage{
		title: "Recovered",
		errs:  []error{errors.New("net::ERR_CONNECTION_RESET"), nil},
	}
	n, _ := testNavigator(nil)

	out := n.Navigate(context.Background(), page, "https://example.test/a")
	if !out.OK {
		t.Fatalf("not OK: %+v", out)
	}
	if len(out.Diagnostics.Attempts) != 2 {
		t.Fatalf("attempts = %+v", out.Diagnostics.Attempts)
	}
	first := out.Diagnostics.Attempts[0]
	if first.OK || first.Class != ClassNetwork {
		t.Errorf("first attempt = %+v", first)
	}
	// The retry targets the www alias before coming back around.
	if len(page.gotos) != 2 || page.gotos[1] != "https://www.example.test/a" {
		t.Errorf("gotos = %v", page.gotos)
	}
}

func TestNavigateExhaustionFallsBackToReader(t *testing.T) {
	failure := errors.New("dial tcp: connection refused")
	page := &fakePage{errs: []error{failure, failure, failure, failure}}
	n, mem := testNavigator(NewReader(100 * time.Millisecond))

	out := n.Navigate(context.Background(), page, "https://svc.invalid/report")
	if !out.OK {
		t.Fatalf("fallback should succeed: %+v", out)
	}
	if out.Mode != ReasonReader {
		t.Errorf("Mode = %q", out.Mode)
	}
	if out.Title != "svc.invalid" {
		t.Errorf("Title = %q", out.Title)
	}
	if page.setHTML == "" {
		t.Error("reader HTML never rendered into the page")
	}

	// Default policy: three live attempts, each recorded as a network
	// failure before the fallback.
	if got := len(out.Diagnostics.Attempts); got != 3 {
		t.Fatalf("attempts = %d: %+v", got, out.Diagnostics.Attempts)
	}
	for _, a := range out.Diagnostics.Attempts {
		if a.OK || a.Class != ClassNetwork {
			t.Errorf("attempt = %+v", a)
		}
	}
	if out.Diagnostics.FinalFailureClass != ClassNetwork {
		t.Errorf("FinalFailureClass = %q", out.Diagnostics.FinalFailureClass)
	}
	total := 0
	for _, host := range []string{"svc.invalid", "www.svc.invalid"} {
		s := mem.Stats(host)
		total += s.Failures
	}
	if total != 3 {
		t.Errorf("recorded failures = %d, want 3", total)
	}
}

func TestNavigateHTTPStatusClassified(t *testing.T) {
	page := &fakePage{statuses: []int{503, 429, 404}}
	n, _ := testNavigator(nil)

	out := n.Navigate(context.Background(), page, "https://example.test/x")
	if out.OK {
		t.Fatal("should not succeed")
	}
	want := []FailureClass{ClassHTTP5xx, ClassRateLimited, ClassHTTP4xx}
	if len(out.Diagnostics.Attempts) != len(want) {
		t.Fatalf("attempts = %+v", out.Diagnostics.Attempts)
	}
	for i, a := range out.Diagnostics.Attempts {
		if a.Class != want[i] {
			t.Errorf("attempt %d class = %q, want %q", i, a.Class, want[i])
		}
	}
}

func TestNavigateChallengeWallDetected(t *testing.T) {
	page := &fakePage{
		title:   "Just a moment...",
		content: "<html><body><p>Checking your browser before accessing.</p></body></html>",
	}
	n, _ := testNavigator(nil)

	out := n.Navigate(context.Background(), page, "https://example.test/x")
	if out.OK {
		t.Fatal("challenge wall should not count as success")
	}
	if out.Diagnostics.FinalFailureClass != ClassChallengeWall {
		t.Errorf("FinalFailureClass = %q", out.Diagnostics.FinalFailureClass)
	}
}

func TestNavigateNoReaderFails(t *testing.T) {
	page := &fakePage{errs: []error{errMany, errMany, errMany}}
	n, _ := testNavigator(nil)

	out := n.Navigate(context.Background(), page, "https://example.test/x")
	if out.OK {
		t.Fatal("should fail without a reader")
	}
	if len(out.Errors) != 3 {
		t.Errorf("errors = %v", out.Errors)
	}
}

var errMany = fmt.Errorf("net::ERR_TIMED_OUT")

func TestNavigateReaderRenderFailure(t *testing.T) {
	page := &fakePage{
		errs:   []error{errMany, errMany, errMany},
		setErr: errors.New("page gone"),
	}
	n, _ := testNavigator(NewReader(100 * time.Millisecond))

	out := n.Navigate(context.Background(), page, "https://svc.invalid/x")
	if out.OK {
		t.Fatal("render failure must surface as a failed outcome")
	}
	if out.Errors[len(out.Errors)-1] != "reader fallback render: page gone" {
		t.Errorf("last error = %q", out.Errors[len(out.Errors)-1])
	}
}
