package webnav

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	readerMaxBody     = 2 << 20 // 2MB is plenty for metadata extraction
	readerMaxSnippets = 3
	readerUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// ReaderDoc is a synthesized reader-mode page.
type ReaderDoc struct {
	Title    string
	Snippets []string
	HTML     string
}

// Reader builds reader-mode fallback pages from an out-of-band fetch with
// its own short timeout, independent of the browser.
type Reader struct {
	client    *http.Client
	timeout   time.Duration
	sanitizer *bluemonday.Policy
}

// NewReader creates a fallback builder. timeout <= 0 defaults to 8s.
func NewReader(timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Reader{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		timeout:   timeout,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Build fetches the target best-effort, extracts a title and up to three
// description snippets, and renders a static styled page embedding them
// plus the prior attempt errors. Build never fails: when the fetch yields
// nothing, the page carries only the diagnostics.
func (r *Reader) Build(ctx context.Context, target string, priorErrors []string) ReaderDoc {
	title, snippets := r.extract(ctx, target)
	if title == "" {
		title = hostnameOf(target)
	}
	if title == "" {
		title = "Page unavailable"
	}
	doc := ReaderDoc{Title: title, Snippets: snippets}
	doc.HTML = renderReaderHTML(title, target, snippets, priorErrors)
	return doc
}

func (r *Reader) extract(ctx context.Context, target string) (string, []string) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", readerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, readerMaxBody))
	if err != nil && len(body) == 0 {
		return "", nil
	}
	return r.extractFromHTML(string(body))
}

// extractFromHTML pulls a title (og:title, twitter:title, <title>) and up
// to readerMaxSnippets description/paragraph snippets out of raw HTML.
func (r *Reader) extractFromHTML(raw string) (string, []string) {
	doc, err := xhtml.Parse(strings.NewReader(raw))
	if err != nil {
		return "", nil
	}

	var title, docTitle, metaDesc string
	var paragraphs []string

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if docTitle == "" {
					docTitle = strings.TrimSpace(nodeText(n))
				}
			case atom.Meta:
				prop := attrVal(n, "property")
				if prop == "" {
					prop = attrVal(n, "name")
				}
				switch strings.ToLower(prop) {
				case "og:title", "twitter:title":
					if title == "" {
						title = strings.TrimSpace(attrVal(n, "content"))
					}
				case "description", "og:description", "twitter:description":
					if metaDesc == "" {
						metaDesc = strings.TrimSpace(attrVal(n, "content"))
					}
				}
			case atom.P:
				if text := strings.TrimSpace(nodeText(n)); len(text) >= 80 {
					paragraphs = append(paragraphs, text)
				}
				return
			case atom.Script, atom.Style:
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if title == "" {
		title = docTitle
	}

	snippets := make([]string, 0, readerMaxSnippets)
	if metaDesc != "" {
		snippets = append(snippets, metaDesc)
	}
	for _, p := range paragraphs {
		if len(snippets) >= readerMaxSnippets {
			break
		}
		snippets = append(snippets, p)
	}

	title = r.sanitizer.Sanitize(title)
	for i, s := range snippets {
		s = r.sanitizer.Sanitize(s)
		if len(s) > 600 {
			s = s[:600] + "…"
		}
		snippets[i] = s
	}
	return title, snippets
}

func nodeText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == xhtml.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// renderReaderHTML produces the static fallback document. All dynamic
// strings are escaped; snippets were already tag-stripped by bluemonday.
func renderReaderHTML(title, source string, snippets, priorErrors []string) string {
	var b strings.Builder
	esc := html.EscapeString

	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
	b.WriteString(esc(title))
	b.WriteString(`</title><style>
body{font-family:Georgia,serif;max-width:680px;margin:48px auto;padding:0 24px;color:#222;line-height:1.6}
h1{font-size:1.6em;line-height:1.3}
.source{color:#666;font-size:.9em;word-break:break-all}
.badge{display:inline-block;background:#f4ecd8;color:#7a5c00;padding:2px 10px;border-radius:12px;font-size:.75em;font-family:sans-serif;margin-bottom:16px}
.snippet{margin:1em 0}
.diag{margin-top:48px;border-top:1px solid #ddd;padding-top:12px;color:#999;font-size:.75em;font-family:monospace}
</style></head><body>
<div class="badge">reader mode &middot; live page unavailable</div>
<h1>`)
	b.WriteString(esc(title))
	b.WriteString(`</h1><p class="source"><a href="`)
	b.WriteString(esc(source))
	b.WriteString(`">`)
	b.WriteString(esc(source))
	b.WriteString(`</a></p>`)

	if len(snippets) == 0 {
		b.WriteString(`<p class="snippet"><em>The page could not be loaded and no preview text was available.</em></p>`)
	}
	for _, s := range snippets {
		b.WriteString(`<p class="snippet">`)
		b.WriteString(esc(s))
		b.WriteString(`</p>`)
	}

	if len(priorErrors) > 0 {
		b.WriteString(`<div class="diag">`)
		// Keep the trail short: the last few errors tell the story.
		start := 0
		if len(priorErrors) > 5 {
			start = len(priorErrors) - 5
		}
		for _, e := range priorErrors[start:] {
			b.WriteString(esc(e))
			b.WriteString(`<br>`)
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`</body></html>`)
	return b.String()
}
