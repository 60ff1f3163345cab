package webnav

import (
	"net/url"
	"strings"
)

// readerProxyHosts are wrapper services that embed the real URL in their
// path. Navigation should always target the unwrapped origin.
var readerProxyHosts = map[string]bool{
	"r.jina.ai":       true,
	"www.textise.net": true,
	"12ft.io":         true,
}

// trackingParams are query parameter names stripped during normalization.
// utm_* is matched by prefix; the rest by exact name.
var trackingParams = map[string]bool{
	"gclid":    true,
	"fbclid":   true,
	"msclkid":  true,
	"igshid":   true,
	"mc_cid":   true,
	"mc_eid":   true,
	"s_kwcid":  true,
	"ref":      true,
	"ref_src":  true,
	"referrer": true,
}

// NormalizeURL unwraps known reader-proxy wrapper shapes and strips
// tracking query parameters. A string that does not parse as a URL is
// returned unchanged; normalization never fails.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	if unwrapped := unwrapProxy(u); unwrapped != nil {
		u = unwrapped
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if trackingParams[name] || strings.HasPrefix(name, "utm_") {
				q.Del(name)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment = ""

	return u.String()
}

// unwrapProxy extracts the origin URL embedded in a reader-proxy path,
// e.g. https://r.jina.ai/https://example.com/story. Returns nil when the
// URL is not a known wrapper shape.
func unwrapProxy(u *url.URL) *url.URL {
	host := strings.ToLower(u.Host)
	if !readerProxyHosts[host] {
		return nil
	}
	embedded := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(embedded, "http://") && !strings.HasPrefix(embedded, "https://") {
		return nil
	}
	inner, err := url.Parse(embedded)
	if err != nil || inner.Host == "" {
		return nil
	}
	inner.RawQuery = u.RawQuery
	return inner
}

// hostnameOf returns the lowercase hostname of a URL string, or "" when
// the string does not parse.
func hostnameOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
