package webnav

import "testing"

func TestNormalizeURLTracking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"utm stripped",
			"https://example.com/story?utm_source=news&utm_medium=email&id=7",
			"https://example.com/story?id=7",
		},
		{
			"click ids stripped",
			"https://example.com/a?gclid=x&fbclid=y&q=go",
			"https://example.com/a?q=go",
		},
		{
			"unrelated params kept",
			"https://example.com/search?q=go&page=2",
			"https://example.com/search?page=2&q=go",
		},
		{
			"fragment dropped",
			"https://example.com/doc#section-3",
			"https://example.com/doc",
		},
		{
			"no query untouched",
			"https://example.com/plain",
			"https://example.com/plain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLUnwrapsProxies(t *testing.T) {
	got := NormalizeURL("https://r.jina.ai/https://example.com/story?id=3")
	if got != "https://example.com/story?id=3" {
		t.Errorf("got %q", got)
	}

	got = NormalizeURL("https://12ft.io/https://news.example.org/a/b")
	if got != "https://news.example.org/a/b" {
		t.Errorf("got %q", got)
	}

	// Proxy host with a non-URL path is left alone.
	got = NormalizeURL("https://12ft.io/about")
	if got != "https://12ft.io/about" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeURLUnparsable(t *testing.T) {
	for _, raw := range []string{"", "not a url", "://missing-scheme", "about:blank"} {
		if got := NormalizeURL(raw); got != raw {
			t.Errorf("NormalizeURL(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestHostnameOf(t *testing.T) {
	if got := hostnameOf("https://WWW.Example.COM:8443/x"); got != "www.example.com" {
		t.Errorf("hostnameOf = %q", got)
	}
	if got := hostnameOf("://bad"); got != "" {
		t.Errorf("hostnameOf(bad) = %q, want empty", got)
	}
}
