package webnav

import (
	"net/url"
	"sort"
	"strings"
)

// Attempt reasons. Direct attempts load the live page; the reader reason
// marks the synthesized fallback outcome.
const (
	ReasonDirect = "direct"
	ReasonReader = "reader"
)

// Attempt is one candidate navigation target.
type Attempt struct {
	Target string
	Reason string
}

// BuildAttempts expands a normalized URL into the ordered attempt list:
// the direct URL plus a www-toggled hostname alias (never for m.
// subdomains), de-duplicated, then reordered so hostnames with a better
// recorded track record come first. Ties keep insertion order. The result
// always contains at least one attempt.
func BuildAttempts(target string, mem *HostMemory) []Attempt {
	attempts := []Attempt{{Target: target, Reason: ReasonDirect}}

	if alias := wwwAlias(target); alias != "" {
		attempts = append(attempts, Attempt{Target: alias, Reason: ReasonDirect})
	}

	// De-duplicate by exact target string.
	seen := make(map[string]bool, len(attempts))
	uniq := attempts[:0]
	for _, a := range attempts {
		if seen[a.Target] {
			continue
		}
		seen[a.Target] = true
		uniq = append(uniq, a)
	}
	attempts = uniq

	if mem != nil {
		sort.SliceStable(attempts, func(i, j int) bool {
			return mem.Score(hostnameOf(attempts[i].Target)) > mem.Score(hostnameOf(attempts[j].Target))
		})
	}
	return attempts
}

// wwwAlias returns the target with its hostname's www. prefix toggled:
// stripped when present, added otherwise. Mobile (m.) subdomains get no
// alias; m.example.com and www.example.com are rarely the same site.
func wwwAlias(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()
	lower := strings.ToLower(host)
	switch {
	case strings.HasPrefix(lower, "www."):
		setHost(u, host[len("www."):])
	case strings.HasPrefix(lower, "m."):
		return ""
	default:
		setHost(u, "www."+host)
	}
	return u.String()
}

func setHost(u *url.URL, host string) {
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
}
