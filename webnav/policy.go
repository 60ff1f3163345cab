package webnav

import (
	"strings"
	"time"
)

// Policy is the per-domain navigation tuning record. Resolved policies are
// immutable; the table merges an override over the defaults.
type Policy struct {
	Name             string
	Hostname         string
	NavTimeout       time.Duration
	SettleDelay      time.Duration
	MaxAttempts      int
	BaseBackoff      time.Duration
	ChallengeBackoff time.Duration
	RateLimitBackoff time.Duration
}

// policyOverride is a partial policy; zero fields inherit the default.
type policyOverride struct {
	suffix           string
	name             string
	navTimeout       time.Duration
	settleDelay      time.Duration
	maxAttempts      int
	baseBackoff      time.Duration
	challengeBackoff time.Duration
	rateLimitBackoff time.Duration
}

// defaultPolicy is the fallback for hostnames with no override.
var defaultPolicy = Policy{
	Name:             "default",
	NavTimeout:       20 * time.Second,
	SettleDelay:      1200 * time.Millisecond,
	MaxAttempts:      3,
	BaseBackoff:      800 * time.Millisecond,
	ChallengeBackoff: 2500 * time.Millisecond,
	RateLimitBackoff: 4 * time.Second,
}

// policyOverrides is the static rule table, matched by longest hostname
// suffix. Order within the slice does not matter; specificity does.
var policyOverrides = []policyOverride{
	{suffix: "medium.com", name: "medium", settleDelay: 2 * time.Second, maxAttempts: 4},
	{suffix: "nytimes.com", name: "nytimes", navTimeout: 30 * time.Second, settleDelay: 2500 * time.Millisecond, challengeBackoff: 5 * time.Second},
	{suffix: "bloomberg.com", name: "bloomberg", maxAttempts: 2, challengeBackoff: 6 * time.Second},
	{suffix: "reddit.com", name: "reddit", settleDelay: 2 * time.Second, rateLimitBackoff: 8 * time.Second},
	{suffix: "x.com", name: "x", maxAttempts: 2, settleDelay: 3 * time.Second},
	{suffix: "twitter.com", name: "x", maxAttempts: 2, settleDelay: 3 * time.Second},
	{suffix: "linkedin.com", name: "linkedin", maxAttempts: 2, challengeBackoff: 5 * time.Second},
	{suffix: "arxiv.org", name: "arxiv", navTimeout: 30 * time.Second, maxAttempts: 4},
	{suffix: "sciencedirect.com", name: "sciencedirect", navTimeout: 30 * time.Second, challengeBackoff: 5 * time.Second},
	{suffix: "wiley.com", name: "wiley", navTimeout: 30 * time.Second},
}

// ResolvePolicy returns the navigation policy for a hostname: the longest
// matching suffix override merged over the defaults, or the default policy
// tagged "default". Pure and total: every input resolves to a policy.
func ResolvePolicy(hostname string) Policy {
	host := strings.ToLower(strings.TrimSuffix(hostname, "."))

	var best *policyOverride
	for i := range policyOverrides {
		o := &policyOverrides[i]
		if host == o.suffix || strings.HasSuffix(host, "."+o.suffix) {
			if best == nil || len(o.suffix) > len(best.suffix) {
				best = o
			}
		}
	}

	p := defaultPolicy
	p.Hostname = host
	if best == nil {
		return p
	}

	p.Name = best.name
	if best.navTimeout > 0 {
		p.NavTimeout = best.navTimeout
	}
	if best.settleDelay > 0 {
		p.SettleDelay = best.settleDelay
	}
	if best.maxAttempts > 0 {
		p.MaxAttempts = best.maxAttempts
	}
	if best.baseBackoff > 0 {
		p.BaseBackoff = best.baseBackoff
	}
	if best.challengeBackoff > 0 {
		p.ChallengeBackoff = best.challengeBackoff
	}
	if best.rateLimitBackoff > 0 {
		p.RateLimitBackoff = best.rateLimitBackoff
	}
	return p
}

// backoffBase picks the backoff base for a failure class: rate limits wait
// the longest, challenge walls in between, generic network blips the least.
func (p Policy) backoffBase(class FailureClass) time.Duration {
	switch class {
	case ClassRateLimited:
		return p.RateLimitBackoff
	case ClassChallengeWall:
		return p.ChallengeBackoff
	case ClassNetwork, ClassDNS, ClassTLS, ClassTimeout:
		return p.BaseBackoff / 2
	default:
		return p.BaseBackoff
	}
}
