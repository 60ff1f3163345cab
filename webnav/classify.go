// Package webnav implements the resilient navigation engine: per-domain
// policies, failure classification, challenge-wall detection, bounded
// retries, and a reader-mode fallback that synthesizes a readable page
// when every live attempt fails.
//
// The decision logic (policy resolution, classification, wall detection,
// attempt building) is pure, with no I/O, so it is testable in isolation.
package webnav

import (
	"strings"
)

// FailureClass categorizes a navigation failure.
type FailureClass string

const (
	ClassHTTP4xx       FailureClass = "http_4xx"
	ClassHTTP5xx       FailureClass = "http_5xx"
	ClassRateLimited   FailureClass = "rate_limited"
	ClassChallengeWall FailureClass = "challenge_wall"
	ClassTimeout       FailureClass = "timeout"
	ClassDNS           FailureClass = "dns"
	ClassTLS           FailureClass = "tls"
	ClassNetwork       FailureClass = "network"
	ClassUnknown       FailureClass = "unknown"
)

// errorMarkers maps lowercase message substrings to classes, in priority
// order: the first group with a hit wins.
var errorMarkers = []struct {
	class   FailureClass
	markers []string
}{
	{ClassTimeout, []string{"timeout", "timed out", "timed_out", "deadline exceeded"}},
	{ClassDNS, []string{"dns", "name not resolved", "name_not_resolved", "no such host"}},
	{ClassTLS, []string{"certificate", "ssl", "tls"}},
	{ClassNetwork, []string{"econnreset", "econnrefused", "connection reset", "connection refused", "network"}},
}

// Classify determines the failure class from an HTTP status and/or error
// message. Status takes precedence; 429 and 408 are treated as rate
// limiting, other 4xx/5xx map to their families. With no status, the
// lowercase error text is matched against the marker table. No signal at
// all classifies as unknown.
func Classify(status int, errMsg string) FailureClass {
	switch {
	case status == 429 || status == 408:
		return ClassRateLimited
	case status >= 500:
		return ClassHTTP5xx
	case status >= 400:
		return ClassHTTP4xx
	}

	msg := strings.ToLower(errMsg)
	if msg == "" {
		return ClassUnknown
	}
	for _, group := range errorMarkers {
		for _, m := range group.markers {
			if strings.Contains(msg, m) {
				return group.class
			}
		}
	}
	return ClassUnknown
}
