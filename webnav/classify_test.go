package webnav

import "testing"

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   FailureClass
	}{
		{"too many requests", 429, ClassRateLimited},
		{"request timeout", 408, ClassRateLimited},
		{"service unavailable", 503, ClassHTTP5xx},
		{"internal error", 500, ClassHTTP5xx},
		{"not found", 404, ClassHTTP4xx},
		{"forbidden", 403, ClassHTTP4xx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, ""); got != tt.want {
				t.Errorf("Classify(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestClassifyErrorText(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want FailureClass
	}{
		{"deadline", "context deadline exceeded", ClassTimeout},
		{"cdp timeout", "net::ERR_TIMED_OUT", ClassTimeout},
		{"dns", "net::ERR_NAME_NOT_RESOLVED", ClassDNS},
		{"no such host", "dial tcp: lookup example.test: no such host", ClassDNS},
		{"tls", "x509: certificate signed by unknown authority", ClassTLS},
		{"reset", "read tcp: connection reset by peer", ClassNetwork},
		{"econnreset", "socket hang up: ECONNRESET", ClassNetwork},
		{"refused", "dial tcp 10.0.0.1:443: connect: ECONNREFUSED", ClassNetwork},
		{"empty", "", ClassUnknown},
		{"unrecognized", "something odd happened", ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(0, tt.msg); got != tt.want {
				t.Errorf("Classify(0, %q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifyStatusBeatsErrorText(t *testing.T) {
	if got := Classify(429, "connection reset"); got != ClassRateLimited {
		t.Errorf("status should take precedence, got %q", got)
	}
}
