package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Format(t *testing.T) {
	id := UUIDv7()()
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("expected 5 groups, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("expected length 36, got %d", len(id))
	}
}

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("ev", UUIDv7())()
	if !strings.HasPrefix(id, "ev_") {
		t.Fatalf("expected ev_ tag, got %q", id)
	}
	if len(id) != 3+36 {
		t.Fatalf("expected length 39, got %d in %q", len(id), id)
	}
}
