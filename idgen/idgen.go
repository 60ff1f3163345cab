// Package idgen generates the identifiers sessiond persists: audit event
// IDs and heartbeat row IDs. Constructors accept a Generator so tests can
// substitute deterministic IDs.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings, which
// sort by creation time. The audit log orders and prunes by timestamp,
// so time-sortable primary keys keep its index write-path append-only.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed tags every ID from gen with a type marker, underscore
// separated: Prefixed("ev", g)() yields "ev_<id>".
func Prefixed(tag string, gen Generator) Generator {
	return func() string {
		return tag + "_" + gen()
	}
}
