// Package ident generates opaque identifiers for entries, parties, lobbies, and
// matches. A thin wrapper over google/uuid so the rest of the core depends on
// one seam instead of calling uuid.New directly everywhere.
package ident

import "github.com/google/uuid"

// ID is an opaque 128-bit identifier (RFC 4122 v4).
type ID = uuid.UUID

// Nil is the zero-value ID, available for "unset" ID fields.
var Nil = uuid.Nil

// New returns a fresh, statistically-unique ID.
func New() ID {
	return uuid.New()
}

// Parse parses s into an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}
