// Package session holds the stable identifier shared by every component that
// refers to a connection without owning it.
package session

import "github.com/google/uuid"

// ID identifies one connection for its whole lifetime. Identifiers are never
// reused, so a closed session's ID simply stops resolving.
type ID uuid.UUID

// Nil is the zero ID; it never names a live session.
var Nil ID

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the first eight hex digits, for log lines.
func (id ID) Short() string {
	return id.String()[:8]
}
