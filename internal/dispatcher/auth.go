package dispatcher

import (
	"context"
	"regexp"
)

// Authenticator verifies a player before login completes.
type Authenticator interface {
	// ConnectionHash is sent in the handshake reply. "-" tells the client
	// the server runs in offline mode.
	ConnectionHash() string

	// Authenticate accepts or refuses a username.
	Authenticate(ctx context.Context, username string) error
}

// OfflineAuthenticator accepts every well-formed username.
type OfflineAuthenticator struct{}

func (OfflineAuthenticator) ConnectionHash() string                     { return "-" }
func (OfflineAuthenticator) Authenticate(context.Context, string) error { return nil }

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// ValidUsername reports whether name is a legal player name.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}
