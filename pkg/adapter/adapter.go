package adapter

import (
	"context"

	"github.com/marmos91/dittocraft/internal/dispatcher"
)

// Adapter represents a network front-end that can be managed by the server.
//
// Each adapter owns a listener and the connections accepted on it, and feeds
// every decoded packet into the shared dispatcher hub. All adapters share one
// hub, so players connected through different listeners see the same world.
//
// Lifecycle:
//  1. Creation: Adapter is created with its own configuration
//  2. Hub injection: SetHub() provides the shared dispatcher
//  3. Startup: Serve() starts accepting connections and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Outbound packets flow the other way: the hub hands every effect to the
// server, which offers it to each adapter through Deliver. An adapter ignores
// sessions it does not own.
//
// Thread safety:
// Implementations must be safe for concurrent use. SetHub() is called
// once before Serve(), but Stop() and Deliver() may be called concurrently
// with Serve().
type Adapter interface {
	dispatcher.Outbox

	// Serve starts the listener and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Kick connected players and wait for their sessions to end (with timeout)
	//   - Clean up resources
	//   - Return nil or an error describing an unclean shutdown
	//
	// If Serve returns before context cancellation, the server treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetHub injects the dispatcher hub every session talks to.
	//
	// This method is called exactly once before Serve() is called.
	SetHub(hub *dispatcher.Hub)

	// Stop initiates graceful shutdown.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	//   - Clean up all resources (listeners, connections, goroutines)
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is listening on.
	//
	// Returns the configured port until Serve() has bound the listener, and
	// the bound port afterwards.
	Port() int
}
