// Package chunk persists world chunks.
//
// A Store is a dumb keyed blob store addressed by chunk coordinate. The
// Provider on top of it encodes chunks into records and implements
// world.Provider, so the world manager loads persisted chunks in place of
// generating them.
//
// Backends:
//   - memory: process-local, for tests and throwaway worlds
//   - badger: embedded on-disk store
//   - s3: object storage, one object per chunk
package chunk

import (
	"context"
	"errors"

	"github.com/marmos91/dittocraft/internal/world"
)

// ErrChunkNotFound is returned by Get when no record exists for a coordinate.
var ErrChunkNotFound = errors.New("chunk store: chunk not found")

// Store holds one encoded record per chunk coordinate.
//
// Implementations must be safe for concurrent use. Get returns a slice the
// caller owns; Put must not retain data after it returns.
type Store interface {
	// Get returns the record stored for coord, or ErrChunkNotFound.
	Get(ctx context.Context, coord world.ChunkCoord) ([]byte, error)

	// Put stores data for coord, replacing any previous record.
	Put(ctx context.Context, coord world.ChunkCoord, data []byte) error

	// Delete removes the record for coord. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, coord world.ChunkCoord) error

	// List returns every stored coordinate, in no particular order.
	List(ctx context.Context) ([]world.ChunkCoord, error)

	// Close releases the store's resources.
	Close() error
}
