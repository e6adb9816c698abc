package memory

import (
	"context"
	"sync"

	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
)

// MemoryChunkStore implements chunk.Store using in-memory storage.
//
// Characteristics:
//   - Fast: All operations are memory-speed
//   - Volatile: Data lost on restart
//   - Thread-safe: Protected by RWMutex
//
// Copying data on read and write prevents data races with caller-owned
// buffers.
type MemoryChunkStore struct {
	// data stores records keyed by chunk coordinate
	data map[world.ChunkCoord][]byte

	// mu protects concurrent access to data map
	mu sync.RWMutex
}

// NewMemoryChunkStore creates an empty in-memory chunk store.
//
// Returns an error only if ctx is already cancelled.
func NewMemoryChunkStore(ctx context.Context) (*MemoryChunkStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryChunkStore{
		data: make(map[world.ChunkCoord][]byte),
	}, nil
}

func (s *MemoryChunkStore) Get(ctx context.Context, coord world.ChunkCoord) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[coord]
	if !ok {
		return nil, chunk.ErrChunkNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryChunkStore) Put(ctx context.Context, coord world.ChunkCoord, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[coord] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryChunkStore) Delete(ctx context.Context, coord world.ChunkCoord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, coord)
	return nil
}

func (s *MemoryChunkStore) List(ctx context.Context) ([]world.ChunkCoord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coords := make([]world.ChunkCoord, 0, len(s.data))
	for coord := range s.data {
		coords = append(coords, coord)
	}
	return coords, nil
}

// Len returns the number of stored records.
func (s *MemoryChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close is a no-op; the data lives until the store is garbage collected.
func (s *MemoryChunkStore) Close() error {
	return nil
}
