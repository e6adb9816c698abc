package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/world"
)

// Provider adapts a Store to world.Provider.
type Provider struct {
	store Store
}

// NewProvider returns a world.Provider reading and writing store.
func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// Store returns the underlying store.
func (p *Provider) Store() Store {
	return p.store
}

// LoadChunk returns the persisted chunk at coord. A missing record is
// reported as world.ErrChunkNotFound so the manager generates instead.
func (p *Provider) LoadChunk(ctx context.Context, coord world.ChunkCoord) (*world.Chunk, error) {
	data, err := p.store.Get(ctx, coord)
	if errors.Is(err, ErrChunkNotFound) {
		return nil, world.ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", coord, err)
	}

	c, err := DecodeChunk(coord, data)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded chunk %s from store (%d bytes)", coord, len(data))
	return c, nil
}

// SaveChunk encodes and stores c.
func (p *Provider) SaveChunk(ctx context.Context, c *world.Chunk) error {
	data, err := EncodeChunk(c)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, c.Coord(), data); err != nil {
		return fmt.Errorf("put chunk %s: %w", c.Coord(), err)
	}
	logger.Debug("Saved chunk %s to store (%d bytes)", c.Coord(), len(data))
	return nil
}

// Close closes the underlying store.
func (p *Provider) Close() error {
	return p.store.Close()
}
