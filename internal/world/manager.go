package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// ErrChunkNotFound is returned by a Provider that has no data for a chunk.
// The manager then generates the chunk instead.
var ErrChunkNotFound = errors.New("chunk not found")

// Provider supplies persisted chunks in place of generation.
type Provider interface {
	LoadChunk(ctx context.Context, coord ChunkCoord) (*Chunk, error)
	SaveChunk(ctx context.Context, chunk *Chunk) error
}

// GenerationError is a localized failure to produce one chunk. It never
// affects other chunks; the next EnsureChunk for the coordinate retries.
type GenerationError struct {
	Coord ChunkCoord
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("chunk %s: %v", e.Coord, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ManagerConfig tunes chunk retention and persistence.
type ManagerConfig struct {
	// RetentionRadius keeps unloaded chunks cached while they are within this
	// many chunks of any player.
	RetentionRadius int

	// SaveGenerated writes generated chunks to the provider when they are
	// evicted or flushed.
	SaveGenerated bool
}

// Manager owns the chunk cache and tracks which chunks each session has
// loaded.
//
// EnsureChunk may be called from any goroutine; concurrent calls for the same
// coordinate share one generation. The loaded-chunk bookkeeping is mutated
// only by the dispatcher but is guarded by the same lock as the cache so that
// eviction sees a consistent view.
type Manager struct {
	generator Generator
	provider  Provider
	config    ManagerConfig
	metrics   metrics.WorldMetrics

	flight singleflight.Group

	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk
	loaded map[session.ID]map[ChunkCoord]struct{}
	refs   map[ChunkCoord]int
}

// NewManager creates a manager. provider and worldMetrics may be nil.
func NewManager(generator Generator, provider Provider, config ManagerConfig, worldMetrics metrics.WorldMetrics) *Manager {
	if worldMetrics == nil {
		worldMetrics = metrics.NewNoopWorldMetrics()
	}
	if config.RetentionRadius < 0 {
		config.RetentionRadius = 0
	}
	return &Manager{
		generator: generator,
		provider:  provider,
		config:    config,
		metrics:   worldMetrics,
		chunks:    make(map[ChunkCoord]*Chunk),
		loaded:    make(map[session.ID]map[ChunkCoord]struct{}),
		refs:      make(map[ChunkCoord]int),
	}
}

// Generator returns the terrain generator.
func (m *Manager) Generator() Generator {
	return m.generator
}

// Chunk returns the cached chunk at coord without generating it.
func (m *Manager) Chunk(coord ChunkCoord) (*Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[coord]
	return c, ok
}

// Len returns the number of cached chunks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// EnsureChunk returns the chunk at coord, loading or generating it if it is
// not cached. At most one load or generation runs per coordinate; concurrent
// callers wait for it and receive the same *Chunk.
func (m *Manager) EnsureChunk(ctx context.Context, coord ChunkCoord) (*Chunk, error) {
	if c, ok := m.Chunk(coord); ok {
		return c, nil
	}

	key := fmt.Sprintf("%d:%d", coord.X, coord.Z)
	v, err, _ := m.flight.Do(key, func() (any, error) {
		// A caller that missed the cache may arrive after the previous
		// flight finished and was forgotten.
		if c, ok := m.Chunk(coord); ok {
			return c, nil
		}

		c, err := m.produce(ctx, coord)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.chunks[coord] = c
		cached := len(m.chunks)
		m.mu.Unlock()
		m.metrics.SetCachedChunks(cached)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Chunk), nil
}

// EnsureAll warms every coordinate in coords concurrently. Failures are
// logged and otherwise ignored; the dispatcher retries them on demand.
func (m *Manager) EnsureAll(ctx context.Context, coords []ChunkCoord) {
	var wg sync.WaitGroup
	for _, coord := range coords {
		if _, ok := m.Chunk(coord); ok {
			continue
		}
		wg.Add(1)
		go func(c ChunkCoord) {
			defer wg.Done()
			if _, err := m.EnsureChunk(ctx, c); err != nil {
				logger.Warn("Chunk prefetch failed: %v", err)
			}
		}(coord)
	}
	wg.Wait()
}

func (m *Manager) produce(ctx context.Context, coord ChunkCoord) (*Chunk, error) {
	if m.provider != nil {
		c, err := m.provider.LoadChunk(ctx, coord)
		switch {
		case err == nil:
			c.persisted.Store(true)
			m.metrics.RecordChunkLoad("store")
			return c, nil
		case !errors.Is(err, ErrChunkNotFound):
			return nil, &GenerationError{Coord: coord, Err: fmt.Errorf("load from store: %w", err)}
		}
	}

	c, err := m.generate(coord)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordChunkLoad("generated")
	return c, nil
}

func (m *Manager) generate(coord ChunkCoord) (c *Chunk, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, &GenerationError{Coord: coord, Err: fmt.Errorf("generator panic: %v", r)}
		}
		m.metrics.RecordChunkGeneration(time.Since(start), err)
	}()

	c, err = m.generator.Generate(coord)
	if err != nil {
		return nil, &GenerationError{Coord: coord, Err: err}
	}
	if c == nil || c.Coord() != coord {
		return nil, &GenerationError{Coord: coord, Err: errors.New("generator returned a chunk for the wrong coordinate")}
	}
	return c, nil
}

// ChunksWithinRadius returns every coordinate whose Chebyshev distance from
// center is at most radius, nearest first.
func ChunksWithinRadius(center ChunkCoord, radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	coords := make([]ChunkCoord, 0, side*side)
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			coords = append(coords, ChunkCoord{X: center.X + int32(dx), Z: center.Z + int32(dz)})
		}
	}
	sort.Slice(coords, func(i, j int) bool {
		di, dj := squaredDistance(center, coords[i]), squaredDistance(center, coords[j])
		if di != dj {
			return di < dj
		}
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
	return coords
}

func squaredDistance(a, b ChunkCoord) int {
	dx := int(a.X) - int(b.X)
	dz := int(a.Z) - int(b.Z)
	return dx*dx + dz*dz
}

// ============================================================================
// Per-session loaded chunk tracking
// ============================================================================

// MarkLoaded records that a session's client holds coord. It reports false
// if it was already recorded.
func (m *Manager) MarkLoaded(id session.ID, coord ChunkCoord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.loaded[id]
	if !ok {
		set = make(map[ChunkCoord]struct{})
		m.loaded[id] = set
	}
	if _, dup := set[coord]; dup {
		return false
	}
	set[coord] = struct{}{}
	m.refs[coord]++
	return true
}

// MarkUnloaded records that a session's client dropped coord.
func (m *Manager) MarkUnloaded(id session.ID, coord ChunkCoord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(id, coord)
}

func (m *Manager) unloadLocked(id session.ID, coord ChunkCoord) bool {
	set, ok := m.loaded[id]
	if !ok {
		return false
	}
	if _, ok := set[coord]; !ok {
		return false
	}
	delete(set, coord)
	if m.refs[coord]--; m.refs[coord] <= 0 {
		delete(m.refs, coord)
	}
	return true
}

// IsLoaded reports whether the session holds coord.
func (m *Manager) IsLoaded(id session.ID, coord ChunkCoord) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[id][coord]
	return ok
}

// Loaded returns the coordinates a session holds, in no particular order.
func (m *Manager) Loaded(id session.ID) []ChunkCoord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChunkCoord, 0, len(m.loaded[id]))
	for c := range m.loaded[id] {
		out = append(out, c)
	}
	return out
}

// ForgetSession drops every chunk reference held by a session.
func (m *Manager) ForgetSession(id session.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.loaded[id] {
		m.unloadLocked(id, c)
	}
	delete(m.loaded, id)
}

// ============================================================================
// Eviction and persistence
// ============================================================================

// EvictUnused removes cached chunks that no session has loaded and that lie
// outside the retention radius of every anchor (normally the players' current
// chunks). Evicted chunks not yet persisted are saved when SaveGenerated is
// set. It returns the evicted coordinates.
func (m *Manager) EvictUnused(ctx context.Context, anchors []ChunkCoord) []ChunkCoord {
	var evicted []*Chunk

	m.mu.Lock()
	for coord, c := range m.chunks {
		if m.refs[coord] > 0 || m.retained(coord, anchors) {
			continue
		}
		delete(m.chunks, coord)
		evicted = append(evicted, c)
	}
	cached := len(m.chunks)
	m.mu.Unlock()

	m.metrics.SetCachedChunks(cached)
	if len(evicted) == 0 {
		return nil
	}
	m.metrics.RecordChunksEvicted(len(evicted))

	coords := make([]ChunkCoord, 0, len(evicted))
	for _, c := range evicted {
		coords = append(coords, c.Coord())
	}
	m.persist(ctx, evicted)
	logger.Debug("Evicted %d chunk(s), %d cached", len(evicted), cached)
	return coords
}

func (m *Manager) retained(coord ChunkCoord, anchors []ChunkCoord) bool {
	for _, a := range anchors {
		if coord.Distance(a) <= m.config.RetentionRadius {
			return true
		}
	}
	return false
}

// Flush saves every cached chunk that has not been persisted yet. It is a
// no-op unless SaveGenerated is set and a provider is configured.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	all := make([]*Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		all = append(all, c)
	}
	m.mu.RUnlock()
	return m.persist(ctx, all)
}

func (m *Manager) persist(ctx context.Context, chunks []*Chunk) error {
	if m.provider == nil || !m.config.SaveGenerated {
		return nil
	}
	var errs []error
	for _, c := range chunks {
		if c.persisted.Load() {
			continue
		}
		if err := m.provider.SaveChunk(ctx, c); err != nil {
			logger.Error("Failed to save chunk %s: %v", c.Coord(), err)
			errs = append(errs, err)
			continue
		}
		c.persisted.Store(true)
	}
	return errors.Join(errs...)
}
