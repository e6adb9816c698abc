package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittocraft/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGenerator wraps FlatGenerator, counting calls and optionally
// blocking until released.
type countingGenerator struct {
	calls   atomic.Int32
	release chan struct{}
	fail    map[ChunkCoord]error
	panicAt *ChunkCoord
}

func (g *countingGenerator) LevelType() string { return LevelFlat }

func (g *countingGenerator) Generate(coord ChunkCoord) (*Chunk, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.panicAt != nil && *g.panicAt == coord {
		panic("broken terrain")
	}
	if err := g.fail[coord]; err != nil {
		return nil, err
	}
	return FlatGenerator{}.Generate(coord)
}

type memoryProvider struct {
	mu     sync.Mutex
	chunks map[ChunkCoord][]byte
	loads  int
	saves  int
	err    error
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{chunks: make(map[ChunkCoord][]byte)}
}

func (p *memoryProvider) LoadChunk(_ context.Context, coord ChunkCoord) (*Chunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	if p.err != nil {
		return nil, p.err
	}
	raw, ok := p.chunks[coord]
	if !ok {
		return nil, ErrChunkNotFound
	}
	return ChunkFromRaw(coord, raw)
}

func (p *memoryProvider) SaveChunk(_ context.Context, c *Chunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.chunks[c.Coord()] = c.Raw()
	return nil
}

func TestEnsureChunkCoalesces(t *testing.T) {
	gen := &countingGenerator{release: make(chan struct{})}
	m := NewManager(gen, nil, ManagerConfig{}, nil)

	const callers = 32
	results := make([]*Chunk, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.EnsureChunk(context.Background(), ChunkCoord{X: 5, Z: 5})
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 1, m.Len())

	c, err := m.EnsureChunk(context.Background(), ChunkCoord{X: 5, Z: 5})
	require.NoError(t, err)
	assert.Same(t, results[0], c)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestEnsureChunkGenerationFailure(t *testing.T) {
	bad := ChunkCoord{X: 1, Z: 1}
	gen := &countingGenerator{fail: map[ChunkCoord]error{bad: errors.New("disk on fire")}}
	m := NewManager(gen, nil, ManagerConfig{}, nil)

	_, err := m.EnsureChunk(context.Background(), bad)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, bad, genErr.Coord)

	_, err = m.EnsureChunk(context.Background(), ChunkCoord{X: 0, Z: 1})
	assert.NoError(t, err)

	delete(gen.fail, bad)
	_, err = m.EnsureChunk(context.Background(), bad)
	assert.NoError(t, err, "failure must not be cached")
}

func TestEnsureChunkRecoversPanic(t *testing.T) {
	at := ChunkCoord{X: 9, Z: 9}
	m := NewManager(&countingGenerator{panicAt: &at}, nil, ManagerConfig{}, nil)

	_, err := m.EnsureChunk(context.Background(), at)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "broken terrain")
	assert.Equal(t, 0, m.Len())
}

func TestEnsureChunkUsesProvider(t *testing.T) {
	stored, err := NewNoiseGenerator(3).Generate(ChunkCoord{X: 2, Z: 2})
	require.NoError(t, err)

	provider := newMemoryProvider()
	provider.chunks[stored.Coord()] = stored.Raw()

	gen := &countingGenerator{}
	m := NewManager(gen, provider, ManagerConfig{}, nil)

	c, err := m.EnsureChunk(context.Background(), stored.Coord())
	require.NoError(t, err)
	assert.Equal(t, stored.Raw(), c.Raw())
	assert.Equal(t, int32(0), gen.calls.Load())

	_, err = m.EnsureChunk(context.Background(), ChunkCoord{X: 3, Z: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(1), gen.calls.Load())

	provider.err = errors.New("store offline")
	_, err = m.EnsureChunk(context.Background(), ChunkCoord{X: 4, Z: 2})
	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestChunksWithinRadius(t *testing.T) {
	center := ChunkCoord{X: 10, Z: -4}
	coords := ChunksWithinRadius(center, 2)
	require.Len(t, coords, 25)
	assert.Equal(t, center, coords[0])

	seen := make(map[ChunkCoord]bool)
	last := 0
	for _, c := range coords {
		assert.LessOrEqual(t, c.Distance(center), 2)
		d := squaredDistance(center, c)
		assert.GreaterOrEqual(t, d, last)
		last = d
		seen[c] = true
	}
	assert.Len(t, seen, 25)

	assert.Len(t, ChunksWithinRadius(center, 0), 1)
	assert.Empty(t, ChunksWithinRadius(center, -1))
}

func TestLoadedTracking(t *testing.T) {
	m := NewManager(FlatGenerator{}, nil, ManagerConfig{}, nil)
	a, b := session.NewID(), session.NewID()
	coord := ChunkCoord{X: 1}

	assert.True(t, m.MarkLoaded(a, coord))
	assert.False(t, m.MarkLoaded(a, coord))
	assert.True(t, m.MarkLoaded(b, coord))
	assert.True(t, m.IsLoaded(a, coord))
	assert.ElementsMatch(t, []ChunkCoord{coord}, m.Loaded(a))

	assert.True(t, m.MarkUnloaded(a, coord))
	assert.False(t, m.MarkUnloaded(a, coord))
	assert.False(t, m.IsLoaded(a, coord))
	assert.Equal(t, 1, m.refs[coord])

	m.ForgetSession(b)
	assert.Empty(t, m.Loaded(b))
	assert.NotContains(t, m.refs, coord)
}

func TestEvictUnused(t *testing.T) {
	provider := newMemoryProvider()
	m := NewManager(FlatGenerator{}, provider, ManagerConfig{RetentionRadius: 1, SaveGenerated: true}, nil)
	ctx := context.Background()
	id := session.NewID()

	held := ChunkCoord{X: 20, Z: 20}
	near := ChunkCoord{X: 1, Z: 0}
	far := ChunkCoord{X: 5, Z: 5}
	for _, c := range []ChunkCoord{held, near, far} {
		_, err := m.EnsureChunk(ctx, c)
		require.NoError(t, err)
	}
	m.MarkLoaded(id, held)

	evicted := m.EvictUnused(ctx, []ChunkCoord{{X: 0, Z: 0}})
	assert.Equal(t, []ChunkCoord{far}, evicted)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, provider.saves)
	assert.Contains(t, provider.chunks, far)

	m.ForgetSession(id)
	evicted = m.EvictUnused(ctx, nil)
	assert.ElementsMatch(t, []ChunkCoord{held, near}, evicted)
	assert.Equal(t, 0, m.Len())

	// Reloading from the provider marks the chunk persisted, so it is not
	// written again on the next eviction.
	_, err := m.EnsureChunk(ctx, far)
	require.NoError(t, err)
	m.EvictUnused(ctx, nil)
	assert.Equal(t, 3, provider.saves)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("SavesUnpersisted", func(t *testing.T) {
		provider := newMemoryProvider()
		m := NewManager(FlatGenerator{}, provider, ManagerConfig{SaveGenerated: true}, nil)
		for _, c := range ChunksWithinRadius(ChunkCoord{}, 1) {
			_, err := m.EnsureChunk(ctx, c)
			require.NoError(t, err)
		}
		require.NoError(t, m.Flush(ctx))
		assert.Equal(t, 9, provider.saves)

		require.NoError(t, m.Flush(ctx))
		assert.Equal(t, 9, provider.saves)
	})

	t.Run("DisabledWithoutSaveGenerated", func(t *testing.T) {
		provider := newMemoryProvider()
		m := NewManager(FlatGenerator{}, provider, ManagerConfig{}, nil)
		_, err := m.EnsureChunk(ctx, ChunkCoord{})
		require.NoError(t, err)
		require.NoError(t, m.Flush(ctx))
		assert.Equal(t, 0, provider.saves)
	})
}
