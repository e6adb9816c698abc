// Package testing provides a conformance suite every chunk.Store backend
// must pass.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the chunk.Store contract, not implementation details.
//
// Usage:
//
//	func TestMyChunkStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) chunk.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite closes it.
	NewStore func(t *testing.T) chunk.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("PutGet", suite.testPutGet)
	t.Run("Put_Overwrites", suite.testPutOverwrites)
	t.Run("Put_DoesNotAlias", suite.testPutDoesNotAlias)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("List", suite.testList)
	t.Run("Provider_RoundTrip", suite.testProviderRoundTrip)
	t.Run("Provider_NotFound", suite.testProviderNotFound)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) store(t *testing.T) chunk.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	s := suite.store(t)

	_, err := s.Get(testContext(), world.ChunkCoord{X: 1, Z: 2})
	assert.ErrorIs(t, err, chunk.ErrChunkNotFound)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	s := suite.store(t)

	coords := []world.ChunkCoord{{X: 0, Z: 0}, {X: -1, Z: 5}, {X: 1 << 20, Z: -(1 << 20)}}
	for i, coord := range coords {
		require.NoError(t, s.Put(testContext(), coord, []byte{byte(i), 0xAB}))
	}
	for i, coord := range coords {
		data, err := s.Get(testContext(), coord)
		require.NoError(t, err, "coord %s", coord)
		assert.Equal(t, []byte{byte(i), 0xAB}, data)
	}
}

func (suite *StoreTestSuite) testPutOverwrites(t *testing.T) {
	s := suite.store(t)
	coord := world.ChunkCoord{X: 3, Z: -3}

	require.NoError(t, s.Put(testContext(), coord, []byte("first")))
	require.NoError(t, s.Put(testContext(), coord, []byte("second")))

	data, err := s.Get(testContext(), coord)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func (suite *StoreTestSuite) testPutDoesNotAlias(t *testing.T) {
	s := suite.store(t)
	coord := world.ChunkCoord{X: 7, Z: 7}

	buf := []byte("original")
	require.NoError(t, s.Put(testContext(), coord, buf))
	copy(buf, "XXXXXXXX")

	data, err := s.Get(testContext(), coord)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	s := suite.store(t)
	coord := world.ChunkCoord{X: -8, Z: 9}

	require.NoError(t, s.Put(testContext(), coord, []byte("data")))
	require.NoError(t, s.Delete(testContext(), coord))

	_, err := s.Get(testContext(), coord)
	assert.ErrorIs(t, err, chunk.ErrChunkNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	s := suite.store(t)
	assert.NoError(t, s.Delete(testContext(), world.ChunkCoord{X: 100, Z: 100}))
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	s := suite.store(t)

	coords, err := s.List(testContext())
	require.NoError(t, err)
	assert.Empty(t, coords)

	want := []world.ChunkCoord{{X: 0, Z: 0}, {X: -2, Z: 1}, {X: 5, Z: -7}}
	for _, coord := range want {
		require.NoError(t, s.Put(testContext(), coord, []byte{1}))
	}
	require.NoError(t, s.Delete(testContext(), want[0]))

	coords, err = s.List(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, want[1:], coords)
}

func (suite *StoreTestSuite) testProviderRoundTrip(t *testing.T) {
	s := suite.store(t)
	provider := chunk.NewProvider(s)

	gen, err := world.NewGenerator(world.LevelDefault, 1234)
	require.NoError(t, err)
	coord := world.ChunkCoord{X: -3, Z: 11}
	original, err := gen.Generate(coord)
	require.NoError(t, err)

	require.NoError(t, provider.SaveChunk(testContext(), original))

	loaded, err := provider.LoadChunk(testContext(), coord)
	require.NoError(t, err)
	assert.Equal(t, coord, loaded.Coord())
	assert.Equal(t, original.Raw(), loaded.Raw())
}

func (suite *StoreTestSuite) testProviderNotFound(t *testing.T) {
	provider := chunk.NewProvider(suite.store(t))

	_, err := provider.LoadChunk(testContext(), world.ChunkCoord{X: 9, Z: 9})
	assert.ErrorIs(t, err, world.ErrChunkNotFound)
}
