package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/store/chunk"
)

// BadgerChunkStore implements chunk.Store using BadgerDB for persistence.
//
// Records are already zstd-compressed by the chunk provider, so Badger's own
// block compression is disabled.
//
// Thread Safety:
// BadgerDB transactions provide isolation; the store adds no locking of its
// own.
type BadgerChunkStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB
}

// BadgerChunkStoreConfig contains configuration for creating a BadgerDB chunk store.
type BadgerChunkStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerChunkStore opens (or creates) a Badger database for chunks.
func NewBadgerChunkStore(ctx context.Context, config BadgerChunkStoreConfig) (*BadgerChunkStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DBPath == "" && !config.InMemory {
		return nil, errors.New("badger chunk store: db_path is required")
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("Opened badger chunk store at %q (in_memory=%v)", config.DBPath, config.InMemory)
	return &BadgerChunkStore{db: db}, nil
}

func (s *BadgerChunkStore) Get(ctx context.Context, coord world.ChunkCoord) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyChunk(coord))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return chunk.ErrChunkNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BadgerChunkStore) Put(ctx context.Context, coord world.ChunkCoord, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Badger keeps the value slice until the transaction commits.
	value := append([]byte(nil), data...)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyChunk(coord), value)
	})
}

func (s *BadgerChunkStore) Delete(ctx context.Context, coord world.ChunkCoord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyChunk(coord))
	})
}

func (s *BadgerChunkStore) List(ctx context.Context) ([]world.ChunkCoord, error) {
	var coords []world.ChunkCoord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixChunk)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			coord, err := parseKeyChunk(it.Item().Key())
			if err != nil {
				return err
			}
			coords = append(coords, coord)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coords, nil
}

// Close closes the database.
func (s *BadgerChunkStore) Close() error {
	return s.db.Close()
}
