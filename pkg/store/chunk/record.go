package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/marmos91/dittocraft/internal/world"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// RecordVersion is the record layout written by this package.
const RecordVersion = 1

const (
	blocksSize = world.BlocksPerChunk
	nibbleSize = world.BlocksPerChunk / 2
)

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("chunk store: corrupt record")

// Record is the persisted form of a chunk. It is serialized with XDR and
// compressed with zstd.
type Record struct {
	Version    uint32
	X          int32
	Z          int32
	Blocks     []byte
	Metadata   []byte
	BlockLight []byte
	SkyLight   []byte
}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	codecErr    error
)

// codecs returns the shared zstd encoder and decoder. Both are safe for
// concurrent EncodeAll/DecodeAll.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	encoderOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// RecordOf splits a chunk into its record.
func RecordOf(c *world.Chunk) Record {
	raw := c.Raw()
	coord := c.Coord()
	return Record{
		Version:    RecordVersion,
		X:          coord.X,
		Z:          coord.Z,
		Blocks:     raw[:blocksSize],
		Metadata:   raw[blocksSize : blocksSize+nibbleSize],
		BlockLight: raw[blocksSize+nibbleSize : blocksSize+2*nibbleSize],
		SkyLight:   raw[blocksSize+2*nibbleSize:],
	}
}

// Chunk rebuilds the chunk a record describes.
func (r Record) Chunk() (*world.Chunk, error) {
	if r.Version != RecordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptRecord, r.Version)
	}
	if len(r.Blocks) != blocksSize || len(r.Metadata) != nibbleSize ||
		len(r.BlockLight) != nibbleSize || len(r.SkyLight) != nibbleSize {
		return nil, fmt.Errorf("%w: section sizes %d/%d/%d/%d", ErrCorruptRecord,
			len(r.Blocks), len(r.Metadata), len(r.BlockLight), len(r.SkyLight))
	}

	raw := make([]byte, 0, world.RawSize)
	raw = append(raw, r.Blocks...)
	raw = append(raw, r.Metadata...)
	raw = append(raw, r.BlockLight...)
	raw = append(raw, r.SkyLight...)
	return world.ChunkFromRaw(world.ChunkCoord{X: r.X, Z: r.Z}, raw)
}

// EncodeChunk serializes and compresses c.
func EncodeChunk(c *world.Chunk) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(world.RawSize + 64)
	if _, err := xdr.Marshal(&buf, RecordOf(c)); err != nil {
		return nil, fmt.Errorf("marshal chunk %s: %w", c.Coord(), err)
	}
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeChunk reverses EncodeChunk. want is the coordinate the record was
// stored under; a record describing any other chunk is corrupt.
func DecodeChunk(want world.ChunkCoord, data []byte) (*world.Chunk, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}

	raw, err := dec.DecodeAll(data, make([]byte, 0, world.RawSize+64))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	var r Record
	if _, err := xdr.Unmarshal(bytes.NewReader(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if r.X != want.X || r.Z != want.Z {
		return nil, fmt.Errorf("%w: record for %d,%d stored under %s", ErrCorruptRecord, r.X, r.Z, want)
	}
	return r.Chunk()
}
