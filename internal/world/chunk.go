package world

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"
)

// Chunk dimensions. A chunk is a 16x128x16 column.
const (
	ChunkWidth  = 16
	ChunkHeight = 128
	ChunkDepth  = 16

	BlocksPerChunk = ChunkWidth * ChunkHeight * ChunkDepth
	nibbleBytes    = BlocksPerChunk / 2

	// RawSize is the length of the flat column form: block ids, then
	// metadata, block light and sky light nibble arrays.
	RawSize = BlocksPerChunk + 3*nibbleBytes

	// The wire splits a column into 16-block-high sections.
	SectionHeight = 16
	SectionCount  = ChunkHeight / SectionHeight
	SectionVolume = ChunkWidth * SectionHeight * ChunkDepth

	// SectionMask is the MapChunk bitmap of a full column.
	SectionMask uint16 = 1<<SectionCount - 1

	biomeBytes = ChunkWidth * ChunkDepth

	// WireSize is the length of the uncompressed MapChunk payload: the
	// section arrays followed by one biome byte per column.
	WireSize = RawSize + biomeBytes
)

// BiomePlains is sent for every column.
const BiomePlains byte = 1

// Block ids used by the generators.
const (
	BlockAir     byte = 0
	BlockStone   byte = 1
	BlockGrass   byte = 2
	BlockDirt    byte = 3
	BlockBedrock byte = 7
	BlockWater   byte = 9
	BlockSand    byte = 12
	BlockGravel  byte = 13
)

// ChunkCoord is a chunk position in chunk units.
type ChunkCoord struct {
	X, Z int32
}

// ChunkCoordAt returns the chunk containing the world position (x, z).
func ChunkCoordAt(x, z float64) ChunkCoord {
	return ChunkCoord{
		X: int32(math.Floor(x / ChunkWidth)),
		Z: int32(math.Floor(z / ChunkDepth)),
	}
}

// Distance is the Chebyshev distance between two chunk coordinates.
func (c ChunkCoord) Distance(o ChunkCoord) int {
	dx := absInt(int(c.X) - int(o.X))
	dz := absInt(int(c.Z) - int(o.Z))
	if dx > dz {
		return dx
	}
	return dz
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Chunk holds the terrain of one column. Generators fill it before it is
// published; afterwards it is only read, which keeps the cached compressed
// blob consistent with the arrays.
type Chunk struct {
	coord ChunkCoord

	blocks     [BlocksPerChunk]byte
	metadata   [nibbleBytes]byte
	blockLight [nibbleBytes]byte
	skyLight   [nibbleBytes]byte

	blobOnce sync.Once
	blob     []byte
	blobErr  error

	// persisted is set once the chunk is known to exist in the
	// persistence provider.
	persisted atomic.Bool
}

// NewChunk returns an all-air chunk at coord.
func NewChunk(coord ChunkCoord) *Chunk {
	return &Chunk{coord: coord}
}

// Coord returns the chunk position.
func (c *Chunk) Coord() ChunkCoord {
	return c.coord
}

func blockIndex(x, y, z int) int {
	return y + z*ChunkHeight + x*ChunkHeight*ChunkDepth
}

// sectionIndex is the position of a block in the wire arrays: sections
// bottom to top, each ordered y, then z, then x.
func sectionIndex(x, y, z int) int {
	section := y / SectionHeight
	return section*SectionVolume + (y%SectionHeight)*ChunkWidth*ChunkDepth + z*ChunkWidth + x
}

func inBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth && y >= 0 && y < ChunkHeight && z >= 0 && z < ChunkDepth
}

// Block returns the block id at local coordinates, or air when out of range.
func (c *Chunk) Block(x, y, z int) byte {
	if !inBounds(x, y, z) {
		return BlockAir
	}
	return c.blocks[blockIndex(x, y, z)]
}

// Metadata returns the 4-bit block metadata at local coordinates.
func (c *Chunk) Metadata(x, y, z int) byte {
	if !inBounds(x, y, z) {
		return 0
	}
	return getNibble(c.metadata[:], blockIndex(x, y, z))
}

// SkyLight returns the 4-bit sky light level at local coordinates.
func (c *Chunk) SkyLight(x, y, z int) byte {
	if !inBounds(x, y, z) {
		return 15
	}
	return getNibble(c.skyLight[:], blockIndex(x, y, z))
}

// BlockLight returns the 4-bit block light level at local coordinates.
func (c *Chunk) BlockLight(x, y, z int) byte {
	if !inBounds(x, y, z) {
		return 0
	}
	return getNibble(c.blockLight[:], blockIndex(x, y, z))
}

// Height returns one above the highest non-air block of the column, or 0
// for an empty column.
func (c *Chunk) Height(x, z int) int {
	for y := ChunkHeight - 1; y >= 0; y-- {
		if c.Block(x, y, z) != BlockAir {
			return y + 1
		}
	}
	return 0
}

// setBlock is used by generators before publication.
func (c *Chunk) setBlock(x, y, z int, id byte) {
	c.blocks[blockIndex(x, y, z)] = id
}

// computeSkyLight gives full sky light to every block above the highest
// non-air block of each column and none below it.
func (c *Chunk) computeSkyLight() {
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			top := c.Height(x, z)
			for y := 0; y < ChunkHeight; y++ {
				level := byte(0)
				if y >= top {
					level = 15
				}
				setNibble(c.skyLight[:], blockIndex(x, y, z), level)
			}
		}
	}
}

func getNibble(arr []byte, idx int) byte {
	b := arr[idx>>1]
	if idx&1 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

func setNibble(arr []byte, idx int, v byte) {
	i := idx >> 1
	if idx&1 == 0 {
		arr[i] = arr[i]&0xF0 | v&0x0F
	} else {
		arr[i] = arr[i]&0x0F | (v&0x0F)<<4
	}
}

// Raw returns the flat column form of the chunk.
func (c *Chunk) Raw() []byte {
	out := make([]byte, 0, RawSize)
	out = append(out, c.blocks[:]...)
	out = append(out, c.metadata[:]...)
	out = append(out, c.blockLight[:]...)
	out = append(out, c.skyLight[:]...)
	return out
}

// ChunkFromRaw rebuilds a chunk from its flat column form.
func ChunkFromRaw(coord ChunkCoord, raw []byte) (*Chunk, error) {
	if len(raw) != RawSize {
		return nil, fmt.Errorf("chunk %s: raw size %d, want %d", coord, len(raw), RawSize)
	}
	c := NewChunk(coord)
	off := copy(c.blocks[:], raw)
	off += copy(c.metadata[:], raw[off:])
	off += copy(c.blockLight[:], raw[off:])
	copy(c.skyLight[:], raw[off:])
	return c, nil
}

// wireArrays splits a WireSize buffer into its block, nibble and biome arrays.
func wireArrays(data []byte) (blocks, metadata, blockLight, skyLight, biomes []byte) {
	off := BlocksPerChunk
	blocks = data[:off]
	metadata = data[off : off+nibbleBytes]
	off += nibbleBytes
	blockLight = data[off : off+nibbleBytes]
	off += nibbleBytes
	skyLight = data[off : off+nibbleBytes]
	off += nibbleBytes
	biomes = data[off:]
	return
}

// Sections returns the uncompressed MapChunk payload for a full column with
// every section present.
func (c *Chunk) Sections() []byte {
	out := make([]byte, WireSize)
	blocks, metadata, blockLight, skyLight, biomes := wireArrays(out)
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			for y := 0; y < ChunkHeight; y++ {
				src, dst := blockIndex(x, y, z), sectionIndex(x, y, z)
				blocks[dst] = c.blocks[src]
				setNibble(metadata, dst, getNibble(c.metadata[:], src))
				setNibble(blockLight, dst, getNibble(c.blockLight[:], src))
				setNibble(skyLight, dst, getNibble(c.skyLight[:], src))
			}
		}
	}
	for i := range biomes {
		biomes[i] = BiomePlains
	}
	return out
}

// ChunkFromSections rebuilds a chunk from an uncompressed full-column
// MapChunk payload. Biomes are ignored.
func ChunkFromSections(coord ChunkCoord, data []byte) (*Chunk, error) {
	if len(data) != WireSize {
		return nil, fmt.Errorf("chunk %s: section data size %d, want %d", coord, len(data), WireSize)
	}
	blocks, metadata, blockLight, skyLight, _ := wireArrays(data)
	c := NewChunk(coord)
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			for y := 0; y < ChunkHeight; y++ {
				src, dst := sectionIndex(x, y, z), blockIndex(x, y, z)
				c.blocks[dst] = blocks[src]
				setNibble(c.metadata[:], dst, getNibble(metadata, src))
				setNibble(c.blockLight[:], dst, getNibble(blockLight, src))
				setNibble(c.skyLight[:], dst, getNibble(skyLight, src))
			}
		}
	}
	return c, nil
}

// Compressed returns the zlib-compressed MapChunk payload. The result is
// computed once and shared; callers must not modify it.
func (c *Chunk) Compressed() ([]byte, error) {
	c.blobOnce.Do(func() {
		c.blob, c.blobErr = Compress(c.Sections())
	})
	return c.blob, c.blobErr
}

// Compress deflates raw with zlib at the default level. The output is
// deterministic for a given input.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress chunk: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish chunk compression: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a blob produced by Compress.
func Decompress(blob []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer func() { _ = zr.Close() }()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate chunk: %w", err)
	}
	return raw, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
