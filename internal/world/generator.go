package world

import (
	"fmt"
	"math"
	"strings"

	"github.com/aquilax/go-perlin"
)

// Level types understood by NewGenerator.
const (
	LevelFlat    = "FLAT"
	LevelDefault = "DEFAULT"
)

// SeaLevel is the water surface height for the default generator.
const SeaLevel = 62

// Generator produces the terrain of a chunk. Implementations must be pure
// functions of their construction parameters and the coordinate, and safe for
// concurrent use.
type Generator interface {
	Generate(coord ChunkCoord) (*Chunk, error)
	LevelType() string
}

// NewGenerator returns the generator for levelType, seeded with seed.
func NewGenerator(levelType string, seed int64) (Generator, error) {
	switch strings.ToUpper(levelType) {
	case LevelFlat:
		return FlatGenerator{}, nil
	case LevelDefault:
		return NewNoiseGenerator(seed), nil
	default:
		return nil, fmt.Errorf("unknown level type %q", levelType)
	}
}

// FlatGenerator builds a superflat world: bedrock, two dirt, one grass.
type FlatGenerator struct{}

func (FlatGenerator) LevelType() string { return LevelFlat }

func (FlatGenerator) Generate(coord ChunkCoord) (*Chunk, error) {
	c := NewChunk(coord)
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			c.setBlock(x, 0, z, BlockBedrock)
			c.setBlock(x, 1, z, BlockDirt)
			c.setBlock(x, 2, z, BlockDirt)
			c.setBlock(x, 3, z, BlockGrass)
		}
	}
	c.computeSkyLight()
	return c, nil
}

// Perlin parameters: alpha is the weight divisor between octaves, beta the
// frequency multiplier, n the octave count.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3

	terrainScale = 96.0
	detailScale  = 24.0
	baseHeight   = 64
	hillHeight   = 22
	detailHeight = 5
)

// NoiseGenerator builds rolling perlin terrain with sea-level water and
// beaches. Two noise fields are used: a broad heightmap and a detail layer.
type NoiseGenerator struct {
	seed    int64
	terrain *perlin.Perlin
	detail  *perlin.Perlin
}

// NewNoiseGenerator seeds both noise layers from seed.
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	return &NoiseGenerator{
		seed:    seed,
		terrain: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		detail:  perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed^0x5DEECE66D),
	}
}

func (g *NoiseGenerator) LevelType() string { return LevelDefault }

// SurfaceHeight returns the height of the top solid block at world (x, z).
func (g *NoiseGenerator) SurfaceHeight(x, z int) int {
	fx, fz := float64(x), float64(z)
	h := baseHeight +
		g.terrain.Noise2D(fx/terrainScale, fz/terrainScale)*hillHeight +
		g.detail.Noise2D(fx/detailScale, fz/detailScale)*detailHeight
	height := int(math.Round(h))
	if height < 1 {
		return 1
	}
	if height > ChunkHeight-2 {
		return ChunkHeight - 2
	}
	return height
}

func (g *NoiseGenerator) Generate(coord ChunkCoord) (*Chunk, error) {
	c := NewChunk(coord)
	baseX := int(coord.X) * ChunkWidth
	baseZ := int(coord.Z) * ChunkDepth

	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkDepth; z++ {
			top := g.SurfaceHeight(baseX+x, baseZ+z)
			c.setBlock(x, 0, z, BlockBedrock)

			for y := 1; y <= top; y++ {
				var id byte
				switch {
				case y < top-3:
					id = BlockStone
				case top <= SeaLevel+1 && top >= SeaLevel-2:
					id = BlockSand
				case top < SeaLevel-2:
					id = BlockGravel
				case y == top:
					id = BlockGrass
				default:
					id = BlockDirt
				}
				c.setBlock(x, y, z, id)
			}
			for y := top + 1; y <= SeaLevel; y++ {
				c.setBlock(x, y, z, BlockWater)
			}
		}
	}
	c.computeSkyLight()
	return c, nil
}
