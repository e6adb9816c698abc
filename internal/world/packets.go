package world

import "github.com/marmos91/dittocraft/internal/protocol/packet"

// PreChunkPacket tells the client to allocate (load=true) or free a column.
func PreChunkPacket(coord ChunkCoord, load bool) *packet.PreChunk {
	return &packet.PreChunk{X: coord.X, Z: coord.Z, Load: load}
}

// MapChunkPacket builds the full-column update for c: every section is
// present and biomes are included.
func (c *Chunk) MapChunkPacket() (*packet.MapChunk, error) {
	data, err := c.Compressed()
	if err != nil {
		return nil, err
	}
	return &packet.MapChunk{
		X:             c.coord.X,
		Z:             c.coord.Z,
		GroundUp:      true,
		PrimaryBitmap: SectionMask,
		Data:          data,
	}, nil
}
