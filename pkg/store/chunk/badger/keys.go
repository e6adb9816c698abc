package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittocraft/internal/world"
)

// Key layout
//
//	"c:" | uint32(x ^ signBit) | uint32(z ^ signBit)
//
// Flipping the sign bit makes the big-endian bytes sort in numeric order,
// so a prefix scan visits chunks column by column.
const (
	prefixChunk = "c:"
	keyLen      = len(prefixChunk) + 8
	signBit     = 1 << 31
)

func keyChunk(coord world.ChunkCoord) []byte {
	key := make([]byte, keyLen)
	copy(key, prefixChunk)
	binary.BigEndian.PutUint32(key[2:], uint32(coord.X)^signBit)
	binary.BigEndian.PutUint32(key[6:], uint32(coord.Z)^signBit)
	return key
}

func parseKeyChunk(key []byte) (world.ChunkCoord, error) {
	if len(key) != keyLen || string(key[:2]) != prefixChunk {
		return world.ChunkCoord{}, fmt.Errorf("invalid chunk key %x", key)
	}
	return world.ChunkCoord{
		X: int32(binary.BigEndian.Uint32(key[2:]) ^ signBit),
		Z: int32(binary.BigEndian.Uint32(key[6:]) ^ signBit),
	}, nil
}
