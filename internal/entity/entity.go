// Package entity tracks every live entity and which clients know about it.
//
// The registry is not safe for concurrent use; it is owned by the dispatcher,
// which serializes all access. Every mutation returns the ordered list of
// events the affected clients must receive.
package entity

import (
	"math"
	"sort"
	"strings"

	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/internal/world"
)

// ID identifies an entity. IDs are allocated from 1 upwards and never reused.
type ID int32

// Kind separates players from world-driven entities.
type Kind int

const (
	KindPlayer Kind = iota
	KindMob
)

func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "mob"
}

// MobType is the wire type id of a non-player entity.
type MobType int8

const (
	MobCreeper     MobType = 50
	MobSkeleton    MobType = 51
	MobSpider      MobType = 52
	MobGiant       MobType = 53
	MobZombie      MobType = 54
	MobSlime       MobType = 55
	MobGhast       MobType = 56
	MobPigZombie   MobType = 57
	MobEnderman    MobType = 58
	MobCaveSpider  MobType = 59
	MobSilverfish  MobType = 60
	MobBlaze       MobType = 61
	MobMagmaCube   MobType = 62
	MobEnderDragon MobType = 63
	MobPig         MobType = 90
	MobSheep       MobType = 91
	MobCow         MobType = 92
	MobChicken     MobType = 93
	MobSquid       MobType = 94
	MobWolf        MobType = 95
	MobMooshroom   MobType = 96
	MobSnowGolem   MobType = 97
	MobOcelot      MobType = 98
	MobIronGolem   MobType = 99
	MobVillager    MobType = 120
)

var mobNames = map[MobType]string{
	MobCreeper:     "creeper",
	MobSkeleton:    "skeleton",
	MobSpider:      "spider",
	MobGiant:       "giant",
	MobZombie:      "zombie",
	MobSlime:       "slime",
	MobGhast:       "ghast",
	MobPigZombie:   "pigzombie",
	MobEnderman:    "enderman",
	MobCaveSpider:  "cavespider",
	MobSilverfish:  "silverfish",
	MobBlaze:       "blaze",
	MobMagmaCube:   "magmacube",
	MobEnderDragon: "enderdragon",
	MobPig:         "pig",
	MobSheep:       "sheep",
	MobCow:         "cow",
	MobChicken:     "chicken",
	MobSquid:       "squid",
	MobWolf:        "wolf",
	MobMooshroom:   "mooshroom",
	MobSnowGolem:   "snowgolem",
	MobOcelot:      "ocelot",
	MobIronGolem:   "irongolem",
	MobVillager:    "villager",
}

func (m MobType) String() string {
	if name, ok := mobNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMobType looks a mob up by its lowercase name.
func ParseMobType(name string) (MobType, bool) {
	name = strings.ToLower(name)
	for t, n := range mobNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// MobTypeNames lists every known mob name in alphabetical order.
func MobTypeNames() []string {
	names := make([]string, 0, len(mobNames))
	for _, n := range mobNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Vec3 is a world position or velocity in blocks.
type Vec3 struct {
	X, Y, Z float64
}

// Chunk returns the chunk column containing the position.
func (v Vec3) Chunk() world.ChunkCoord {
	return world.ChunkCoordAt(v.X, v.Z)
}

// Look is an orientation in degrees.
type Look struct {
	Yaw, Pitch float32
}

// Placement is a position and orientation as they appear on the wire:
// fixed-point coordinates in 1/32 block and angles in 1/256 turn.
type Placement struct {
	X, Y, Z    int32
	Yaw, Pitch int8
}

// PlacementOf converts a position and look to wire units.
func PlacementOf(pos Vec3, look Look) Placement {
	return Placement{
		X:     FixedPoint(pos.X),
		Y:     FixedPoint(pos.Y),
		Z:     FixedPoint(pos.Z),
		Yaw:   Angle(look.Yaw),
		Pitch: Angle(look.Pitch),
	}
}

// FixedPoint converts a block coordinate to 1/32 block units.
func FixedPoint(v float64) int32 {
	return int32(math.Floor(v * 32))
}

// Angle converts degrees to a wrapped 1/256 turn byte.
func Angle(deg float32) int8 {
	steps := int64(math.Floor(float64(deg) * 256 / 360))
	return int8(uint8(steps))
}

// Template describes an entity to spawn.
type Template struct {
	Kind     Kind
	Name     string
	Mob      MobType
	Owner    session.ID
	Position Vec3
	Look     Look
	Velocity Vec3
	Metadata packet.Metadata
}

// Snapshot is a copy of an entity's state at the time of an event.
type Snapshot struct {
	ID       ID
	Kind     Kind
	Name     string
	Mob      MobType
	Owner    session.ID
	Position Vec3
	Look     Look
	Velocity Vec3
	Metadata packet.Metadata
}

// Placement returns the snapshot's wire position.
func (s Snapshot) Placement() Placement {
	return PlacementOf(s.Position, s.Look)
}
