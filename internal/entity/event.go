package entity

import (
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/session"
)

// EventKind is the kind of change a client must be told about.
type EventKind int

const (
	EventSpawn EventKind = iota
	EventMove
	EventDespawn
)

func (k EventKind) String() string {
	switch k {
	case EventSpawn:
		return "spawn"
	case EventMove:
		return "move"
	case EventDespawn:
		return "despawn"
	default:
		return "unknown"
	}
}

// Event is one change addressed to one viewing session.
type Event struct {
	Kind   EventKind
	Viewer session.ID
	Entity Snapshot

	// From and To are the last broadcast and new wire placements of a
	// move.
	From, To Placement
}

// Packet builds the clientbound packet for the event.
func (e Event) Packet() packet.Packet {
	id := int32(e.Entity.ID)
	switch e.Kind {
	case EventSpawn:
		return SpawnPacket(e.Entity)
	case EventDespawn:
		return &packet.DestroyEntity{EntityID: id}
	}
	return movePacket(id, e.From, e.To)
}

// SpawnPacket builds the packet that makes a client create s.
func SpawnPacket(s Snapshot) packet.Packet {
	p := s.Placement()
	if s.Kind == KindPlayer {
		return &packet.SpawnNamedEntity{
			EntityID: int32(s.ID),
			Name:     s.Name,
			X:        p.X,
			Y:        p.Y,
			Z:        p.Z,
			Yaw:      p.Yaw,
			Pitch:    p.Pitch,
		}
	}
	meta := s.Metadata
	if len(meta) == 0 {
		meta = packet.Metadata{{Index: 0, Value: int8(0)}}
	}
	return &packet.SpawnMob{
		EntityID: int32(s.ID),
		Type:     int8(s.Mob),
		X:        p.X,
		Y:        p.Y,
		Z:        p.Z,
		Yaw:      p.Yaw,
		Pitch:    p.Pitch,
		HeadYaw:  p.Yaw,
		Metadata: meta,
	}
}

// movePacket picks the smallest update that carries the change. Deltas that
// do not fit a signed byte fall back to an absolute teleport.
func movePacket(id int32, from, to Placement) packet.Packet {
	dx, dy, dz := to.X-from.X, to.Y-from.Y, to.Z-from.Z
	moved := dx != 0 || dy != 0 || dz != 0
	turned := from.Yaw != to.Yaw || from.Pitch != to.Pitch

	if moved && !(fitsInt8(dx) && fitsInt8(dy) && fitsInt8(dz)) {
		return &packet.EntityTeleport{
			EntityID: id,
			X:        to.X,
			Y:        to.Y,
			Z:        to.Z,
			Yaw:      to.Yaw,
			Pitch:    to.Pitch,
		}
	}

	switch {
	case moved && turned:
		return &packet.EntityLookRelativeMove{
			EntityID: id,
			DX:       int8(dx),
			DY:       int8(dy),
			DZ:       int8(dz),
			Yaw:      to.Yaw,
			Pitch:    to.Pitch,
		}
	case moved:
		return &packet.EntityRelativeMove{EntityID: id, DX: int8(dx), DY: int8(dy), DZ: int8(dz)}
	default:
		return &packet.EntityLook{EntityID: id, Yaw: to.Yaw, Pitch: to.Pitch}
	}
}

func fitsInt8(v int32) bool {
	return v >= -128 && v <= 127
}
