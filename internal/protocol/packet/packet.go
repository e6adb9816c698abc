// Package packet implements the wire codec for protocol version 29.
//
// Every packet is a single identifier byte followed by a fixed sequence of
// fields. There is no length prefix, so the decoder must consume exactly the
// bytes each field layout dictates and report ErrNeedMoreData when the buffer
// ends early. Decoding never blocks and never consumes a partial packet.
package packet

import "fmt"

// ProtocolVersion is the only protocol version this codec speaks.
const ProtocolVersion = 29

// ID is the leading packet identifier byte.
type ID byte

const (
	IDKeepAlive              ID = 0x00
	IDLogin                  ID = 0x01
	IDHandshake              ID = 0x02
	IDChatMessage            ID = 0x03
	IDTimeUpdate             ID = 0x04
	IDSpawnPosition          ID = 0x06
	IDPlayer                 ID = 0x0A
	IDPlayerPosition         ID = 0x0B
	IDPlayerLook             ID = 0x0C
	IDPlayerPositionLook     ID = 0x0D
	IDSpawnNamedEntity       ID = 0x14
	IDSpawnMob               ID = 0x18
	IDDestroyEntity          ID = 0x1D
	IDEntityRelativeMove     ID = 0x1F
	IDEntityLook             ID = 0x20
	IDEntityLookRelativeMove ID = 0x21
	IDEntityTeleport         ID = 0x22
	IDPreChunk               ID = 0x32
	IDMapChunk               ID = 0x33
	IDPluginMessage          ID = 0xFA
	IDServerListPing         ID = 0xFE
	IDDisconnect             ID = 0xFF
)

var idNames = map[ID]string{
	IDKeepAlive:              "Keep Alive",
	IDLogin:                  "Login",
	IDHandshake:              "Handshake",
	IDChatMessage:            "Chat Message",
	IDTimeUpdate:             "Time Update",
	IDSpawnPosition:          "Spawn Position",
	IDPlayer:                 "Player",
	IDPlayerPosition:         "Player Position",
	IDPlayerLook:             "Player Look",
	IDPlayerPositionLook:     "Player Position & Look",
	IDSpawnNamedEntity:       "Spawn Named Entity",
	IDSpawnMob:               "Spawn Mob",
	IDDestroyEntity:          "Destroy Entity",
	IDEntityRelativeMove:     "Entity Relative Move",
	IDEntityLook:             "Entity Look",
	IDEntityLookRelativeMove: "Entity Look & Relative Move",
	IDEntityTeleport:         "Entity Teleport",
	IDPreChunk:               "Pre-Chunk",
	IDMapChunk:               "Map Chunk",
	IDPluginMessage:          "Plugin Message",
	IDServerListPing:         "Server List Ping",
	IDDisconnect:             "Disconnect/Kick",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", byte(id))
}

// Packet is the closed set of packets in the catalog. The unexported methods
// keep implementations inside this package.
type Packet interface {
	ID() ID
	encode(w *fieldWriter)
	decode(r *fieldReader)
}

// Filter decides which identifiers may be decoded. Protocol states implement it.
type Filter interface {
	Allows(id ID) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ID) bool

func (f FilterFunc) Allows(id ID) bool { return f(id) }

// AllowAll accepts every identifier in the catalog.
var AllowAll Filter = FilterFunc(func(ID) bool { return true })

// serverbound lists the packets a client may send.
var serverbound = map[ID]func() Packet{
	IDKeepAlive:          func() Packet { return &KeepAlive{} },
	IDLogin:              func() Packet { return &LoginRequest{} },
	IDHandshake:          func() Packet { return &Handshake{} },
	IDChatMessage:        func() Packet { return &ChatMessage{} },
	IDPlayer:             func() Packet { return &Player{} },
	IDPlayerPosition:     func() Packet { return &PlayerPosition{} },
	IDPlayerLook:         func() Packet { return &PlayerLook{} },
	IDPlayerPositionLook: func() Packet { return &PlayerPositionLook{} },
	IDPluginMessage:      func() Packet { return &PluginMessage{} },
	IDServerListPing:     func() Packet { return &ServerListPing{} },
	IDDisconnect:         func() Packet { return &Disconnect{} },
}

// clientbound lists the packets the server sends.
var clientbound = map[ID]func() Packet{
	IDKeepAlive:              func() Packet { return &KeepAlive{} },
	IDLogin:                  func() Packet { return &LoginResponse{} },
	IDHandshake:              func() Packet { return &Handshake{} },
	IDChatMessage:            func() Packet { return &ChatMessage{} },
	IDTimeUpdate:             func() Packet { return &TimeUpdate{} },
	IDSpawnPosition:          func() Packet { return &SpawnPosition{} },
	IDPlayerPositionLook:     func() Packet { return &ServerPositionLook{} },
	IDSpawnNamedEntity:       func() Packet { return &SpawnNamedEntity{} },
	IDSpawnMob:               func() Packet { return &SpawnMob{} },
	IDDestroyEntity:          func() Packet { return &DestroyEntity{} },
	IDEntityRelativeMove:     func() Packet { return &EntityRelativeMove{} },
	IDEntityLook:             func() Packet { return &EntityLook{} },
	IDEntityLookRelativeMove: func() Packet { return &EntityLookRelativeMove{} },
	IDEntityTeleport:         func() Packet { return &EntityTeleport{} },
	IDPreChunk:               func() Packet { return &PreChunk{} },
	IDMapChunk:               func() Packet { return &MapChunk{} },
	IDPluginMessage:          func() Packet { return &PluginMessage{} },
	IDDisconnect:             func() Packet { return &Disconnect{} },
}

// IsServerbound reports whether id names a packet a client may send.
func IsServerbound(id ID) bool {
	_, ok := serverbound[id]
	return ok
}

// Decode decodes one serverbound packet from the front of buf.
//
// On success it returns the packet and the number of bytes consumed. When buf
// holds only a prefix of a packet it returns ErrNeedMoreData and consumes
// nothing. An identifier outside the catalog, or one the filter rejects, is an
// *InvalidPacketIDError; a field that cannot be interpreted is a
// *MalformedFieldError.
func Decode(buf []byte, filter Filter) (Packet, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}
	id := ID(buf[0])
	ctor, known := serverbound[id]
	if !known {
		return nil, 0, &InvalidPacketIDError{ID: id}
	}
	if filter != nil && !filter.Allows(id) {
		return nil, 0, &InvalidPacketIDError{ID: id, Known: true}
	}
	return decodeWith(buf, ctor)
}

// DecodeClientbound decodes one packet sent by a server. It is used by
// clients such as the status pinger and by tests.
func DecodeClientbound(buf []byte) (Packet, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}
	id := ID(buf[0])
	ctor, known := clientbound[id]
	if !known {
		return nil, 0, &InvalidPacketIDError{ID: id}
	}
	return decodeWith(buf, ctor)
}

func decodeWith(buf []byte, ctor func() Packet) (Packet, int, error) {
	p := ctor()
	r := &fieldReader{buf: buf, off: 1, packet: p.ID().String()}
	p.decode(r)
	if r.err == errShort {
		return nil, 0, ErrNeedMoreData
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	return p, r.off, nil
}

// Encode returns the wire form of p. Encoding is deterministic and has no
// side effects; it fails only when a string or blob exceeds its length limit.
func Encode(p Packet) ([]byte, error) {
	return AppendEncode(nil, p)
}

// AppendEncode appends the wire form of p to dst.
func AppendEncode(dst []byte, p Packet) ([]byte, error) {
	w := &fieldWriter{buf: append(dst, byte(p.ID())), packet: p.ID().String()}
	p.encode(w)
	if w.err != nil {
		return dst, w.err
	}
	return w.buf, nil
}
