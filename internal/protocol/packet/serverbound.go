package packet

// LoginRequest is the client's login packet (0x01 serverbound). Only the
// protocol version and username carry information; the client sends the
// remaining fields zeroed.
type LoginRequest struct {
	ProtocolVersion int32
	Username        string
	LevelType       string
	ServerMode      int32
	Dimension       int32
	Difficulty      int8
	WorldHeight     uint8
	MaxPlayers      uint8
}

func (*LoginRequest) ID() ID { return IDLogin }

func (p *LoginRequest) encode(w *fieldWriter) {
	w.int32(p.ProtocolVersion)
	w.string("username", p.Username)
	w.string("level_type", p.LevelType)
	w.int32(p.ServerMode)
	w.int32(p.Dimension)
	w.int8(p.Difficulty)
	w.uint8(p.WorldHeight)
	w.uint8(p.MaxPlayers)
}

func (p *LoginRequest) decode(r *fieldReader) {
	p.ProtocolVersion = r.int32()
	p.Username = r.string("username")
	p.LevelType = r.string("level_type")
	p.ServerMode = r.int32()
	p.Dimension = r.int32()
	p.Difficulty = r.int8()
	p.WorldHeight = r.uint8()
	p.MaxPlayers = r.uint8()
}

// ServerListPing requests the status string. It has no payload.
type ServerListPing struct{}

func (*ServerListPing) ID() ID              { return IDServerListPing }
func (*ServerListPing) encode(*fieldWriter) {}
func (*ServerListPing) decode(*fieldReader) {}

// Player reports only the on-ground flag.
type Player struct {
	OnGround bool
}

func (*Player) ID() ID                  { return IDPlayer }
func (p *Player) encode(w *fieldWriter) { w.bool(p.OnGround) }
func (p *Player) decode(r *fieldReader) { p.OnGround = r.bool() }

type PlayerPosition struct {
	X, Y, Stance, Z float64
	OnGround        bool
}

func (*PlayerPosition) ID() ID { return IDPlayerPosition }

func (p *PlayerPosition) encode(w *fieldWriter) {
	w.float64(p.X)
	w.float64(p.Y)
	w.float64(p.Stance)
	w.float64(p.Z)
	w.bool(p.OnGround)
}

func (p *PlayerPosition) decode(r *fieldReader) {
	p.X = r.float64()
	p.Y = r.float64()
	p.Stance = r.float64()
	p.Z = r.float64()
	p.OnGround = r.bool()
}

type PlayerLook struct {
	Yaw, Pitch float32
	OnGround   bool
}

func (*PlayerLook) ID() ID { return IDPlayerLook }

func (p *PlayerLook) encode(w *fieldWriter) {
	w.float32(p.Yaw)
	w.float32(p.Pitch)
	w.bool(p.OnGround)
}

func (p *PlayerLook) decode(r *fieldReader) {
	p.Yaw = r.float32()
	p.Pitch = r.float32()
	p.OnGround = r.bool()
}

// PlayerPositionLook is the serverbound 0x0D. Y precedes Stance here; the
// clientbound form (ServerPositionLook) swaps them.
type PlayerPositionLook struct {
	X, Y, Stance, Z float64
	Yaw, Pitch      float32
	OnGround        bool
}

func (*PlayerPositionLook) ID() ID { return IDPlayerPositionLook }

func (p *PlayerPositionLook) encode(w *fieldWriter) {
	w.float64(p.X)
	w.float64(p.Y)
	w.float64(p.Stance)
	w.float64(p.Z)
	w.float32(p.Yaw)
	w.float32(p.Pitch)
	w.bool(p.OnGround)
}

func (p *PlayerPositionLook) decode(r *fieldReader) {
	p.X = r.float64()
	p.Y = r.float64()
	p.Stance = r.float64()
	p.Z = r.float64()
	p.Yaw = r.float32()
	p.Pitch = r.float32()
	p.OnGround = r.bool()
}
