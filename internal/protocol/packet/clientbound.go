package packet

// LoginResponse answers a successful LoginRequest (0x01 clientbound). The
// world seed is not part of the login since protocol 29.
type LoginResponse struct {
	EntityID    int32
	Unused      string
	LevelType   string
	ServerMode  int32
	Dimension   int32
	Difficulty  int8
	WorldHeight uint8
	MaxPlayers  uint8
}

func (*LoginResponse) ID() ID { return IDLogin }

func (p *LoginResponse) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.string("unused", p.Unused)
	w.string("level_type", p.LevelType)
	w.int32(p.ServerMode)
	w.int32(p.Dimension)
	w.int8(p.Difficulty)
	w.uint8(p.WorldHeight)
	w.uint8(p.MaxPlayers)
}

func (p *LoginResponse) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.Unused = r.string("unused")
	p.LevelType = r.string("level_type")
	p.ServerMode = r.int32()
	p.Dimension = r.int32()
	p.Difficulty = r.int8()
	p.WorldHeight = r.uint8()
	p.MaxPlayers = r.uint8()
}

// TimeUpdate carries the world time in ticks.
type TimeUpdate struct {
	Time int64
}

func (*TimeUpdate) ID() ID                  { return IDTimeUpdate }
func (p *TimeUpdate) encode(w *fieldWriter) { w.int64(p.Time) }
func (p *TimeUpdate) decode(r *fieldReader) { p.Time = r.int64() }

// SpawnPosition is the compass target, in block coordinates.
type SpawnPosition struct {
	X, Y, Z int32
}

func (*SpawnPosition) ID() ID { return IDSpawnPosition }

func (p *SpawnPosition) encode(w *fieldWriter) {
	w.int32(p.X)
	w.int32(p.Y)
	w.int32(p.Z)
}

func (p *SpawnPosition) decode(r *fieldReader) {
	p.X = r.int32()
	p.Y = r.int32()
	p.Z = r.int32()
}

// ServerPositionLook is the clientbound 0x0D: Stance is sent before Y.
type ServerPositionLook struct {
	X, Stance, Y, Z float64
	Yaw, Pitch      float32
	OnGround        bool
}

func (*ServerPositionLook) ID() ID { return IDPlayerPositionLook }

func (p *ServerPositionLook) encode(w *fieldWriter) {
	w.float64(p.X)
	w.float64(p.Stance)
	w.float64(p.Y)
	w.float64(p.Z)
	w.float32(p.Yaw)
	w.float32(p.Pitch)
	w.bool(p.OnGround)
}

func (p *ServerPositionLook) decode(r *fieldReader) {
	p.X = r.float64()
	p.Stance = r.float64()
	p.Y = r.float64()
	p.Z = r.float64()
	p.Yaw = r.float32()
	p.Pitch = r.float32()
	p.OnGround = r.bool()
}

// SpawnNamedEntity introduces another player to the client. Coordinates are
// absolute integers (block * 32) and angles are 1/256 of a turn.
type SpawnNamedEntity struct {
	EntityID    int32
	Name        string
	X, Y, Z     int32
	Yaw, Pitch  int8
	CurrentItem int16
}

func (*SpawnNamedEntity) ID() ID { return IDSpawnNamedEntity }

func (p *SpawnNamedEntity) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.string("name", p.Name)
	w.int32(p.X)
	w.int32(p.Y)
	w.int32(p.Z)
	w.int8(p.Yaw)
	w.int8(p.Pitch)
	w.int16(p.CurrentItem)
}

func (p *SpawnNamedEntity) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.Name = r.string("name")
	p.X = r.int32()
	p.Y = r.int32()
	p.Z = r.int32()
	p.Yaw = r.int8()
	p.Pitch = r.int8()
	p.CurrentItem = r.int16()
}

// SpawnMob introduces a non-player entity. HeadYaw follows Pitch.
type SpawnMob struct {
	EntityID            int32
	Type                int8
	X, Y, Z             int32
	Yaw, Pitch, HeadYaw int8
	Metadata            Metadata
}

func (*SpawnMob) ID() ID { return IDSpawnMob }

func (p *SpawnMob) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.int8(p.Type)
	w.int32(p.X)
	w.int32(p.Y)
	w.int32(p.Z)
	w.int8(p.Yaw)
	w.int8(p.Pitch)
	w.int8(p.HeadYaw)
	p.Metadata.encode(w)
}

func (p *SpawnMob) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.Type = r.int8()
	p.X = r.int32()
	p.Y = r.int32()
	p.Z = r.int32()
	p.Yaw = r.int8()
	p.Pitch = r.int8()
	p.HeadYaw = r.int8()
	p.Metadata.decode(r)
}

type DestroyEntity struct {
	EntityID int32
}

func (*DestroyEntity) ID() ID                  { return IDDestroyEntity }
func (p *DestroyEntity) encode(w *fieldWriter) { w.int32(p.EntityID) }
func (p *DestroyEntity) decode(r *fieldReader) { p.EntityID = r.int32() }

// EntityRelativeMove moves an entity by at most 4 blocks per axis.
type EntityRelativeMove struct {
	EntityID   int32
	DX, DY, DZ int8
}

func (*EntityRelativeMove) ID() ID { return IDEntityRelativeMove }

func (p *EntityRelativeMove) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.int8(p.DX)
	w.int8(p.DY)
	w.int8(p.DZ)
}

func (p *EntityRelativeMove) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.DX = r.int8()
	p.DY = r.int8()
	p.DZ = r.int8()
}

type EntityLook struct {
	EntityID   int32
	Yaw, Pitch int8
}

func (*EntityLook) ID() ID { return IDEntityLook }

func (p *EntityLook) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.int8(p.Yaw)
	w.int8(p.Pitch)
}

func (p *EntityLook) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.Yaw = r.int8()
	p.Pitch = r.int8()
}

type EntityLookRelativeMove struct {
	EntityID   int32
	DX, DY, DZ int8
	Yaw, Pitch int8
}

func (*EntityLookRelativeMove) ID() ID { return IDEntityLookRelativeMove }

func (p *EntityLookRelativeMove) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.int8(p.DX)
	w.int8(p.DY)
	w.int8(p.DZ)
	w.int8(p.Yaw)
	w.int8(p.Pitch)
}

func (p *EntityLookRelativeMove) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.DX = r.int8()
	p.DY = r.int8()
	p.DZ = r.int8()
	p.Yaw = r.int8()
	p.Pitch = r.int8()
}

// EntityTeleport places an entity at an absolute position.
type EntityTeleport struct {
	EntityID   int32
	X, Y, Z    int32
	Yaw, Pitch int8
}

func (*EntityTeleport) ID() ID { return IDEntityTeleport }

func (p *EntityTeleport) encode(w *fieldWriter) {
	w.int32(p.EntityID)
	w.int32(p.X)
	w.int32(p.Y)
	w.int32(p.Z)
	w.int8(p.Yaw)
	w.int8(p.Pitch)
}

func (p *EntityTeleport) decode(r *fieldReader) {
	p.EntityID = r.int32()
	p.X = r.int32()
	p.Y = r.int32()
	p.Z = r.int32()
	p.Yaw = r.int8()
	p.Pitch = r.int8()
}

// PreChunk tells the client to allocate (Load) or free a chunk column.
type PreChunk struct {
	X, Z int32
	Load bool
}

func (*PreChunk) ID() ID { return IDPreChunk }

func (p *PreChunk) encode(w *fieldWriter) {
	w.int32(p.X)
	w.int32(p.Z)
	w.bool(p.Load)
}

func (p *PreChunk) decode(r *fieldReader) {
	p.X = r.int32()
	p.Z = r.int32()
	p.Load = r.bool()
}

// MapChunk carries a zlib-compressed chunk column. Data holds one 16x16x16
// section for every bit set in PrimaryBitmap, grouped by array: block ids,
// then metadata, block light and sky light, then the add arrays selected by
// AddBitmap and, when GroundUp is set, 256 biome bytes.
type MapChunk struct {
	X, Z          int32
	GroundUp      bool
	PrimaryBitmap uint16
	AddBitmap     uint16
	Unused        int32
	Data          []byte
}

func (*MapChunk) ID() ID { return IDMapChunk }

func (p *MapChunk) encode(w *fieldWriter) {
	w.int32(p.X)
	w.int32(p.Z)
	w.bool(p.GroundUp)
	w.uint16(p.PrimaryBitmap)
	w.uint16(p.AddBitmap)
	if len(p.Data) > MaxChunkDataLength {
		w.fail("data", errTooLong)
		return
	}
	w.int32(int32(len(p.Data)))
	w.int32(p.Unused)
	w.raw(p.Data)
}

func (p *MapChunk) decode(r *fieldReader) {
	p.X = r.int32()
	p.Z = r.int32()
	p.GroundUp = r.bool()
	p.PrimaryBitmap = r.uint16()
	p.AddBitmap = r.uint16()
	n := r.int32()
	p.Unused = r.int32()
	p.Data = r.sized("data", n, MaxChunkDataLength)
}
