package packet

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverboundCases() map[string]Packet {
	return map[string]Packet{
		"KeepAlive/zero":          &KeepAlive{},
		"KeepAlive/min":           &KeepAlive{KeepAliveID: math.MinInt32},
		"KeepAlive/max":           &KeepAlive{KeepAliveID: math.MaxInt32},
		"LoginRequest/typical":    &LoginRequest{ProtocolVersion: 29, Username: "Notch", LevelType: "DEFAULT"},
		"LoginRequest/boundaries": &LoginRequest{ProtocolVersion: math.MinInt32, Username: "", LevelType: "", ServerMode: math.MaxInt32, Dimension: math.MinInt32, Difficulty: math.MaxInt8, WorldHeight: math.MaxUint8, MaxPlayers: 0},
		"Handshake/empty":         &Handshake{},
		"Handshake/host":          &Handshake{Data: "Steve;localhost:25565"},
		"ChatMessage/empty":       &ChatMessage{},
		"ChatMessage/unicode":     &ChatMessage{Message: "héllo §a wörld 🎮"},
		"Player/on":               &Player{OnGround: true},
		"Player/off":              &Player{},
		"PlayerPosition/extremes": &PlayerPosition{X: -math.MaxFloat64, Y: math.SmallestNonzeroFloat64, Stance: 65.62, Z: math.MaxFloat64, OnGround: true},
		"PlayerLook/extremes":     &PlayerLook{Yaw: math.MaxFloat32, Pitch: -math.MaxFloat32},
		"PlayerPositionLook":      &PlayerPositionLook{X: 8.5, Y: 64, Stance: 65.62, Z: -8.5, Yaw: 90, Pitch: -12.5, OnGround: true},
		"PluginMessage/empty":     &PluginMessage{Channel: "", Data: []byte{}},
		"PluginMessage/max":       &PluginMessage{Channel: "MC|Test", Data: bytes.Repeat([]byte{0xAB}, MaxBlobLength)},
		"ServerListPing":          &ServerListPing{},
		"Disconnect":              &Disconnect{Reason: "Quitting"},
	}
}

func clientboundCases() map[string]Packet {
	return map[string]Packet{
		"KeepAlive":           &KeepAlive{KeepAliveID: -1},
		"LoginResponse":       &LoginResponse{EntityID: math.MaxInt32, LevelType: "FLAT", ServerMode: 1, Dimension: -1, Difficulty: 3, WorldHeight: 128, MaxPlayers: 20},
		"Handshake":           &Handshake{Data: "-"},
		"ChatMessage":         &ChatMessage{Message: "<Steve> hi"},
		"TimeUpdate/min":      &TimeUpdate{Time: math.MinInt64},
		"TimeUpdate/max":      &TimeUpdate{Time: math.MaxInt64},
		"SpawnPosition":       &SpawnPosition{X: math.MinInt32, Y: 0, Z: math.MaxInt32},
		"ServerPositionLook":  &ServerPositionLook{X: 8.5, Stance: 65.62, Y: 64, Z: 8.5, Yaw: 0, Pitch: 0},
		"SpawnNamedEntity":    &SpawnNamedEntity{EntityID: 1, Name: "Steve", X: -32, Y: 2048, Z: 32, Yaw: math.MinInt8, Pitch: math.MaxInt8, CurrentItem: -1},
		"SpawnMob/metadata":   &SpawnMob{EntityID: 7, Type: 90, X: 1, Y: 2, Z: 3, Yaw: 4, Pitch: 5, HeadYaw: -6, Metadata: Metadata{{Index: 0, Value: int8(0)}, {Index: 1, Value: int16(300)}, {Index: 2, Value: int32(-5)}, {Index: 3, Value: float32(1.5)}, {Index: 4, Value: "name"}, {Index: 5, Value: Slot{ItemID: 276, Count: 1, Damage: 0}}, {Index: 31, Value: Vector{X: 1, Y: -2, Z: 3}}}},
		"DestroyEntity":       &DestroyEntity{EntityID: 42},
		"EntityRelativeMove":  &EntityRelativeMove{EntityID: 3, DX: math.MinInt8, DY: 0, DZ: math.MaxInt8},
		"EntityLook":          &EntityLook{EntityID: 3, Yaw: 64, Pitch: -64},
		"EntityLookRelMove":   &EntityLookRelativeMove{EntityID: 3, DX: 1, DY: -1, DZ: 0, Yaw: 1, Pitch: 2},
		"EntityTeleport":      &EntityTeleport{EntityID: 3, X: math.MinInt32, Y: math.MaxInt32, Z: 0},
		"PreChunk/load":       &PreChunk{X: -1, Z: 1, Load: true},
		"PreChunk/unload":     &PreChunk{X: 0, Z: 0},
		"MapChunk/empty":      &MapChunk{X: 1, Z: -1, Data: []byte{}},
		"MapChunk/data":       &MapChunk{X: math.MinInt32, Z: math.MaxInt32, GroundUp: true, PrimaryBitmap: 0x00FF, AddBitmap: 0xFFFF, Unused: -1, Data: bytes.Repeat([]byte{1, 2, 3}, 1000)},
		"PluginMessage":       &PluginMessage{Channel: "REGISTER", Data: []byte("MC|Beacon")},
		"Disconnect/empty":    &Disconnect{},
		"Disconnect/status":   &Disconnect{Reason: "A Minecraft Server§0§20"},
	}
}

func TestRoundTripServerbound(t *testing.T) {
	for name, p := range serverboundCases() {
		t.Run(name, func(t *testing.T) {
			wire, err := Encode(p)
			require.NoError(t, err)
			assert.Equal(t, byte(p.ID()), wire[0])

			decoded, n, err := Decode(wire, AllowAll)
			require.NoError(t, err)
			assert.Equal(t, len(wire), n, "must consume exactly the encoded bytes")
			assert.Equal(t, p, decoded)
		})
	}
}

func TestRoundTripClientbound(t *testing.T) {
	for name, p := range clientboundCases() {
		t.Run(name, func(t *testing.T) {
			wire, err := Encode(p)
			require.NoError(t, err)

			decoded, n, err := DecodeClientbound(wire)
			require.NoError(t, err)
			assert.Equal(t, len(wire), n)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecodeNeedMoreDataOnEveryPrefix(t *testing.T) {
	for name, p := range serverboundCases() {
		t.Run(name, func(t *testing.T) {
			wire, err := Encode(p)
			require.NoError(t, err)
			for i := 0; i < len(wire); i++ {
				_, n, err := Decode(wire[:i], AllowAll)
				require.ErrorIs(t, err, ErrNeedMoreData, "prefix length %d", i)
				require.Zero(t, n)
			}
		})
	}
}

func TestDecodeLeavesTrailingBytes(t *testing.T) {
	first, err := Encode(&KeepAlive{KeepAliveID: 5})
	require.NoError(t, err)
	second, err := Encode(&ChatMessage{Message: "next"})
	require.NoError(t, err)

	p, n, err := Decode(append(first, second...), AllowAll)
	require.NoError(t, err)
	assert.Equal(t, &KeepAlive{KeepAliveID: 5}, p)
	assert.Equal(t, len(first), n)
}

func TestGoldenBytes(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
		want []byte
	}{
		{"KeepAlive", &KeepAlive{KeepAliveID: 0x01020304}, []byte{0x00, 0x01, 0x02, 0x03, 0x04}},
		{"Disconnect", &Disconnect{Reason: "A§1"}, []byte{0xFF, 0x00, 0x03, 0x00, 'A', 0x00, 0xA7, 0x00, '1'}},
		{"SurrogatePair", &ChatMessage{Message: "🎮"}, []byte{0x03, 0x00, 0x02, 0xD8, 0x3C, 0xDF, 0xAE}},
		{"PreChunk", &PreChunk{X: -1, Z: 2, Load: true}, []byte{0x32, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x02, 0x01}},
		{"ServerListPing", &ServerListPing{}, []byte{0xFE}},
		{"PluginMessage", &PluginMessage{Channel: "a", Data: []byte{9}}, []byte{0xFA, 0x00, 0x01, 0x00, 'a', 0x00, 0x01, 0x09}},
		{
			"LoginResponse",
			&LoginResponse{EntityID: 1, LevelType: "flat", ServerMode: 1, Dimension: -1, Difficulty: 2, WorldHeight: 128, MaxPlayers: 20},
			[]byte{
				0x01,
				0x00, 0x00, 0x00, 0x01,
				0x00, 0x00,
				0x00, 0x04, 0x00, 'f', 0x00, 'l', 0x00, 'a', 0x00, 't',
				0x00, 0x00, 0x00, 0x01,
				0xFF, 0xFF, 0xFF, 0xFF,
				0x02, 0x80, 0x14,
			},
		},
		{
			"MapChunk",
			&MapChunk{X: 1, Z: -1, GroundUp: true, PrimaryBitmap: 0x00FF, Data: []byte{0xAA, 0xBB}},
			[]byte{
				0x33,
				0x00, 0x00, 0x00, 0x01,
				0xFF, 0xFF, 0xFF, 0xFF,
				0x01,
				0x00, 0xFF,
				0x00, 0x00,
				0x00, 0x00, 0x00, 0x02,
				0x00, 0x00, 0x00, 0x00,
				0xAA, 0xBB,
			},
		},
		{
			"SpawnMob",
			&SpawnMob{EntityID: 9, Type: 50, Yaw: 1, Pitch: 2, HeadYaw: 3, Metadata: Metadata{{Index: 0, Value: int8(0)}}},
			[]byte{
				0x18,
				0x00, 0x00, 0x00, 0x09,
				0x32,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x01, 0x02, 0x03,
				0x00, 0x00, 0x7F,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeLogin(t *testing.T) {
	// A protocol 29 client sends every field after the username zeroed.
	wire := []byte{
		0x01,
		0x00, 0x00, 0x00, 0x1D,
		0x00, 0x05, 0x00, 'a', 0x00, 'l', 0x00, 'i', 0x00, 'c', 0x00, 'e',
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00,
	}
	require.Len(t, wire, 30)

	p, n, err := Decode(wire, AllowAll)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, &LoginRequest{ProtocolVersion: 29, Username: "alice"}, p)

	got, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, wire, got)
}

func TestServerPositionLookSwapsStance(t *testing.T) {
	wire, err := Encode(&ServerPositionLook{X: 1, Stance: 2, Y: 3, Z: 4})
	require.NoError(t, err)

	// Decoding the same bytes as the serverbound form reads Stance into Y.
	p, _, err := Decode(wire, AllowAll)
	require.NoError(t, err)
	sb := p.(*PlayerPositionLook)
	assert.Equal(t, 2.0, sb.Y)
	assert.Equal(t, 3.0, sb.Stance)
}

func TestDecodeInvalidID(t *testing.T) {
	t.Run("unknown identifier", func(t *testing.T) {
		_, _, err := Decode([]byte{0x99, 0, 0}, AllowAll)
		var idErr *InvalidPacketIDError
		require.ErrorAs(t, err, &idErr)
		assert.False(t, idErr.Known)
		assert.True(t, IsMalformed(err))
		assert.False(t, IsViolation(err))
	})

	t.Run("clientbound-only identifier", func(t *testing.T) {
		_, _, err := Decode([]byte{byte(IDMapChunk)}, AllowAll)
		var idErr *InvalidPacketIDError
		require.ErrorAs(t, err, &idErr)
		assert.False(t, idErr.Known)
	})

	t.Run("filtered by state", func(t *testing.T) {
		onlyPing := FilterFunc(func(id ID) bool { return id == IDServerListPing })
		wire, err := Encode(&ChatMessage{Message: "too early"})
		require.NoError(t, err)

		_, _, err = Decode(wire, onlyPing)
		var idErr *InvalidPacketIDError
		require.ErrorAs(t, err, &idErr)
		assert.True(t, idErr.Known)
		assert.Equal(t, IDChatMessage, idErr.ID)
		assert.True(t, IsViolation(err))
		assert.Contains(t, err.Error(), "Chat Message")
	})

	t.Run("filter checked before payload", func(t *testing.T) {
		_, _, err := Decode([]byte{byte(IDChatMessage)}, FilterFunc(func(ID) bool { return false }))
		assert.True(t, IsViolation(err))
	})
}

func TestDecodeMalformedFields(t *testing.T) {
	tests := []struct {
		name  string
		wire  []byte
		field string
	}{
		{"negative blob length", []byte{0xFA, 0x00, 0x00, 0xFF, 0xFF}, "data"},
		{"lone low surrogate", []byte{0x03, 0x00, 0x01, 0xDC, 0x00}, "message"},
		{"high surrogate without pair", []byte{0x03, 0x00, 0x02, 0xD8, 0x00, 0x00, 'a'}, "message"},
		{"string longer than limit", []byte{0x03, 0x80, 0x00}, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.wire, AllowAll)
			var fieldErr *MalformedFieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestDecodeMapChunkSize(t *testing.T) {
	header := []byte{0x33, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0x00, 0xFF, 0x00, 0x00}

	t.Run("negative", func(t *testing.T) {
		wire := append(append([]byte{}, header...), 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0)
		_, _, err := DecodeClientbound(wire)
		var fieldErr *MalformedFieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "data", fieldErr.Field)
	})

	t.Run("short payload", func(t *testing.T) {
		wire := append(append([]byte{}, header...), 0, 0, 0, 4, 0, 0, 0, 0, 0xAA)
		_, _, err := DecodeClientbound(wire)
		assert.ErrorIs(t, err, ErrNeedMoreData)
	})
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	_, err := Encode(&PluginMessage{Channel: "x", Data: make([]byte, MaxBlobLength+1)})
	var fieldErr *MalformedFieldError
	require.ErrorAs(t, err, &fieldErr)

	_, err = Encode(&ChatMessage{Message: strings.Repeat("a", MaxStringLength+1)})
	require.ErrorAs(t, err, &fieldErr)

	_, err = Encode(&MapChunk{Data: make([]byte, MaxChunkDataLength+1)})
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "data", fieldErr.Field)

	_, err = Encode(&SpawnMob{Metadata: Metadata{{Index: 0, Value: uint64(1)}}})
	require.ErrorAs(t, err, &fieldErr)
	assert.True(t, errors.Is(err, errBadMetadata))
}

func TestReaderResumesAcrossShortReads(t *testing.T) {
	var stream []byte
	want := []Packet{
		&Handshake{Data: "Steve;localhost:25565"},
		&KeepAlive{KeepAliveID: 77},
		&PlayerPositionLook{X: 1, Y: 2, Stance: 3.5, Z: 4, Yaw: 5, Pitch: 6, OnGround: true},
		&Disconnect{Reason: "bye"},
	}
	for _, p := range want {
		b, err := Encode(p)
		require.NoError(t, err)
		stream = append(stream, b...)
	}

	r := NewReader(iotest.OneByteReader(bytes.NewReader(stream)))
	for _, expected := range want {
		got, err := r.Next(AllowAll)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}

	_, err := r.Next(AllowAll)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderTruncatedStream(t *testing.T) {
	wire, err := Encode(&ChatMessage{Message: "cut short"})
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(wire[:len(wire)-3]))
	_, err = r.Next(AllowAll)
	assert.ErrorIs(t, err, ErrTruncatedStream)
	assert.True(t, IsMalformed(err))
}

func TestReaderPropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewReader(iotest.ErrReader(boom))
	_, err := r.Next(AllowAll)
	assert.ErrorIs(t, err, boom)
}

func TestClientReader(t *testing.T) {
	wire, err := Encode(&Disconnect{Reason: "A Minecraft Server§3§20"})
	require.NoError(t, err)

	r := NewClientReader(bytes.NewReader(wire))
	p, err := r.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, &Disconnect{Reason: "A Minecraft Server§3§20"}, p)
}
