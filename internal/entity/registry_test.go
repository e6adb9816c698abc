package entity

import (
	"testing"

	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnPlayer(t *testing.T, r *Registry, name string, pos Vec3) (session.ID, Snapshot, []Event) {
	t.Helper()
	sid := session.NewID()
	snap, events, err := r.Spawn(Template{Kind: KindPlayer, Name: name, Owner: sid, Position: pos})
	require.NoError(t, err)
	return sid, snap, events
}

func spawnMob(t *testing.T, r *Registry, mob MobType, pos Vec3) (Snapshot, []Event) {
	t.Helper()
	snap, events, err := r.Spawn(Template{Kind: KindMob, Mob: mob, Position: pos})
	require.NoError(t, err)
	return snap, events
}

// eventsFor filters events addressed to one viewer about one entity.
func eventsFor(events []Event, viewer session.ID, id ID) []EventKind {
	var kinds []EventKind
	for _, e := range events {
		if e.Viewer == viewer && e.Entity.ID == id {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int32
	}{
		{"zero", 0, 0},
		{"one block", 1, 32},
		{"fraction", 0.5, 16},
		{"negative fraction floors", -0.01, -1},
		{"negative", -2.5, -80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixedPoint(tt.in))
		})
	}

	assert.Equal(t, int8(0), Angle(0))
	assert.Equal(t, int8(64), Angle(90))
	assert.Equal(t, int8(-128), Angle(180))
	assert.Equal(t, int8(-64), Angle(-90))
	assert.Equal(t, int8(0), Angle(360))
}

func TestMobTypes(t *testing.T) {
	mob, ok := ParseMobType("Creeper")
	require.True(t, ok)
	assert.Equal(t, MobCreeper, mob)
	assert.Equal(t, "creeper", mob.String())

	_, ok = ParseMobType("dragonfly")
	assert.False(t, ok)

	names := MobTypeNames()
	assert.Len(t, names, len(mobNames))
	assert.IsNonDecreasing(t, names)
}

func TestIDsAreMonotonic(t *testing.T) {
	r := NewRegistry(2)
	a, _ := spawnMob(t, r, MobPig, Vec3{})
	b, _ := spawnMob(t, r, MobCow, Vec3{})
	_, err := r.Despawn(a.ID)
	require.NoError(t, err)
	c, _ := spawnMob(t, r, MobSheep, Vec3{})

	assert.Equal(t, ID(1), a.ID)
	assert.Equal(t, ID(2), b.ID)
	assert.Equal(t, ID(3), c.ID)
	assert.Equal(t, 2, r.Len())

	_, err = r.Despawn(a.ID)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestOnePlayerPerSession(t *testing.T) {
	r := NewRegistry(2)
	sid, _, _ := spawnPlayer(t, r, "alice", Vec3{})
	_, _, err := r.Spawn(Template{Kind: KindPlayer, Name: "again", Owner: sid})
	assert.ErrorIs(t, err, ErrSessionHasPlayer)
}

func TestSpawnInterest(t *testing.T) {
	r := NewRegistry(2)
	near, _ := spawnMob(t, r, MobPig, Vec3{X: 40, Z: 8})
	far, _ := spawnMob(t, r, MobPig, Vec3{X: 200, Z: 8})

	alice, aliceSnap, events := spawnPlayer(t, r, "alice", Vec3{X: 8, Y: 4, Z: 8})
	require.Len(t, events, 1)
	assert.Equal(t, EventSpawn, events[0].Kind)
	assert.Equal(t, alice, events[0].Viewer)
	assert.Equal(t, near.ID, events[0].Entity.ID)
	assert.Equal(t, []ID{near.ID}, r.InterestSet(alice))

	bob, bobSnap, events := spawnPlayer(t, r, "bob", Vec3{X: 20, Y: 4, Z: 8})
	// Bob first learns about the pig and alice, then alice learns about bob.
	require.Len(t, events, 3)
	assert.Equal(t, []EventKind{EventSpawn}, eventsFor(events, bob, near.ID))
	assert.Equal(t, []EventKind{EventSpawn}, eventsFor(events, bob, aliceSnap.ID))
	assert.Equal(t, alice, events[2].Viewer)
	assert.Equal(t, bobSnap.ID, events[2].Entity.ID)

	assert.Equal(t, []ID{near.ID, bobSnap.ID}, r.InterestSet(alice))
	assert.NotContains(t, r.InterestSet(bob), far.ID)
	assert.NotContains(t, r.InterestSet(bob), bobSnap.ID)

	id, ok := r.PlayerOf(bob)
	require.True(t, ok)
	assert.Equal(t, bobSnap.ID, id)
}

func TestMoveSuppressesNoOps(t *testing.T) {
	r := NewRegistry(2)
	viewer, _, _ := spawnPlayer(t, r, "alice", Vec3{X: 8, Z: 8})
	pig, _ := spawnMob(t, r, MobPig, Vec3{X: 10, Z: 10})

	events, err := r.Move(pig.ID, Vec3{X: 10.01, Z: 10.01}, Look{})
	require.NoError(t, err)
	assert.Empty(t, events, "sub fixed-point movement is not broadcast")

	events, err = r.Move(pig.ID, Vec3{X: 11, Z: 10}, Look{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, viewer, events[0].Viewer)
	assert.Equal(t, &packet.EntityRelativeMove{EntityID: int32(pig.ID), DX: 32}, events[0].Packet())
}

func TestCausalOrdering(t *testing.T) {
	r := NewRegistry(3)
	viewer, _, _ := spawnPlayer(t, r, "alice", Vec3{X: 8, Z: 8})

	var log []Event
	zombie, events := spawnMob(t, r, MobZombie, Vec3{X: 12, Z: 12})
	log = append(log, events...)

	for _, pos := range []Vec3{{X: 13, Z: 12}, {X: 14, Z: 13}} {
		events, err := r.Move(zombie.ID, pos, Look{Yaw: 45})
		require.NoError(t, err)
		log = append(log, events...)
	}
	events, err := r.Despawn(zombie.ID)
	require.NoError(t, err)
	log = append(log, events...)

	assert.Equal(t, []EventKind{EventSpawn, EventMove, EventMove, EventDespawn}, eventsFor(log, viewer, zombie.ID))
}

func TestInterestChurn(t *testing.T) {
	r := NewRegistry(1)
	viewer, _, _ := spawnPlayer(t, r, "alice", Vec3{X: 8, Z: 8})
	cow, _ := spawnMob(t, r, MobCow, Vec3{X: 20, Z: 8})

	var log []Event
	// The cow wanders out of range and keeps moving.
	for _, x := range []float64{24, 28, 32, 48, 64, 80} {
		events, err := r.Move(cow.ID, Vec3{X: x, Z: 8}, Look{})
		require.NoError(t, err)
		log = append(log, events...)
	}
	assert.Equal(t, []EventKind{EventMove, EventMove, EventDespawn}, eventsFor(log, viewer, cow.ID))
	assert.NotContains(t, r.InterestSet(viewer), cow.ID)

	// Walking back brings it in with a fresh spawn.
	events, err := r.Move(cow.ID, Vec3{X: 30, Z: 8}, Look{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventSpawn, events[0].Kind)
	assert.Equal(t, Vec3{X: 30, Z: 8}, events[0].Entity.Position)
}

func TestViewerMovementRefreshesInterest(t *testing.T) {
	r := NewRegistry(1)
	alice, aliceSnap, _ := spawnPlayer(t, r, "alice", Vec3{X: 8, Z: 8})
	pig, _ := spawnMob(t, r, MobPig, Vec3{X: 8, Z: 8})
	sheep, _ := spawnMob(t, r, MobSheep, Vec3{X: 72, Z: 8})
	require.Equal(t, []ID{pig.ID}, r.InterestSet(alice))

	events, err := r.Move(aliceSnap.ID, Vec3{X: 56, Z: 8}, Look{})
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventDespawn}, eventsFor(events, alice, pig.ID))
	assert.Equal(t, []EventKind{EventSpawn}, eventsFor(events, alice, sheep.ID))
	assert.Equal(t, []ID{sheep.ID}, r.InterestSet(alice))

	// Moving within the same chunk does not touch the interest set.
	events, err = r.Move(aliceSnap.ID, Vec3{X: 57, Z: 9}, Look{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPlayersSeeEachOtherMove(t *testing.T) {
	r := NewRegistry(2)
	alice, aliceSnap, _ := spawnPlayer(t, r, "alice", Vec3{X: 8, Z: 8})
	bob, bobSnap, _ := spawnPlayer(t, r, "bob", Vec3{X: 9, Z: 8})

	events, err := r.Move(aliceSnap.ID, Vec3{X: 8, Z: 8}, Look{Yaw: 90})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].Viewer)
	assert.Equal(t, &packet.EntityLook{EntityID: int32(aliceSnap.ID), Yaw: 64}, events[0].Packet())

	events = r.DespawnSession(bob)
	require.Len(t, events, 1)
	assert.Equal(t, alice, events[0].Viewer)
	assert.Equal(t, &packet.DestroyEntity{EntityID: int32(bobSnap.ID)}, events[0].Packet())
	assert.Empty(t, r.InterestSet(bob))
	assert.Empty(t, r.DespawnSession(bob))
}

func TestMovePacketSelection(t *testing.T) {
	base := Placement{X: 100, Y: 200, Z: 300}
	tests := []struct {
		name string
		to   Placement
		want packet.Packet
	}{
		{
			name: "relative move",
			to:   Placement{X: 110, Y: 200, Z: 290},
			want: &packet.EntityRelativeMove{EntityID: 7, DX: 10, DZ: -10},
		},
		{
			name: "look only",
			to:   Placement{X: 100, Y: 200, Z: 300, Yaw: 5, Pitch: -3},
			want: &packet.EntityLook{EntityID: 7, Yaw: 5, Pitch: -3},
		},
		{
			name: "look and move",
			to:   Placement{X: 227, Y: 72, Z: 300, Yaw: 1},
			want: &packet.EntityLookRelativeMove{EntityID: 7, DX: 127, DY: -128, Yaw: 1},
		},
		{
			name: "teleport when delta overflows",
			to:   Placement{X: 228, Y: 200, Z: 300},
			want: &packet.EntityTeleport{EntityID: 7, X: 228, Y: 200, Z: 300},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, movePacket(7, base, tt.to))
		})
	}
}

func TestSpawnPackets(t *testing.T) {
	player := Snapshot{ID: 3, Kind: KindPlayer, Name: "alice", Position: Vec3{X: 1.5, Y: 64, Z: -2}, Look: Look{Yaw: 180}}
	assert.Equal(t, &packet.SpawnNamedEntity{
		EntityID: 3, Name: "alice", X: 48, Y: 2048, Z: -64, Yaw: -128,
	}, SpawnPacket(player))

	mob := Snapshot{ID: 4, Kind: KindMob, Mob: MobCreeper, Position: Vec3{Y: 1}, Look: Look{Yaw: 90}}
	assert.Equal(t, &packet.SpawnMob{
		EntityID: 4, Type: 50, Y: 32, Yaw: 64, HeadYaw: 64, Metadata: packet.Metadata{{Index: 0, Value: int8(0)}},
	}, SpawnPacket(mob))
}
