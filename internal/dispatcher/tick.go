package dispatcher

import (
	"context"
	"time"

	"github.com/marmos91/dittocraft/internal/entity"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/world"
)

const (
	// timeUpdateTicks is how often the world time is broadcast.
	timeUpdateTicks = 20

	// chunkRetryTicks is how often views missing a chunk are streamed again.
	chunkRetryTicks = 20
)

// Tick advances the world by one tick. World time moves every tick, the
// time is broadcast once a second along with a retry of chunks that failed
// to load. Keep-alives and chunk eviction run at their configured intervals.
func (d *Dispatcher) Tick(ctx context.Context) []Effect {
	start := time.Now()
	defer func() { d.metrics.RecordTick(time.Since(start)) }()

	d.ticks++
	d.worldTime++

	var out []Effect
	if d.ticks%timeUpdateTicks == 0 {
		out = d.broadcast(out, &packet.TimeUpdate{Time: d.worldTime})
	}
	if d.ticks%chunkRetryTicks == 0 {
		out = d.retryChunks(out)
	}
	if d.ticks%d.config.ticks(d.config.KeepAliveInterval) == 0 {
		out = d.broadcast(out, &packet.KeepAlive{KeepAliveID: keepAliveID()})
	}
	if d.ticks%d.config.ticks(d.config.EvictionInterval) == 0 {
		d.evict(ctx)
	}
	return out
}

// WorldTime returns the number of ticks the world has run.
func (d *Dispatcher) WorldTime() int64 {
	return d.worldTime
}

func (d *Dispatcher) evict(ctx context.Context) {
	anchors := make([]world.ChunkCoord, 0, len(d.players))
	for _, sid := range d.playerSessions() {
		anchors = append(anchors, d.conns[sid].chunk)
	}
	if evicted := d.world.EvictUnused(ctx, anchors); len(evicted) > 0 {
		logger.Debug("Evicted %d chunk(s) outside every player's range", len(evicted))
	}
}

// SpawnMob creates a world-driven entity and announces it to every player in
// range. The returned snapshot has a zero ID if the spawn failed.
func (d *Dispatcher) SpawnMob(mob entity.MobType, pos entity.Vec3, look entity.Look) (entity.Snapshot, []Effect) {
	snap, events, err := d.entities.Spawn(entity.Template{
		Kind:     entity.KindMob,
		Mob:      mob,
		Position: pos,
		Look:     look,
	})
	if err != nil {
		logger.Error("Failed to spawn %s: %v", mob, err)
		return entity.Snapshot{}, nil
	}
	d.metrics.SetEntities(d.entities.Len())
	return snap, d.appendEvents(nil, events)
}

// MoveEntity relocates a world-driven entity.
func (d *Dispatcher) MoveEntity(id entity.ID, pos entity.Vec3, look entity.Look) []Effect {
	snap, ok := d.entities.Get(id)
	if !ok || snap.Kind != entity.KindMob {
		return nil
	}
	events, err := d.entities.Move(id, pos, look)
	if err != nil {
		return nil
	}
	return d.appendEvents(nil, events)
}

// DespawnEntity removes a world-driven entity.
func (d *Dispatcher) DespawnEntity(id entity.ID) []Effect {
	snap, ok := d.entities.Get(id)
	if !ok || snap.Kind != entity.KindMob {
		return nil
	}
	events, err := d.entities.Despawn(id)
	if err != nil {
		return nil
	}
	d.metrics.SetEntities(d.entities.Len())
	return d.appendEvents(nil, events)
}
