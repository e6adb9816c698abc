package dispatcher

import (
	"context"
	"math"
	"sync"

	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/protocol/state"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/internal/world"
)

// Outbox receives the effects of every dispatcher call. Deliver must not
// block and must drop packets for sessions it does not know.
type Outbox interface {
	Deliver(target session.ID, p packet.Packet)
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(target session.ID, p packet.Packet)

func (f OutboxFunc) Deliver(target session.ID, p packet.Packet) { f(target, p) }

// Hub is the serialization point of the server. Every call takes the same
// lock, runs the dispatcher and hands the effects to the outbox before
// releasing it, so effects reach each session queue in the order they were
// produced.
//
// Chunk generation is the one piece of work done outside the lock: Submit
// warms the chunks a packet is about to need before entering.
type Hub struct {
	mu         sync.Mutex
	dispatcher *Dispatcher
	world      *world.Manager
	outbox     Outbox

	prefetchMu sync.Mutex
	prefetched map[session.ID]world.ChunkCoord
}

// NewHub wraps d. Effects go to outbox.
func NewHub(d *Dispatcher, outbox Outbox) *Hub {
	return &Hub{
		dispatcher: d,
		world:      d.world,
		outbox:     outbox,
		prefetched: make(map[session.ID]world.ChunkCoord),
	}
}

// Do runs fn with exclusive access to the dispatcher and delivers the
// effects it returns.
func (h *Hub) Do(fn func(d *Dispatcher) []Effect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(fn(h.dispatcher))
}

func (h *Hub) deliver(effects []Effect) {
	for _, e := range effects {
		h.outbox.Deliver(e.Target, e.Packet)
	}
}

// Connect registers a new session.
func (h *Hub) Connect(id session.ID, addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher.Connect(id, addr)
}

// Submit handles one inbound packet.
func (h *Hub) Submit(ctx context.Context, id session.ID, p packet.Packet) {
	h.prefetch(ctx, id, p)
	h.Do(func(d *Dispatcher) []Effect { return d.Handle(id, p) })
}

// Reject reports a decode or transport error for a session.
func (h *Hub) Reject(id session.ID, err error) {
	h.Do(func(d *Dispatcher) []Effect { return d.Reject(id, err) })
}

// Kick disconnects a session with reason.
func (h *Hub) Kick(id session.ID, reason string) {
	h.Do(func(d *Dispatcher) []Effect { return d.Kick(id, reason) })
}

// Disconnect releases a session whose connection is gone.
func (h *Hub) Disconnect(id session.ID) {
	h.prefetchMu.Lock()
	delete(h.prefetched, id)
	h.prefetchMu.Unlock()
	h.Do(func(d *Dispatcher) []Effect { return d.Disconnect(id) })
}

// Tick advances the world by one tick.
func (h *Hub) Tick(ctx context.Context) {
	h.Do(func(d *Dispatcher) []Effect { return d.Tick(ctx) })
}

// State returns the protocol state of a session; Closing for unknown ones.
func (h *Hub) State(id session.ID) state.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, _ := h.dispatcher.State(id)
	return s
}

// Online returns the names of the players in game.
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dispatcher.Online()
}

// prefetch generates the view around the position a packet is about to put
// the player at. It reads only the packet and immutable configuration, so
// it needs no dispatcher lock.
func (h *Hub) prefetch(ctx context.Context, id session.ID, p packet.Packet) {
	var center world.ChunkCoord
	switch p := p.(type) {
	case *packet.LoginRequest:
		center = h.dispatcher.spawn.Chunk()
	case *packet.PlayerPosition:
		if !prefetchable(p.X, p.Z) {
			return
		}
		center = world.ChunkCoordAt(p.X, p.Z)
	case *packet.PlayerPositionLook:
		if !prefetchable(p.X, p.Z) {
			return
		}
		center = world.ChunkCoordAt(p.X, p.Z)
	default:
		return
	}

	h.prefetchMu.Lock()
	last, seen := h.prefetched[id]
	h.prefetched[id] = center
	h.prefetchMu.Unlock()
	if seen && last == center {
		return
	}
	h.world.EnsureAll(ctx, world.ChunksWithinRadius(center, h.dispatcher.config.ViewDistance))
}

func prefetchable(x, z float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(z) && math.Abs(x) <= MaxCoordinate && math.Abs(z) <= MaxCoordinate
}
