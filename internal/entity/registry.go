package entity

import (
	"errors"
	"sort"

	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/internal/world"
)

var (
	// ErrUnknownEntity is returned for an ID that is not live.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrSessionHasPlayer is returned when a session already owns a player.
	ErrSessionHasPlayer = errors.New("session already owns a player")

	ErrIDsExhausted = errors.New("entity id space exhausted")
)

type entity struct {
	Snapshot

	// sent is the placement every interested client currently holds.
	sent Placement
}

// viewer is the interest state of one player's client.
type viewer struct {
	session session.ID
	player  ID
	center  world.ChunkCoord
	known   map[ID]struct{}
}

// Registry owns every live entity and the per-session interest sets.
type Registry struct {
	radius   int
	nextID   ID
	entities map[ID]*entity
	viewers  map[session.ID]*viewer
}

// NewRegistry creates a registry whose interest radius is radius chunks
// (Chebyshev distance).
func NewRegistry(radius int) *Registry {
	if radius < 0 {
		radius = 0
	}
	return &Registry{
		radius:   radius,
		nextID:   1,
		entities: make(map[ID]*entity),
		viewers:  make(map[session.ID]*viewer),
	}
}

// Radius returns the interest radius in chunks.
func (r *Registry) Radius() int {
	return r.radius
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// Get returns a snapshot of a live entity.
func (r *Registry) Get(id ID) (Snapshot, bool) {
	e, ok := r.entities[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.Snapshot, true
}

// PlayerOf returns the player entity owned by a session.
func (r *Registry) PlayerOf(sid session.ID) (ID, bool) {
	v, ok := r.viewers[sid]
	if !ok {
		return 0, false
	}
	return v.player, true
}

// All returns snapshots of every live entity ordered by ID.
func (r *Registry) All() []Snapshot {
	out := make([]Snapshot, 0, len(r.entities))
	for _, id := range r.sortedIDs() {
		out = append(out, r.entities[id].Snapshot)
	}
	return out
}

// InterestSet returns the entities the session's client knows about,
// ordered by ID. It is empty for sessions without a player.
func (r *Registry) InterestSet(sid session.ID) []ID {
	v, ok := r.viewers[sid]
	if !ok {
		return nil
	}
	ids := make([]ID, 0, len(v.known))
	for id := range v.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Spawn allocates an entity. A player template with an owner also registers
// the owner as a viewer; its initial interest set is emitted first, followed
// by the spawn announcements to the other viewers in range.
func (r *Registry) Spawn(t Template) (Snapshot, []Event, error) {
	owned := t.Kind == KindPlayer && t.Owner != session.Nil
	if owned {
		if _, exists := r.viewers[t.Owner]; exists {
			return Snapshot{}, nil, ErrSessionHasPlayer
		}
	}
	if r.nextID <= 0 {
		return Snapshot{}, nil, ErrIDsExhausted
	}

	e := &entity{Snapshot: Snapshot{
		ID:       r.nextID,
		Kind:     t.Kind,
		Name:     t.Name,
		Mob:      t.Mob,
		Owner:    t.Owner,
		Position: t.Position,
		Look:     t.Look,
		Velocity: t.Velocity,
		Metadata: t.Metadata,
	}}
	e.sent = e.Placement()
	r.nextID++
	r.entities[e.ID] = e

	var events []Event
	if owned {
		v := &viewer{
			session: t.Owner,
			player:  e.ID,
			center:  e.Position.Chunk(),
			known:   make(map[ID]struct{}),
		}
		r.viewers[t.Owner] = v
		events = r.refreshInterest(v, events)
	}

	chunk := e.Position.Chunk()
	for _, v := range r.sortedViewers() {
		if v.player == e.ID || !r.inRange(v, chunk) {
			continue
		}
		v.known[e.ID] = struct{}{}
		events = append(events, Event{Kind: EventSpawn, Viewer: v.session, Entity: e.Snapshot})
	}
	return e.Snapshot, events, nil
}

// Despawn removes an entity and tells every client that knows it. A player's
// own viewer registration is dropped with it.
func (r *Registry) Despawn(id ID) ([]Event, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, ErrUnknownEntity
	}
	delete(r.entities, id)
	if e.Kind == KindPlayer && e.Owner != session.Nil {
		delete(r.viewers, e.Owner)
	}

	var events []Event
	for _, v := range r.sortedViewers() {
		if _, known := v.known[id]; !known {
			continue
		}
		delete(v.known, id)
		events = append(events, Event{Kind: EventDespawn, Viewer: v.session, Entity: e.Snapshot})
	}
	return events, nil
}

// DespawnSession removes the player owned by a session, if any.
func (r *Registry) DespawnSession(sid session.ID) []Event {
	id, ok := r.PlayerOf(sid)
	if !ok {
		return nil
	}
	events, _ := r.Despawn(id)
	return events
}

// Move updates an entity's position and orientation.
//
// Viewers that keep seeing the entity get a move event only when its wire
// placement changed. Viewers it leaves get a despawn, and viewers it enters
// get a spawn with the new state. When the entity is a player that crossed a
// chunk boundary its own interest set is recomputed afterwards.
func (r *Registry) Move(id ID, pos Vec3, look Look) ([]Event, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, ErrUnknownEntity
	}

	e.Position = pos
	e.Look = look
	to := e.Placement()
	from := e.sent
	changed := to != from
	e.sent = to

	chunk := pos.Chunk()
	var events []Event
	for _, v := range r.sortedViewers() {
		if v.player == id {
			continue
		}
		_, wasIn := v.known[id]
		nowIn := r.inRange(v, chunk)
		switch {
		case wasIn && nowIn:
			if changed {
				events = append(events, Event{Kind: EventMove, Viewer: v.session, Entity: e.Snapshot, From: from, To: to})
			}
		case wasIn:
			delete(v.known, id)
			events = append(events, Event{Kind: EventDespawn, Viewer: v.session, Entity: e.Snapshot})
		case nowIn:
			v.known[id] = struct{}{}
			events = append(events, Event{Kind: EventSpawn, Viewer: v.session, Entity: e.Snapshot})
		}
	}

	if v, ok := r.viewers[e.Owner]; ok && e.Kind == KindPlayer && v.player == id && v.center != chunk {
		v.center = chunk
		events = r.refreshInterest(v, events)
	}
	return events, nil
}

// refreshInterest brings v.known in line with its center, appending the
// resulting spawns and despawns.
func (r *Registry) refreshInterest(v *viewer, events []Event) []Event {
	for known := range v.known {
		if _, live := r.entities[known]; !live {
			delete(v.known, known)
		}
	}
	for _, id := range r.sortedIDs() {
		if id == v.player {
			continue
		}
		e := r.entities[id]
		_, wasIn := v.known[id]
		nowIn := r.inRange(v, e.Position.Chunk())
		switch {
		case wasIn && !nowIn:
			delete(v.known, id)
			events = append(events, Event{Kind: EventDespawn, Viewer: v.session, Entity: e.Snapshot})
		case !wasIn && nowIn:
			v.known[id] = struct{}{}
			events = append(events, Event{Kind: EventSpawn, Viewer: v.session, Entity: e.Snapshot})
		}
	}
	return events
}

func (r *Registry) inRange(v *viewer, chunk world.ChunkCoord) bool {
	return v.center.Distance(chunk) <= r.radius
}

func (r *Registry) sortedIDs() []ID {
	ids := make([]ID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedViewers orders viewers by player ID so event order is reproducible.
func (r *Registry) sortedViewers() []*viewer {
	vs := make([]*viewer, 0, len(r.viewers))
	for _, v := range r.viewers {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].player < vs[j].player })
	return vs
}
