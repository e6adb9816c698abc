// Package dispatcher is the single point that owns the world and the entity
// registry and turns inbound packets into addressed outbound packets.
//
// A Dispatcher is not safe for concurrent use. The Hub wraps it with the
// lock that linearizes every mutation and delivers the resulting effects.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/dittocraft/internal/entity"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/protocol/state"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/metrics"
)

// Effect is one packet addressed to one session.
type Effect struct {
	Target session.ID
	Packet packet.Packet
}

// Config holds the game rules the dispatcher enforces.
type Config struct {
	MOTD         string
	MaxPlayers   int
	GameMode     int32
	Difficulty   int8
	Dimension    int8
	Seed         int64
	ViewDistance int

	// TPS is the number of Tick calls per second.
	TPS               int
	KeepAliveInterval time.Duration
	EvictionInterval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 20
	}
	if c.ViewDistance <= 0 {
		c.ViewDistance = 5
	}
	if c.TPS <= 0 {
		c.TPS = 20
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 15 * time.Second
	}
	if c.EvictionInterval <= 0 {
		c.EvictionInterval = 30 * time.Second
	}
}

// ticks converts a duration to a whole number of ticks, at least one.
func (c *Config) ticks(d time.Duration) uint64 {
	n := uint64(d * time.Duration(c.TPS) / time.Second)
	if n == 0 {
		return 1
	}
	return n
}

// conn is the dispatcher's view of one session.
type conn struct {
	id      session.ID
	addr    string
	machine state.Machine

	handshakeName string
	username      string
	player        entity.ID

	position entity.Vec3
	stance   float64
	look     entity.Look
	onGround bool
	chunk    world.ChunkCoord

	// viewIncomplete is set while a chunk in view failed to load.
	viewIncomplete bool

	connectedAt time.Time
}

func (c *conn) playing() bool {
	return c.machine.Current() == state.Play
}

// Dispatcher implements the game logic of the server.
type Dispatcher struct {
	config   Config
	world    *world.Manager
	entities *entity.Registry
	auth     Authenticator
	metrics  metrics.GameMetrics

	conns   map[session.ID]*conn
	players map[string]session.ID

	spawn     entity.Vec3
	ticks     uint64
	worldTime int64
}

// New creates a dispatcher over an existing world and entity registry. auth
// and gameMetrics may be nil.
func New(config Config, w *world.Manager, entities *entity.Registry, auth Authenticator, gameMetrics metrics.GameMetrics) *Dispatcher {
	config.applyDefaults()
	if auth == nil {
		auth = OfflineAuthenticator{}
	}
	if gameMetrics == nil {
		gameMetrics = metrics.NewNoopGameMetrics()
	}
	d := &Dispatcher{
		config:   config,
		world:    w,
		entities: entities,
		auth:     auth,
		metrics:  gameMetrics,
		conns:    make(map[session.ID]*conn),
		players:  make(map[string]session.ID),
	}
	d.spawn = d.findSpawn()
	return d
}

// findSpawn places players on top of the terrain at the centre of chunk 0,0.
func (d *Dispatcher) findSpawn() entity.Vec3 {
	spawn := entity.Vec3{X: 8.5, Y: 64, Z: 8.5}
	c, err := d.world.EnsureChunk(context.Background(), world.ChunkCoord{})
	if err != nil {
		logger.Error("Failed to generate spawn chunk, using default height: %v", err)
		return spawn
	}
	spawn.Y = float64(c.Height(8, 8))
	return spawn
}

// Spawn returns the world spawn point.
func (d *Dispatcher) Spawn() entity.Vec3 {
	return d.spawn
}

// Config returns the rules in effect, with defaults applied.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Connect registers a new session in Handshaking.
func (d *Dispatcher) Connect(id session.ID, addr string) {
	d.conns[id] = &conn{id: id, addr: addr, connectedAt: time.Now()}
	logger.Debug("Session %s connected from %s", id.Short(), addr)
}

// State returns the protocol state of a session.
func (d *Dispatcher) State(id session.ID) (state.State, bool) {
	c, ok := d.conns[id]
	if !ok {
		return state.Closing, false
	}
	return c.machine.Current(), true
}

// Online returns the usernames of every player in Play, sorted.
func (d *Dispatcher) Online() []string {
	names := make([]string, 0, len(d.players))
	for _, sid := range d.players {
		names = append(names, d.conns[sid].username)
	}
	sort.Strings(names)
	return names
}

// Handle processes one decoded packet from a session and returns the
// resulting effects. Packets from unknown or closing sessions are dropped.
func (d *Dispatcher) Handle(id session.ID, p packet.Packet) []Effect {
	c, ok := d.conns[id]
	if !ok || c.machine.Current() == state.Closing {
		return nil
	}

	current := c.machine.Current()
	if !current.Allows(p.ID()) {
		return d.violation(c, fmt.Sprintf("Protocol violation: unexpected %s in %s", p.ID(), current))
	}

	switch p := p.(type) {
	case *packet.Handshake:
		return d.handleHandshake(c, p)
	case *packet.ServerListPing:
		return d.handleStatus(c)
	case *packet.LoginRequest:
		return d.handleLogin(c, p)
	case *packet.KeepAlive:
		return nil
	case *packet.ChatMessage:
		return d.handleChat(c, p)
	case *packet.Player:
		c.onGround = p.OnGround
		return nil
	case *packet.PlayerPosition:
		return d.handleMove(c, entity.Vec3{X: p.X, Y: p.Y, Z: p.Z}, p.Stance, c.look, p.OnGround, true)
	case *packet.PlayerLook:
		return d.handleMove(c, c.position, c.stance, entity.Look{Yaw: p.Yaw, Pitch: p.Pitch}, p.OnGround, false)
	case *packet.PlayerPositionLook:
		return d.handleMove(c, entity.Vec3{X: p.X, Y: p.Y, Z: p.Z}, p.Stance, entity.Look{Yaw: p.Yaw, Pitch: p.Pitch}, p.OnGround, true)
	case *packet.PluginMessage:
		logger.Debug("Session %s sent plugin message on %q (%d bytes)", id.Short(), p.Channel, len(p.Data))
		return nil
	case *packet.Disconnect:
		logger.Info("Session %s quit: %s", id.Short(), p.Reason)
		out := d.cleanup(c, nil)
		c.machine.Close()
		return out
	default:
		return d.violation(c, fmt.Sprintf("Protocol violation: unhandled %s", p.ID()))
	}
}

// Kick sends a disconnect with reason and closes the session.
func (d *Dispatcher) Kick(id session.ID, reason string) []Effect {
	c, ok := d.conns[id]
	if !ok || c.machine.Current() == state.Closing {
		return nil
	}
	logger.Info("Kicking session %s (%s): %s", id.Short(), c.describe(), reason)
	return d.kick(c, reason)
}

// Reject maps a codec or transport error to the session's fate: malformed
// input and protocol violations are kicked with an explanation, everything
// else closes the session silently.
func (d *Dispatcher) Reject(id session.ID, err error) []Effect {
	c, ok := d.conns[id]
	if !ok || c.machine.Current() == state.Closing {
		return nil
	}

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, packet.ErrTruncatedStream):
		logger.Debug("Session %s closed by peer", id.Short())
	case packet.IsViolation(err):
		return d.violation(c, "Protocol violation: "+err.Error())
	case packet.IsMalformed(err):
		return d.violation(c, "Bad packet: "+err.Error())
	default:
		logger.Info("Session %s transport error: %v", id.Short(), err)
	}
	out := d.cleanup(c, nil)
	c.machine.Close()
	return out
}

// Disconnect forgets a session after its connection is gone. Cleanup that
// has not happened yet (no kick, no quit) happens now.
func (d *Dispatcher) Disconnect(id session.ID) []Effect {
	c, ok := d.conns[id]
	if !ok {
		return nil
	}
	out := d.cleanup(c, nil)
	c.machine.Close()
	delete(d.conns, id)
	logger.Debug("Session %s released after %s", id.Short(), time.Since(c.connectedAt).Round(time.Millisecond))
	return out
}

func (d *Dispatcher) violation(c *conn, reason string) []Effect {
	logger.Warn("Session %s (%s): %s", c.id.Short(), c.describe(), reason)
	return d.kick(c, reason)
}

// kick emits the disconnect first so it is the last packet the session gets,
// then tears down the player.
func (d *Dispatcher) kick(c *conn, reason string) []Effect {
	out := d.send(nil, c.id, &packet.Disconnect{Reason: reason})
	out = d.cleanup(c, out)
	c.machine.Close()
	return out
}

// cleanup despawns the session's player and releases its chunks. It is
// idempotent.
func (d *Dispatcher) cleanup(c *conn, out []Effect) []Effect {
	if c.player == 0 {
		return out
	}
	name := c.username

	// Close first so nothing below is addressed to the leaving session.
	c.machine.Close()
	out = d.appendEvents(out, d.entities.DespawnSession(c.id))
	d.world.ForgetSession(c.id)
	delete(d.players, strings.ToLower(name))
	c.player = 0

	out = d.broadcast(out, &packet.ChatMessage{Message: fmt.Sprintf("§e%s left the game.", name)})
	d.metrics.SetOnlinePlayers(len(d.players))
	d.metrics.SetEntities(d.entities.Len())
	logger.Info("%s left the game", name)
	return out
}

// send appends an effect unless the target is gone or closing.
func (d *Dispatcher) send(out []Effect, target session.ID, p packet.Packet) []Effect {
	c, ok := d.conns[target]
	if !ok || c.machine.Current() == state.Closing {
		return out
	}
	return append(out, Effect{Target: target, Packet: p})
}

// broadcast sends p to every session in Play.
func (d *Dispatcher) broadcast(out []Effect, p packet.Packet) []Effect {
	for _, sid := range d.playerSessions() {
		out = d.send(out, sid, p)
	}
	return out
}

// playerSessions lists sessions in Play in a stable order.
func (d *Dispatcher) playerSessions() []session.ID {
	names := make([]string, 0, len(d.players))
	for name := range d.players {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]session.ID, 0, len(names))
	for _, name := range names {
		ids = append(ids, d.players[name])
	}
	return ids
}

func (d *Dispatcher) appendEvents(out []Effect, events []entity.Event) []Effect {
	for _, ev := range events {
		out = d.send(out, ev.Viewer, ev.Packet())
	}
	return out
}

func (c *conn) describe() string {
	if c.username != "" {
		return c.username
	}
	return c.addr
}

// keepAliveID picks the token clients must echo.
func keepAliveID() int32 {
	return rand.Int32()
}
