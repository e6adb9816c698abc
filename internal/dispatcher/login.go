package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittocraft/internal/entity"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/protocol/state"
	"github.com/marmos91/dittocraft/internal/world"
)

// Stance is the eye height above the feet that clients report.
const Stance = 1.62

// handleHandshake records the name the client intends to log in with and
// answers with the connection hash. The payload is "username;host:port";
// older clients send the bare username.
func (d *Dispatcher) handleHandshake(c *conn, p *packet.Handshake) []Effect {
	name, _, _ := strings.Cut(p.Data, ";")
	c.handshakeName = name
	if err := c.machine.Transition(state.LoginNegotiation); err != nil {
		return d.violation(c, err.Error())
	}
	return d.send(nil, c.id, &packet.Handshake{Data: d.auth.ConnectionHash()})
}

// handleStatus answers a server list ping with a single disconnect that
// carries "motd§online§max", then closes.
func (d *Dispatcher) handleStatus(c *conn) []Effect {
	if err := c.machine.Transition(state.StatusQuery); err != nil {
		return d.violation(c, err.Error())
	}
	status := fmt.Sprintf("%s§%d§%d", d.config.MOTD, len(d.players), d.config.MaxPlayers)
	out := d.send(nil, c.id, &packet.Disconnect{Reason: status})
	c.machine.Close()
	logger.Debug("Answered status ping from %s", c.addr)
	return out
}

// loginError is a refused login with the reason shown to the player and a
// short class for metrics.
type loginError struct {
	class  string
	reason string
}

func (d *Dispatcher) checkLogin(c *conn, p *packet.LoginRequest) *loginError {
	switch {
	case p.ProtocolVersion < packet.ProtocolVersion:
		return &loginError{"outdated_client", fmt.Sprintf("Outdated client! Server is on protocol %d, client sent %d", packet.ProtocolVersion, p.ProtocolVersion)}
	case p.ProtocolVersion > packet.ProtocolVersion:
		return &loginError{"outdated_server", fmt.Sprintf("Outdated server! Server is on protocol %d, client sent %d", packet.ProtocolVersion, p.ProtocolVersion)}
	case !ValidUsername(p.Username) || !strings.EqualFold(p.Username, c.handshakeName):
		return &loginError{"bad_username", "Failed to verify username!"}
	}
	if _, online := d.players[strings.ToLower(p.Username)]; online {
		return &loginError{"duplicate", "A player with that name is already online"}
	}
	if len(d.players) >= d.config.MaxPlayers {
		return &loginError{"full", "The server is full!"}
	}
	if err := d.auth.Authenticate(context.Background(), p.Username); err != nil {
		logger.Info("Authentication failed for %s: %v", p.Username, err)
		return &loginError{"auth", "Failed to verify username!"}
	}
	return nil
}

// handleLogin validates the request, spawns the player and sends the
// initial world state.
func (d *Dispatcher) handleLogin(c *conn, p *packet.LoginRequest) []Effect {
	if lerr := d.checkLogin(c, p); lerr != nil {
		d.metrics.RecordLogin(lerr.class)
		logger.Info("Refused login of %q from %s: %s", p.Username, c.addr, lerr.reason)
		return d.kick(c, lerr.reason)
	}

	if err := c.machine.Transition(state.Play); err != nil {
		return d.violation(c, err.Error())
	}
	c.username = p.Username
	c.position = d.spawn
	c.stance = d.spawn.Y + Stance
	c.chunk = d.spawn.Chunk()

	snap, events, err := d.entities.Spawn(entity.Template{
		Kind:     entity.KindPlayer,
		Name:     c.username,
		Owner:    c.id,
		Position: c.position,
	})
	if err != nil {
		logger.Error("Failed to spawn player %s: %v", c.username, err)
		return d.kick(c, "Internal server error")
	}
	c.player = snap.ID
	d.players[strings.ToLower(c.username)] = c.id

	out := d.send(nil, c.id, &packet.LoginResponse{
		EntityID:    int32(snap.ID),
		LevelType:   strings.ToLower(d.world.Generator().LevelType()),
		ServerMode:  d.config.GameMode,
		Dimension:   int32(d.config.Dimension),
		Difficulty:  d.config.Difficulty,
		WorldHeight: world.ChunkHeight,
		MaxPlayers:  uint8(min(d.config.MaxPlayers, 255)),
	})
	out = d.send(out, c.id, &packet.SpawnPosition{
		X: int32(d.spawn.X),
		Y: int32(d.spawn.Y),
		Z: int32(d.spawn.Z),
	})
	out = d.send(out, c.id, &packet.TimeUpdate{Time: d.worldTime})
	out = d.streamChunks(c, out)
	out = d.send(out, c.id, &packet.ServerPositionLook{
		X:      c.position.X,
		Stance: c.stance,
		Y:      c.position.Y,
		Z:      c.position.Z,
		Yaw:    c.look.Yaw,
		Pitch:  c.look.Pitch,
	})
	out = d.appendEvents(out, events)
	out = d.broadcast(out, &packet.ChatMessage{Message: fmt.Sprintf("§e%s joined the game.", c.username)})

	d.metrics.RecordLogin("success")
	d.metrics.SetOnlinePlayers(len(d.players))
	d.metrics.SetEntities(d.entities.Len())
	logger.Info("%s joined the game from %s (entity %d)", c.username, c.addr, snap.ID)
	return out
}
