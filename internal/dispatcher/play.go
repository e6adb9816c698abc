package dispatcher

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marmos91/dittocraft/internal/entity"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/world"
)

const (
	// MaxCoordinate bounds the horizontal position a client may report.
	MaxCoordinate = 3.2e7

	// MaxHeight bounds the vertical position. Absolute positions are sent
	// as int32 multiples of 1/32 block, so Y must stay well inside that.
	MaxHeight = 1e7

	minStanceHeight = 0.1
	maxStanceHeight = 1.65

	// MaxChatLength is the longest chat line a client may send, in
	// characters.
	MaxChatLength = 100
)

// validPosition checks what a client reports before it reaches the world.
func validPosition(pos entity.Vec3, stance float64) (bool, string) {
	for _, v := range []float64{pos.X, pos.Y, pos.Z, stance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, "Illegal position"
		}
	}
	if math.Abs(pos.X) > MaxCoordinate || math.Abs(pos.Z) > MaxCoordinate || math.Abs(pos.Y) > MaxHeight {
		return false, "Illegal position"
	}
	if h := stance - pos.Y; h < minStanceHeight || h > maxStanceHeight {
		return false, "Illegal stance"
	}
	return true, ""
}

func validLook(look entity.Look) bool {
	for _, v := range []float32{look.Yaw, look.Pitch} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// handleMove applies a client position or look update. When the player
// crosses into a new chunk the view is streamed before entity updates so the
// client has terrain under any entity it learns about.
func (d *Dispatcher) handleMove(c *conn, pos entity.Vec3, stance float64, look entity.Look, onGround, positioned bool) []Effect {
	if positioned {
		if ok, reason := validPosition(pos, stance); !ok {
			return d.violation(c, reason)
		}
	}
	if !validLook(look) {
		return d.violation(c, "Illegal position")
	}

	c.position = pos
	c.stance = stance
	c.look = look
	c.onGround = onGround

	var out []Effect
	if chunk := pos.Chunk(); chunk != c.chunk {
		c.chunk = chunk
		out = d.streamChunks(c, out)
	}

	events, err := d.entities.Move(c.player, pos, look)
	if err != nil {
		logger.Error("Failed to move player %s: %v", c.username, err)
		return out
	}
	return d.appendEvents(out, events)
}

// streamChunks brings the client's loaded chunks in line with its view:
// missing chunks are sent nearest first, chunks out of view are unloaded.
// A chunk that fails to generate is skipped and the view is marked
// incomplete so Tick retries it.
func (d *Dispatcher) streamChunks(c *conn, out []Effect) []Effect {
	wanted := world.ChunksWithinRadius(c.chunk, d.config.ViewDistance)
	keep := make(map[world.ChunkCoord]struct{}, len(wanted))
	c.viewIncomplete = false

	for _, coord := range wanted {
		keep[coord] = struct{}{}
		if d.world.IsLoaded(c.id, coord) {
			continue
		}
		chunk, err := d.world.EnsureChunk(context.Background(), coord)
		if err != nil {
			logger.Error("Skipping chunk %s for %s: %v", coord, c.username, err)
			c.viewIncomplete = true
			continue
		}
		data, err := chunk.MapChunkPacket()
		if err != nil {
			logger.Error("Failed to encode chunk %s: %v", coord, err)
			c.viewIncomplete = true
			continue
		}
		out = d.send(out, c.id, world.PreChunkPacket(coord, true))
		out = d.send(out, c.id, data)
		d.world.MarkLoaded(c.id, coord)
	}

	for _, coord := range d.world.Loaded(c.id) {
		if _, ok := keep[coord]; ok {
			continue
		}
		out = d.send(out, c.id, world.PreChunkPacket(coord, false))
		d.world.MarkUnloaded(c.id, coord)
	}
	return out
}

// retryChunks streams the views that are still missing chunks.
func (d *Dispatcher) retryChunks(out []Effect) []Effect {
	for _, sid := range d.playerSessions() {
		if c := d.conns[sid]; c.viewIncomplete {
			out = d.streamChunks(c, out)
		}
	}
	return out
}

func validChat(msg string) bool {
	if utf8.RuneCountInString(msg) > MaxChatLength {
		return false
	}
	for _, r := range msg {
		if r == '§' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func (d *Dispatcher) handleChat(c *conn, p *packet.ChatMessage) []Effect {
	if !validChat(p.Message) {
		return d.violation(c, "Illegal characters in chat")
	}
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		return nil
	}

	if strings.HasPrefix(msg, "/") {
		d.metrics.RecordChat(true)
		logger.Info("%s issued server command: %s", c.username, msg)
		return d.handleCommand(c, strings.Fields(msg[1:]))
	}

	d.metrics.RecordChat(false)
	logger.Info("<%s> %s", c.username, msg)
	return d.broadcast(nil, &packet.ChatMessage{Message: fmt.Sprintf("<%s> %s", c.username, msg)})
}

// reply sends one chat line to the issuing player.
func (d *Dispatcher) reply(out []Effect, c *conn, format string, args ...any) []Effect {
	return d.send(out, c.id, &packet.ChatMessage{Message: fmt.Sprintf(format, args...)})
}

func (d *Dispatcher) handleCommand(c *conn, args []string) []Effect {
	if len(args) == 0 {
		return d.reply(nil, c, "§cUnknown command. Type /help for help.")
	}

	switch strings.ToLower(args[0]) {
	case "help", "?":
		out := d.reply(nil, c, "§7Commands:")
		out = d.reply(out, c, "§7/list - show online players")
		out = d.reply(out, c, "§7/spawn <mob> - spawn a mob where you stand")
		out = d.reply(out, c, "§7/despawn <id> - remove a mob")
		return d.reply(out, c, "§7/seed - show the world seed")

	case "list":
		names := d.Online()
		return d.reply(nil, c, "§7Connected players (%d/%d): %s", len(names), d.config.MaxPlayers, strings.Join(names, ", "))

	case "seed":
		return d.reply(nil, c, "§7Seed: %d", d.config.Seed)

	case "spawn":
		if len(args) != 2 {
			return d.reply(nil, c, "§cUsage: /spawn <mob>")
		}
		mob, ok := entity.ParseMobType(args[1])
		if !ok {
			return d.reply(nil, c, "§cUnknown mob %q. Known mobs: %s", args[1], strings.Join(entity.MobTypeNames(), ", "))
		}
		snap, out := d.SpawnMob(mob, c.position, c.look)
		if snap.ID == 0 {
			return d.reply(out, c, "§cCould not spawn %s", mob)
		}
		return d.reply(out, c, "§7Spawned %s with id %d", mob, snap.ID)

	case "despawn":
		if len(args) != 2 {
			return d.reply(nil, c, "§cUsage: /despawn <id>")
		}
		n, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return d.reply(nil, c, "§cNot an entity id: %s", args[1])
		}
		snap, ok := d.entities.Get(entity.ID(n))
		if !ok || snap.Kind != entity.KindMob {
			return d.reply(nil, c, "§cNo mob with id %d", n)
		}
		out := d.DespawnEntity(snap.ID)
		return d.reply(out, c, "§7Removed %s %d", snap.Mob, snap.ID)

	default:
		return d.reply(nil, c, "§cUnknown command. Type /help for help.")
	}
}
