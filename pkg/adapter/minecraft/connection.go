package minecraft

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/ratelimiter"
	"github.com/marmos91/dittocraft/internal/session"
)

// maxBatch caps how many encoded bytes the writer gathers before a write.
const maxBatch = 64 << 10

// Connection is one client socket bound to one session.
//
// The reader (Serve) decodes packets under the session's current protocol
// state and submits them to the hub. A writer goroutine drains the bounded
// outbound queue that Deliver fills. Writing a Disconnect ends the
// connection, so a kick is always the last thing the client receives.
type Connection struct {
	adapter *MinecraftAdapter
	conn    net.Conn
	id      session.ID

	queue   chan packet.Packet
	limiter *ratelimiter.RateLimiter

	// closed is set once the socket has been closed by this side. Read
	// errors after that are expected and not reported to the dispatcher.
	closed    atomic.Bool
	closeOnce sync.Once

	// drain asks the writer to flush what is queued and stop.
	drain      chan struct{}
	drainOnce  sync.Once
	writerDone chan struct{}
}

// NewConnection wraps an accepted socket in a fresh session.
func NewConnection(adapter *MinecraftAdapter, conn net.Conn) *Connection {
	return &Connection{
		adapter:    adapter,
		conn:       conn,
		id:         session.NewID(),
		queue:      make(chan packet.Packet, adapter.config.OutboundQueue),
		limiter:    ratelimiter.New(adapter.config.PacketsPerSecond, adapter.config.PacketBurst),
		drain:      make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// ID returns the session this connection carries.
func (c *Connection) ID() session.ID {
	return c.id
}

// Serve runs the session until the socket closes. It implements panic
// recovery so a single misbehaving connection cannot crash the server.
//
// The session ends when:
//   - The client disconnects or sends something the dispatcher kicks for
//   - The idle timeout expires ("Timed out")
//   - The client exceeds its packet rate ("Sending packets too fast")
//   - The outbound queue overflows (slow consumer)
//   - The context is cancelled (server shutdown)
//
// On return the hub has released the session and every packet queued for
// it has been written or discarded.
func (c *Connection) Serve(ctx context.Context) {
	hub := c.adapter.hub
	clientAddr := c.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler for session %s from %s: %v",
				c.id.Short(), clientAddr, r)
			c.close()
		}
		// After Disconnect returns no further effects can target this
		// session, so the writer sees everything it will ever get.
		hub.Disconnect(c.id)
		c.stopWriter()
		c.close()
	}()

	hub.Connect(c.id, clientAddr)
	go c.writeLoop()

	go func() {
		select {
		case <-ctx.Done():
			hub.Kick(c.id, ReasonShutdown)
			c.adapter.metrics.RecordKick("shutdown")
		case <-c.writerDone:
		}
	}()

	reader := packet.NewReader(&countingReader{src: c.conn, record: func(n int) {
		c.adapter.metrics.RecordBytes("in", n)
	}})

	for {
		c.resetIdleDeadline()

		p, err := reader.Next(hub.State(c.id))
		if err != nil {
			c.readFailed(err)
			return
		}

		name := p.ID().String()
		c.adapter.metrics.RecordPacket("in", name)

		if !c.limiter.Allow() {
			logger.Warn("Session %s from %s exceeded its packet rate", c.id.Short(), clientAddr)
			c.adapter.metrics.RecordKick("rate_limit")
			hub.Kick(c.id, ReasonTooFast)
			return
		}

		hub.Submit(ctx, c.id, p)
	}
}

// readFailed decides what a read error means for the session.
func (c *Connection) readFailed(err error) {
	hub := c.adapter.hub

	if c.closed.Load() {
		logger.Debug("Session %s read ended after local close: %v", c.id.Short(), err)
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Info("Session %s timed out", c.id.Short())
		c.adapter.metrics.RecordKick("timeout")
		hub.Kick(c.id, ReasonTimedOut)
		return
	}

	hub.Reject(c.id, err)
}

func (c *Connection) resetIdleDeadline() {
	timeout := c.adapter.config.IdleTimeout
	if timeout <= 0 {
		return
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil && !c.closed.Load() {
		logger.Debug("Failed to set read deadline for session %s: %v", c.id.Short(), err)
	}
}

// enqueue hands p to the writer without blocking. A full queue means the
// client is not reading fast enough; the connection is dropped.
func (c *Connection) enqueue(p packet.Packet) {
	if c.closed.Load() {
		return
	}
	select {
	case c.queue <- p:
	default:
		logger.Warn("Session %s is not keeping up (%d packets queued); disconnecting",
			c.id.Short(), cap(c.queue))
		c.adapter.metrics.RecordKick("slow_consumer")
		c.close()
	}
}

// writeLoop encodes queued packets and writes them in batches. It exits
// after writing a Disconnect, on a write error, or when asked to drain.
func (c *Connection) writeLoop() {
	defer close(c.writerDone)

	var batch []byte
	for {
		select {
		case p := <-c.queue:
			var done bool
			batch, done = c.gather(batch[:0], p)
			if !c.flush(batch) || done {
				c.close()
				return
			}
		case <-c.drain:
			for {
				select {
				case p := <-c.queue:
					var done bool
					batch, done = c.gather(batch[:0], p)
					if !c.flush(batch) || done {
						c.close()
						return
					}
				default:
					return
				}
			}
		}
	}
}

// gather encodes first and whatever else is already queued, up to
// maxBatch bytes. done reports that a Disconnect was encoded; nothing may
// follow it.
func (c *Connection) gather(dst []byte, first packet.Packet) ([]byte, bool) {
	p := first
	for {
		var err error
		start := len(dst)
		dst, err = packet.AppendEncode(dst, p)
		if err != nil {
			logger.Error("Dropping unencodable %s for session %s: %v", p.ID(), c.id.Short(), err)
		} else {
			c.adapter.metrics.RecordPacket("out", p.ID().String())
			c.adapter.metrics.RecordBytes("out", len(dst)-start)
		}

		if p.ID() == packet.IDDisconnect {
			return dst, true
		}
		if len(dst) >= maxBatch {
			return dst, false
		}

		select {
		case p = <-c.queue:
		default:
			return dst, false
		}
	}
}

func (c *Connection) flush(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if timeout := c.adapter.config.WriteTimeout; timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return false
		}
	}
	if _, err := c.conn.Write(data); err != nil {
		if !c.closed.Load() {
			logger.Debug("Write to session %s failed: %v", c.id.Short(), err)
		}
		return false
	}
	return true
}

// stopWriter lets the writer flush what is queued and waits for it.
func (c *Connection) stopWriter() {
	c.drainOnce.Do(func() { close(c.drain) })
	<-c.writerDone
}

// close shuts the socket. Safe to call from any goroutine, any number of times.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.conn.Close(); err != nil {
			logger.Debug("Error closing session %s: %v", c.id.Short(), err)
		}
	})
}

// countingReader reports every successful read to record.
type countingReader struct {
	src    io.Reader
	record func(n int)
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.record(n)
	}
	return n, err
}
