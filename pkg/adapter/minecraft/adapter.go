package minecraft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittocraft/internal/dispatcher"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/pkg/metrics"
)

// Reasons sent to clients the transport disconnects on its own.
const (
	ReasonAtCapacity = "The server is at capacity"
	ReasonTimedOut   = "Timed out"
	ReasonTooFast    = "Sending packets too fast"
	ReasonShutdown   = "Server closed"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// MinecraftAdapter implements the adapter.Adapter interface for the
// protocol 29 game transport.
//
// This adapter provides:
//   - Graceful shutdown with configurable timeout
//   - Connection limiting with an explicit refusal message
//   - Per-session bounded outbound queues with slow consumer detection
//   - Idle timeout and per-session packet rate limiting
//
// Architecture:
// MinecraftAdapter manages the TCP listener and connection lifecycle. Each
// accepted connection becomes a Connection with its own session.ID, a reader
// loop that submits decoded packets to the hub and a writer goroutine that
// drains the session's outbound queue. The hub calls Deliver while holding
// its lock, so Deliver never blocks: it enqueues or drops.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (every session is kicked with ReasonShutdown)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses sync.Once
// to ensure idempotent behavior even if Stop() is called multiple times.
type MinecraftAdapter struct {
	// config holds the listener configuration (address, timeouts, limits)
	config MinecraftConfig

	// listener is the TCP listener for accepting game connections
	// Closed during shutdown to stop accepting new connections
	listener net.Listener

	// listenerMu guards listener, which is set by Serve and read by Stop
	listenerMu sync.Mutex

	// boundPort is the port the listener actually bound, 0 before Serve
	boundPort atomic.Int32

	// hub is the shared dispatcher every session submits packets to
	hub *dispatcher.Hub

	// metrics observes connections, packets and kicks
	metrics metrics.ConnectionMetrics

	// activeConns tracks all currently active connections for graceful shutdown
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once

	// shutdown signals that graceful shutdown has been initiated
	shutdown chan struct{}

	// connCount tracks the current number of active connections
	connCount atomic.Int32

	// connSemaphore limits the number of concurrent connections if MaxConnections > 0
	// nil if MaxConnections is 0 (unlimited)
	connSemaphore chan struct{}

	// shutdownCtx is cancelled during shutdown; every connection watches it
	// and kicks its session when it fires
	shutdownCtx context.Context

	// cancelRequests cancels shutdownCtx during shutdown
	cancelRequests context.CancelFunc

	// activeConnections maps session.ID to *Connection. Deliver routes
	// outbound packets through it and forced shutdown closes every entry.
	activeConnections sync.Map
}

// MinecraftConfig holds configuration parameters for the game listener.
//
// Default values (applied by New if zero):
//   - BindAddress: 0.0.0.0
//   - Port: 25565
//   - MaxConnections: 0 (unlimited)
//   - IdleTimeout: 60s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 10s
//   - OutboundQueue: 1024 packets
//   - PacketsPerSecond: 0 (unlimited)
//   - MetricsLogInterval: 5m (negative disables)
type MinecraftConfig struct {
	// Enabled controls whether the game listener is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the interface to listen on.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"omitempty,ip"`

	// Port is the TCP port to listen on. The vanilla port is 25565.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxConnections limits the number of concurrent client connections.
	// Connections above the limit receive a Disconnect with
	// ReasonAtCapacity and are closed. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// IdleTimeout is the longest a client may stay silent. Clients in game
	// answer KeepAlive well within it. 0 means no timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// WriteTimeout bounds a single flush of outbound packets.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for sessions to end
	// during graceful shutdown. Remaining connections are then forcibly closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// OutboundQueue is the number of packets a session may have waiting to
	// be written. A session whose queue fills up is disconnected.
	OutboundQueue int `mapstructure:"outbound_queue" yaml:"outbound_queue" validate:"min=0"`

	// PacketsPerSecond is the sustained inbound packet rate allowed per
	// session. 0 disables rate limiting.
	PacketsPerSecond uint `mapstructure:"packets_per_second" yaml:"packets_per_second"`

	// PacketBurst is how many packets a session may send at once above the
	// sustained rate.
	PacketBurst uint `mapstructure:"packet_burst" yaml:"packet_burst"`

	// MetricsLogInterval is the interval at which to log the connection
	// count. Negative disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *MinecraftConfig) applyDefaults() {
	// Note: Enabled field defaults are handled in pkg/config/defaults.go
	// to allow explicit false values from configuration files.

	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 25565
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.OutboundQueue == 0 {
		c.OutboundQueue = 1024
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

// validate checks that the configuration is usable.
func (c *MinecraftConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if net.ParseIP(c.BindAddress) == nil {
		return fmt.Errorf("invalid bind address %q", c.BindAddress)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.OutboundQueue < 1 {
		return fmt.Errorf("invalid OutboundQueue %d: must be >= 1", c.OutboundQueue)
	}
	return nil
}

// New creates a new MinecraftAdapter with the specified configuration.
//
// The adapter is created in a stopped state. Call SetHub() to inject the
// dispatcher, then call Serve() to start accepting connections.
//
// Panics if config validation fails.
func New(config MinecraftConfig, connMetrics metrics.ConnectionMetrics) *MinecraftAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid minecraft config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Connection limit: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if connMetrics == nil {
		connMetrics = metrics.NewNoopConnectionMetrics()
	}

	return &MinecraftAdapter{
		config:         config,
		metrics:        connMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetHub injects the dispatcher hub.
//
// Thread safety:
// Called exactly once before Serve(), no synchronization needed.
func (s *MinecraftAdapter) SetHub(hub *dispatcher.Hub) {
	s.hub = hub
}

// Serve binds the configured address and accepts connections until the
// context is cancelled.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener fails to start or shutdown is not graceful
//
// Thread safety:
// Serve() should only be called once per MinecraftAdapter instance.
func (s *MinecraftAdapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serveListener(ctx, listener)
}

// serveListener runs the accept loop on an already bound listener.
func (s *MinecraftAdapter) serveListener(ctx context.Context, listener net.Listener) error {
	if s.hub == nil {
		_ = listener.Close()
		return errors.New("minecraft adapter: no hub configured")
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(tcpAddr.Port))
	}

	logger.Info("Minecraft server listening on %s", listener.Addr())
	logger.Debug("Minecraft config: max_connections=%d idle_timeout=%v write_timeout=%v outbound_queue=%d packets_per_second=%d",
		s.config.MaxConnections, s.config.IdleTimeout, s.config.WriteTimeout, s.config.OutboundQueue, s.config.PacketsPerSecond)

	// A Stop() that ran before the listener existed could not close it.
	select {
	case <-s.shutdown:
		_ = listener.Close()
	default:
	}

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Minecraft shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	backoff := time.Duration(0)
	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
			}

			// Accept errors are usually resource exhaustion (EMFILE). Back
			// off so the loop does not spin while they last.
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			logger.Warn("Error accepting connection: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
			continue
		}
		backoff = 0

		if !s.acquireSlot() {
			s.metrics.RecordConnectionRejected("capacity")
			logger.Info("Refusing connection from %s: at capacity (%d)", tcpConn.RemoteAddr(), s.config.MaxConnections)
			go s.refuse(tcpConn, ReasonAtCapacity)
			continue
		}

		s.activeConns.Add(1)
		currentConns := s.connCount.Add(1)

		conn := NewConnection(s, tcpConn)
		s.activeConnections.Store(conn.id, conn)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("Connection accepted from %s as session %s (active: %d)",
			tcpConn.RemoteAddr(), conn.id.Short(), currentConns)

		go func(c *Connection) {
			defer func() {
				s.activeConnections.Delete(c.id)

				s.activeConns.Done()
				remaining := s.connCount.Add(-1)
				s.releaseSlot()

				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(remaining)

				logger.Debug("Connection from %s closed (active: %d)", c.conn.RemoteAddr(), remaining)
			}()

			c.Serve(s.shutdownCtx)
		}(conn)
	}
}

// acquireSlot takes a connection slot without blocking.
func (s *MinecraftAdapter) acquireSlot() bool {
	if s.connSemaphore == nil {
		return true
	}
	select {
	case s.connSemaphore <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *MinecraftAdapter) releaseSlot() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

// refuse tells a connection that never got a session why it is being
// dropped, then closes it.
func (s *MinecraftAdapter) refuse(conn net.Conn, reason string) {
	defer func() { _ = conn.Close() }()

	data, err := packet.Encode(&packet.Disconnect{Reason: reason})
	if err != nil {
		logger.Error("Failed to encode refusal: %v", err)
		return
	}
	if s.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := conn.Write(data); err != nil {
		logger.Debug("Failed to send refusal to %s: %v", conn.RemoteAddr(), err)
		return
	}
	s.metrics.RecordPacket("out", packet.IDDisconnect.String())
	s.metrics.RecordBytes("out", len(data))
}

// Deliver queues p for the session's writer. It implements
// dispatcher.Outbox and is called with the hub lock held, so it never
// blocks: packets for sessions this adapter does not own are ignored and a
// session whose queue is full is disconnected as a slow consumer.
func (s *MinecraftAdapter) Deliver(target session.ID, p packet.Packet) {
	value, ok := s.activeConnections.Load(target)
	if !ok {
		return
	}
	value.(*Connection).enqueue(p)
}

// initiateShutdown signals the adapter to begin graceful shutdown.
//
// Shutdown sequence:
//  1. Close shutdown channel (signals accept loop to stop)
//  2. Close listener (stops accepting new connections)
//  3. Cancel shutdownCtx (every connection kicks its session)
//
// Thread safety:
// Safe to call multiple times and from multiple goroutines.
func (s *MinecraftAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Minecraft shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}
		s.listenerMu.Unlock()

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections to complete or timeout.
//
// Returns:
//   - nil if all connections completed gracefully
//   - error if shutdown timeout exceeded (connections were force-closed)
func (s *MinecraftAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Minecraft graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.waitConnections():
		logger.Info("Minecraft graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Minecraft shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("minecraft shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *MinecraftAdapter) waitConnections() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections closes every tracked TCP connection. Readers and
// writers fail on the next I/O and the sessions are released as usual.
func (s *MinecraftAdapter) forceCloseConnections() {
	logger.Info("Force-closing active connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		c := value.(*Connection)
		c.close()
		closedCount++
		logger.Debug("Force-closed session %s", c.id.Short())
		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active sessions to end.
//
// If ctx is cancelled before every connection completes, Stop returns the
// context error.
//
// Thread safety:
// Safe to call concurrently from multiple goroutines.
func (s *MinecraftAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	activeCount := s.connCount.Load()
	logger.Info("Minecraft graceful shutdown: waiting for %d active connection(s) (context timeout)",
		activeCount)

	select {
	case <-s.waitConnections():
		logger.Info("Minecraft graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Minecraft shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs the connection count and who is online.
func (s *MinecraftAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Minecraft metrics: active_connections=%d players=%d",
				s.connCount.Load(), len(s.hub.Online()))
		}
	}
}

// GetActiveConnections returns the current number of active connections.
//
// Thread safety:
// Safe to call concurrently. Uses atomic operations.
func (s *MinecraftAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port once Serve has started, the configured one
// before that.
func (s *MinecraftAdapter) Port() int {
	if port := s.boundPort.Load(); port != 0 {
		return int(port)
	}
	return s.config.Port
}

// Protocol returns "Minecraft" as the protocol identifier.
func (s *MinecraftAdapter) Protocol() string {
	return "Minecraft"
}
