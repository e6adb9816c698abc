package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittocraft/internal/dispatcher"
	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/marmos91/dittocraft/internal/protocol/packet"
	"github.com/marmos91/dittocraft/internal/session"
	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/adapter"
)

// defaultShutdownTimeout bounds how long adapters get to stop once shutdown
// begins, unless SetShutdownTimeout says otherwise.
const defaultShutdownTimeout = 30 * time.Second

// flushTimeout bounds the final world flush after every adapter stopped.
const flushTimeout = time.Minute

// Server runs the game: the network adapters, the world tick loop and the
// final world flush.
//
// Architecture:
// Every adapter feeds packets into one dispatcher.Hub. The hub hands every
// outbound packet back to the Server, which offers it to each adapter; an
// adapter delivers only to the sessions it owns. The tick loop drives the
// same hub at the configured ticks per second.
//
// Lifecycle:
//  1. Creation: New() with the dispatcher and the world it plays on
//  2. Registration: AddAdapter() for each listener
//  3. Startup: Serve() starts all adapters and the tick loop
//  4. Shutdown: Context cancellation stops the adapters, then the tick loop,
//     then flushes the world to its store
//
// Thread safety:
// Server is safe for concurrent use. Serve() must only be called once.
//
// Example usage:
//
//	srv := server.New(d, w)
//	if err := srv.AddAdapter(minecraft.New(cfg, connMetrics)); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type Server struct {
	hub   *dispatcher.Hub
	world *world.Manager
	tps   int

	// shutdownTimeout bounds stopAllAdapters
	shutdownTimeout time.Duration

	// adapters contains all registered adapters
	adapters []adapter.Adapter

	// mu protects adapters and served
	mu sync.RWMutex

	// served is set by the first Serve() call
	served bool
}

// New creates a Server around d. w must be the manager d plays on; the
// server flushes it on shutdown.
//
// Panics if either argument is nil (indicates programmer error).
func New(d *dispatcher.Dispatcher, w *world.Manager) *Server {
	if d == nil {
		panic("dispatcher cannot be nil")
	}
	if w == nil {
		panic("world manager cannot be nil")
	}

	s := &Server{
		world:           w,
		tps:             d.Config().TPS,
		shutdownTimeout: defaultShutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 2),
	}
	s.hub = dispatcher.NewHub(d, s)
	return s
}

// SetShutdownTimeout sets how long adapters get to stop. Non-positive values
// are ignored. Must be called before Serve.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownTimeout = d
}

// Hub returns the hub every adapter submits to.
func (s *Server) Hub() *dispatcher.Hub {
	return s.hub
}

// AddAdapter registers an adapter and gives it the shared hub.
//
// Returns an error if another adapter already serves the same protocol or
// port.
//
// Panics if:
//   - adapter is nil (programmer error)
//   - Serve() has already been called (server is running)
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetHub(s.hub)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Deliver offers an outbound packet to every adapter. It implements
// dispatcher.Outbox for the hub.
func (s *Server) Deliver(target session.ID, p packet.Packet) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.adapters {
		a.Deliver(target, p)
	}
}

// Serve starts all registered adapters and the tick loop, and blocks until
// the context is cancelled or an adapter fails.
//
// Shutdown behavior:
// When the context is cancelled or an adapter fails:
//   - All adapters receive Stop() calls in reverse registration order
//   - Serve waits for every adapter goroutine to return
//   - The tick loop stops
//   - The world is flushed to its persistence provider
//
// Returns:
//   - context.Canceled (or the context's error) after a requested shutdown
//   - the adapter's error, wrapped, if an adapter failed
//   - an error if the final flush failed, joined with the above
//
// Panics if Serve() is called more than once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting server with %d adapter(s) at %d ticks per second", len(adapters), s.tps)

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped: %v", protocol, err)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	tickCtx, stopTicking := context.WithCancel(context.Background())
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		s.tickLoop(tickCtx)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	// Sessions are gone; the last ticks would only touch an empty world.
	stopTicking()
	<-tickDone

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.world.Flush(flushCtx); err != nil {
		logger.Error("Failed to flush world: %v", err)
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("flush world: %w", err))
	}

	logger.Info("Server stopped")
	return shutdownErr
}

// tickLoop advances the world at the configured rate until ctx is cancelled.
// A tick that overruns its slot delays the next one rather than queueing
// catch-up ticks.
func (s *Server) tickLoop(ctx context.Context) {
	interval := time.Second / time.Duration(s.tps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			s.hub.Tick(ctx)
			if elapsed := time.Since(start); elapsed > interval {
				logger.Warn("Tick took %v (budget %v)", elapsed.Round(time.Millisecond), interval)
			}
		}
	}
}

// adapterError pairs an adapter protocol name with its error for better error reporting.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters initiates graceful shutdown of all adapters in reverse
// registration order. Errors are logged; stopping continues.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	s.mu.RLock()
	timeout := s.shutdownTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stopped", protocol)
		}
	}
}

// Adapters returns a snapshot of currently registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
