package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittocraft/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the metrics port used when none is configured.
const DefaultPort = 9090

// Status is the live view of the game shown next to the metrics.
type Status struct {
	MOTD       string   `json:"motd"`
	Online     []string `json:"online"`
	MaxPlayers int      `json:"max_players"`
}

// StatusFunc reports the current Status. It is called once per request.
type StatusFunc func() Status

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. Default: 9090
	Port int

	// Status feeds the index page and /status. May be nil and set later
	// with SetStatus.
	Status StatusFunc
}

// Server exposes the Prometheus registry over HTTP together with a small
// status page:
//   - GET /metrics: Prometheus text format (503 when collection is off)
//   - GET /status: players online and capacity as JSON
//   - GET /: HTML page with the same status and a link to /metrics
type Server struct {
	server *http.Server
	port   int

	mu     sync.RWMutex
	status StatusFunc

	shutdownOnce sync.Once
}

// NewServer creates a stopped metrics server. Call Start to serve.
func NewServer(config ServerConfig) *Server {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}

	s := &Server{port: config.Port, status: config.Status}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func metricsHandler() http.Handler {
	if registry := GetRegistry(); registry != nil {
		return promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Metrics collection is disabled", http.StatusServiceUnavailable)
	})
}

// SetStatus replaces the status source. Safe to call while serving.
func (s *Server) SetStatus(fn StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = fn
}

func (s *Server) currentStatus() Status {
	s.mu.RLock()
	fn := s.status
	s.mu.RUnlock()
	if fn == nil {
		return Status{Online: []string{}}
	}
	st := fn()
	if st.Online == nil {
		st.Online = []string{}
	}
	return st
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.currentStatus()); err != nil {
		logger.Debug("Failed to write status response: %v", err)
	}
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Dittocraft</title>
    <style>
        body { font-family: sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        .info { background: #f0f0f0; padding: 15px; border-radius: 5px; margin: 20px 0; }
    </style>
</head>
<body>
    <h1>{{.Status.MOTD}}</h1>
    <div class="info">
        <p><strong>Players:</strong> {{len .Status.Online}} / {{.Status.MaxPlayers}}</p>
        {{- if .Status.Online}}
        <ul>{{range .Status.Online}}<li>{{.}}</li>{{end}}</ul>
        {{- end}}
    </div>
    <p><a href="/metrics">/metrics</a>: scrape <code>http://&lt;host&gt;:{{.Port}}/metrics</code> with Prometheus.</p>
    <p><a href="/status">/status</a>: the same status as JSON.</p>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Status Status
		Port   int
	}{s.currentStatus(), s.port}
	if err := indexPage.Execute(w, data); err != nil {
		logger.Debug("Failed to render status page: %v", err)
	}
}

// Start listens on the configured port and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on %s", listener.Addr())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already done; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
