package config

import (
	"github.com/marmos91/dittocraft/pkg/metrics"
	promMetrics "github.com/marmos91/dittocraft/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Connection collects transport metrics for the Minecraft adapter (never nil)
	Connection metrics.ConnectionMetrics

	// World collects chunk cache metrics (never nil)
	World metrics.WorldMetrics

	// Game collects player and packet handling metrics (never nil)
	Game metrics.GameMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Connection: metrics.NewNoopConnectionMetrics(),
			World:      metrics.NewNoopWorldMetrics(),
			Game:       metrics.NewNoopGameMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:     server,
		Connection: promMetrics.NewConnectionMetrics(),
		World:      promMetrics.NewWorldMetrics(),
		Game:       promMetrics.NewGameMetrics(),
	}
}

// GameStatus builds the status source of the metrics server from the game
// settings and a function listing the players online.
func GameStatus(cfg *GameConfig, online func() []string) metrics.StatusFunc {
	return func() metrics.Status {
		return metrics.Status{
			MOTD:       cfg.MOTD,
			Online:     online(),
			MaxPlayers: cfg.MaxPlayers,
		}
	}
}
