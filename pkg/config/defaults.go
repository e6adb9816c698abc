package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittocraft/internal/world"
	"github.com/marmos91/dittocraft/pkg/adapter/minecraft"
)

// Game defaults announced to clients.
const (
	DefaultMOTD       = "A Minecraft Server"
	DefaultMaxPlayers = 20
	DefaultGameMode   = 1
	DefaultTPS        = 20
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function fills in zero values with sensible defaults. It should be called
// after loading configuration from file/environment but before validation.
//
// Default strategy:
//   - Logging: INFO level, text format, stdout output
//   - Server: 30s shutdown timeout, metrics on port 9090 when enabled
//   - Game: the classic server defaults (20 players, 20 TPS, flat world)
//   - World: retention radius of one chunk
//   - Store: none (the world lives in memory only)
//   - Adapters: Minecraft on 0.0.0.0:25565
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyGameDefaults(&cfg.Game)
	applyWorldDefaults(&cfg.World)
	applyStoreDefaults(&cfg.Store)
	applyMinecraftDefaults(&cfg.Adapters.Minecraft)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyGameDefaults(cfg *GameConfig) {
	if cfg.MOTD == "" {
		cfg.MOTD = DefaultMOTD
	}
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.LevelType == "" {
		cfg.LevelType = world.LevelFlat
	}
	cfg.LevelType = strings.ToUpper(cfg.LevelType)

	if cfg.ViewDistance == 0 {
		cfg.ViewDistance = 5
	}
	if cfg.TPS == 0 {
		cfg.TPS = DefaultTPS
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = 15 * time.Second
	}
	if cfg.EvictionInterval == 0 {
		cfg.EvictionInterval = 30 * time.Second
	}
}

func applyWorldDefaults(cfg *WorldConfig) {
	if cfg.RetentionRadius == 0 {
		cfg.RetentionRadius = 1
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittocraft-world"
	}
}

func applyMinecraftDefaults(cfg *minecraft.MinecraftConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 25565
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.OutboundQueue == 0 {
		cfg.OutboundQueue = 1024
	}
	if cfg.PacketsPerSecond == 0 {
		cfg.PacketsPerSecond = 200
	}
	if cfg.PacketBurst == 0 {
		cfg.PacketBurst = 400
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Game: GameConfig{
			GameMode: DefaultGameMode,
		},
		World: WorldConfig{
			SaveGenerated: true,
		},
		Adapters: AdaptersConfig{
			Minecraft: minecraft.MinecraftConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
