package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittocraft/pkg/adapter/minecraft"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalized(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
}

func TestApplyDefaults_Game(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"motd", cfg.Game.MOTD, "A Minecraft Server"},
		{"max_players", cfg.Game.MaxPlayers, 20},
		{"level_type", cfg.Game.LevelType, "FLAT"},
		{"view_distance", cfg.Game.ViewDistance, 5},
		{"tps", cfg.Game.TPS, 20},
		{"keep_alive_interval", cfg.Game.KeepAliveInterval, 15 * time.Second},
		{"eviction_interval", cfg.Game.EvictionInterval, 30 * time.Second},
		{"seed", cfg.Game.Seed, int64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Game: GameConfig{
			MOTD:         "Custom",
			MaxPlayers:   4,
			LevelType:    "default",
			ViewDistance: 10,
			TPS:          10,
		},
		Adapters: AdaptersConfig{
			Minecraft: minecraft.MinecraftConfig{
				Port:        25570,
				IdleTimeout: time.Minute * 2,
			},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Game.MOTD != "Custom" {
		t.Errorf("Expected motd preserved, got %q", cfg.Game.MOTD)
	}
	if cfg.Game.MaxPlayers != 4 {
		t.Errorf("Expected max players preserved, got %d", cfg.Game.MaxPlayers)
	}
	if cfg.Game.LevelType != "DEFAULT" {
		t.Errorf("Expected level type normalized to 'DEFAULT', got %q", cfg.Game.LevelType)
	}
	if cfg.Game.ViewDistance != 10 {
		t.Errorf("Expected view distance preserved, got %d", cfg.Game.ViewDistance)
	}
	if cfg.Adapters.Minecraft.Port != 25570 {
		t.Errorf("Expected port preserved, got %d", cfg.Adapters.Minecraft.Port)
	}
	if cfg.Adapters.Minecraft.IdleTimeout != 2*time.Minute {
		t.Errorf("Expected idle timeout preserved, got %v", cfg.Adapters.Minecraft.IdleTimeout)
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Type != "none" {
		t.Errorf("Expected default store type 'none', got %q", cfg.Store.Type)
	}
	if cfg.Store.Memory == nil || cfg.Store.S3 == nil {
		t.Error("Expected store sections initialized")
	}
	if cfg.Store.Badger["db_path"] != "/tmp/dittocraft-world" {
		t.Errorf("Expected default badger path, got %v", cfg.Store.Badger["db_path"])
	}
}

func TestApplyDefaults_StoreKeepsBadgerPath(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": "/data/world"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Store.Badger["db_path"] != "/data/world" {
		t.Errorf("Expected badger path preserved, got %v", cfg.Store.Badger["db_path"])
	}
}

func TestApplyDefaults_Minecraft(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	mc := cfg.Adapters.Minecraft
	if mc.BindAddress != "0.0.0.0" {
		t.Errorf("Expected bind address 0.0.0.0, got %q", mc.BindAddress)
	}
	if mc.Port != 25565 {
		t.Errorf("Expected port 25565, got %d", mc.Port)
	}
	if mc.IdleTimeout != 60*time.Second {
		t.Errorf("Expected idle timeout 60s, got %v", mc.IdleTimeout)
	}
	if mc.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", mc.ShutdownTimeout)
	}
	if mc.OutboundQueue != 1024 {
		t.Errorf("Expected outbound queue 1024, got %d", mc.OutboundQueue)
	}
	if mc.PacketsPerSecond != 200 || mc.PacketBurst != 400 {
		t.Errorf("Expected packet rate 200/400, got %d/%d", mc.PacketsPerSecond, mc.PacketBurst)
	}
}

func TestManagerConfig(t *testing.T) {
	w := WorldConfig{RetentionRadius: 3, SaveGenerated: true}
	mc := w.ManagerConfig()

	if mc.RetentionRadius != 3 || !mc.SaveGenerated {
		t.Errorf("Expected world settings carried over, got %+v", mc)
	}
}

func TestDispatcherConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Game.Seed = 99
	cfg.Game.Difficulty = 2

	dc := DispatcherConfig(&cfg.Game)
	if dc.MOTD != cfg.Game.MOTD || dc.MaxPlayers != cfg.Game.MaxPlayers {
		t.Errorf("Expected status fields carried over, got %+v", dc)
	}
	if dc.Seed != 99 || dc.Difficulty != 2 || dc.GameMode != 1 {
		t.Errorf("Expected login fields carried over, got %+v", dc)
	}
	if dc.TPS != 20 || dc.KeepAliveInterval != 15*time.Second {
		t.Errorf("Expected timing fields carried over, got %+v", dc)
	}
}
