package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

game:
  motd: "Ditto world"

adapters:
  minecraft:
    enabled: true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Game.MOTD != "Ditto world" {
		t.Errorf("Expected motd from file, got %q", cfg.Game.MOTD)
	}
	if cfg.Game.GameMode != DefaultGameMode {
		t.Errorf("Expected default game mode %d, got %d", DefaultGameMode, cfg.Game.GameMode)
	}
	if cfg.Adapters.Minecraft.Port != 25565 {
		t.Errorf("Expected default port 25565, got %d", cfg.Adapters.Minecraft.Port)
	}
	if cfg.Store.Type != "none" {
		t.Errorf("Expected default store type 'none', got %q", cfg.Store.Type)
	}
}

func TestLoad_ExplicitZeroGameMode(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
game:
  game_mode: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Game.GameMode != 0 {
		t.Errorf("Expected survival (0) from file, got %d", cfg.Game.GameMode)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Game.LevelType != "FLAT" {
		t.Errorf("Expected default level type 'FLAT', got %q", cfg.Game.LevelType)
	}
	if !cfg.Adapters.Minecraft.Enabled {
		t.Error("Expected Minecraft adapter enabled by default")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
game:
  level_type: "AMPLIFIED"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown level type")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[game]
max_players = 8
level_type = "default"
seed = -42

[adapters.minecraft]
enabled = true
port = 25570
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Game.MaxPlayers != 8 {
		t.Errorf("Expected 8 max players, got %d", cfg.Game.MaxPlayers)
	}
	if cfg.Game.LevelType != "DEFAULT" {
		t.Errorf("Expected level type normalized to 'DEFAULT', got %q", cfg.Game.LevelType)
	}
	if cfg.Game.Seed != -42 {
		t.Errorf("Expected seed -42, got %d", cfg.Game.Seed)
	}
	if cfg.Adapters.Minecraft.Port != 25570 {
		t.Errorf("Expected port 25570, got %d", cfg.Adapters.Minecraft.Port)
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
game:
  keep_alive_interval: 5s
adapters:
  minecraft:
    idle_timeout: 2m
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Game.KeepAliveInterval != 5*time.Second {
		t.Errorf("Expected keep alive 5s, got %v", cfg.Game.KeepAliveInterval)
	}
	if cfg.Adapters.Minecraft.IdleTimeout != 2*time.Minute {
		t.Errorf("Expected idle timeout 2m, got %v", cfg.Adapters.Minecraft.IdleTimeout)
	}
}

func TestLoad_StoreSection(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
store:
  type: badger
  badger:
    db_path: /var/lib/dittocraft
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Store.Type != "badger" {
		t.Errorf("Expected store type 'badger', got %q", cfg.Store.Type)
	}
	if cfg.Store.Badger["db_path"] != "/var/lib/dittocraft" {
		t.Errorf("Expected db_path from file, got %v", cfg.Store.Badger["db_path"])
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Game.MOTD != "A Minecraft Server" {
		t.Errorf("Expected default motd, got %q", cfg.Game.MOTD)
	}
	if cfg.Game.MaxPlayers != 20 {
		t.Errorf("Expected 20 max players, got %d", cfg.Game.MaxPlayers)
	}
	if cfg.Game.GameMode != 1 {
		t.Errorf("Expected creative game mode, got %d", cfg.Game.GameMode)
	}
	if cfg.Game.TPS != 20 {
		t.Errorf("Expected 20 TPS, got %d", cfg.Game.TPS)
	}
	if cfg.Game.ViewDistance != 5 {
		t.Errorf("Expected view distance 5, got %d", cfg.Game.ViewDistance)
	}
	if !cfg.World.SaveGenerated {
		t.Error("Expected save_generated enabled by default")
	}
	if !cfg.Adapters.Minecraft.Enabled {
		t.Error("Expected Minecraft adapter enabled by default")
	}
	if cfg.Adapters.Minecraft.BindAddress != "0.0.0.0" {
		t.Errorf("Expected bind address 0.0.0.0, got %q", cfg.Adapters.Minecraft.BindAddress)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	if dir := GetConfigDir(); dir != filepath.Join("/xdg", "dittocraft") {
		t.Errorf("Expected XDG config dir, got %q", dir)
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh directory")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTOCRAFT_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOCRAFT_GAME_MAX_PLAYERS", "50")
	t.Setenv("DITTOCRAFT_ADAPTERS_MINECRAFT_PORT", "25570")

	// game.max_players and the port are absent from the file; the
	// environment still reaches them.
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Game.MaxPlayers != 50 {
		t.Errorf("Expected 50 max players from env var, got %d", cfg.Game.MaxPlayers)
	}
	if cfg.Adapters.Minecraft.Port != 25570 {
		t.Errorf("Expected port 25570 from env var, got %d", cfg.Adapters.Minecraft.Port)
	}
}
