package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/dittocraft/pkg/adapter/minecraft"
	"github.com/spf13/viper"
)

// Config represents the complete Dittocraft configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics endpoint)
//   - Game rules announced to clients at login
//   - World cache behavior
//   - Chunk store selection and configuration (store-specific)
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOCRAFT_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Example environment override:
//
//	DITTOCRAFT_GAME_MAX_PLAYERS=50 dittocraft start
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Game holds the rules the dispatcher enforces
	Game GameConfig `mapstructure:"game" yaml:"game"`

	// World controls the chunk cache
	World WorldConfig `mapstructure:"world" yaml:"world"`

	// Store selects where chunks are persisted
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	// Enabled turns on collection and the /metrics endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics endpoint
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// GameConfig holds the game rules.
type GameConfig struct {
	// MOTD is the message shown in the server list
	MOTD string `mapstructure:"motd" yaml:"motd" validate:"max=64"`

	// MaxPlayers caps concurrent players in the Play state
	MaxPlayers int `mapstructure:"max_players" yaml:"max_players" validate:"min=1,max=1000"`

	// GameMode is 0 for survival, 1 for creative
	GameMode int32 `mapstructure:"game_mode" yaml:"game_mode" validate:"oneof=0 1"`

	// Difficulty ranges from 0 (peaceful) to 3 (hard)
	Difficulty int8 `mapstructure:"difficulty" yaml:"difficulty" validate:"min=0,max=3"`

	// Dimension is -1 (nether), 0 (overworld) or 1 (end)
	Dimension int8 `mapstructure:"dimension" yaml:"dimension" validate:"oneof=-1 0 1"`

	// Seed drives terrain generation. Zero is a valid seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`

	// LevelType selects the terrain generator
	// Valid values: FLAT, DEFAULT
	LevelType string `mapstructure:"level_type" yaml:"level_type" validate:"required,oneof=FLAT DEFAULT"`

	// ViewDistance is the radius in chunks streamed around each player
	ViewDistance int `mapstructure:"view_distance" yaml:"view_distance" validate:"min=1,max=15"`

	// TPS is the number of world ticks per second
	TPS int `mapstructure:"tps" yaml:"tps" validate:"min=1,max=100"`

	// KeepAliveInterval is how often the server pings players
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" yaml:"keep_alive_interval" validate:"gt=0"`

	// EvictionInterval is how often unused chunks are dropped from the cache
	EvictionInterval time.Duration `mapstructure:"eviction_interval" yaml:"eviction_interval" validate:"gt=0"`
}

// WorldConfig controls the chunk cache.
type WorldConfig struct {
	// RetentionRadius keeps unloaded chunks cached while within this many
	// chunks of any player
	RetentionRadius int `mapstructure:"retention_radius" yaml:"retention_radius" validate:"min=0"`

	// SaveGenerated writes generated chunks to the store on eviction and
	// shutdown
	SaveGenerated bool `mapstructure:"save_generated" yaml:"save_generated"`
}

// StoreConfig specifies chunk store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which chunk store implementation to use
	// Valid values: none, memory, badger, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none memory badger s3"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// AdaptersConfig contains protocol adapter configurations.
type AdaptersConfig struct {
	// Minecraft is the protocol 29 TCP listener
	Minecraft minecraft.MinecraftConfig `mapstructure:"minecraft" yaml:"minecraft"`
}

// Load loads configuration from file and environment variables.
//
// The configuration file is located at:
//   - $XDG_CONFIG_HOME/dittocraft/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/dittocraft/config.yaml (default)
//
// If configPath is provided, it overrides the default location.
// A missing file is not an error: defaults and environment apply.
//
// Parameters:
//   - configPath: Optional path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOCRAFT_ prefix and underscores
	// Example: DITTOCRAFT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOCRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	// Zero is a meaningful value for these keys, so ApplyDefaults cannot
	// tell "unset" from "set to zero". Viper can.
	v.SetDefault("game.game_mode", DefaultGameMode)
	v.SetDefault("adapters.minecraft.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/dittocraft/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys registers every scalar key of t with viper. AutomaticEnv only
// consults the environment for keys viper already knows, so without this an
// override of a key missing from the file would be ignored by Unmarshal.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := range t.NumField() {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindEnvKeys(v, field.Type, key)
		case reflect.Map:
			// Store sections are free-form; they come from the file only.
		default:
			_ = v.BindEnv(key)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing file is acceptable: defaults and environment apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittocraft")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittocraft")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
