package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Validation includes:
//   - Required fields are present
//   - Values are within valid ranges
//   - Enum values are valid
//   - Cross-field constraints are satisfied
//
// Returns an error describing the first validation failure found.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules applies constraints that struct tags cannot express.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Minecraft.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Adapters.Minecraft.MaxConnections > 0 && cfg.Adapters.Minecraft.MaxConnections < cfg.Game.MaxPlayers {
		return fmt.Errorf("adapters.minecraft.max_connections (%d) must be at least game.max_players (%d)",
			cfg.Adapters.Minecraft.MaxConnections, cfg.Game.MaxPlayers)
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.Minecraft.Port {
		return fmt.Errorf("server.metrics.port %d collides with the minecraft adapter port", cfg.Server.Metrics.Port)
	}

	if cfg.Game.KeepAliveInterval >= cfg.Adapters.Minecraft.IdleTimeout && cfg.Adapters.Minecraft.IdleTimeout > 0 {
		return fmt.Errorf("game.keep_alive_interval (%v) must be shorter than adapters.minecraft.idle_timeout (%v)",
			cfg.Game.KeepAliveInterval, cfg.Adapters.Minecraft.IdleTimeout)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
