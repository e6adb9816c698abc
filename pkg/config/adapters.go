package config

import (
	"fmt"

	"github.com/marmos91/dittocraft/pkg/adapter"
	"github.com/marmos91/dittocraft/pkg/adapter/minecraft"
	"github.com/marmos91/dittocraft/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete Dittocraft configuration
//   - connMetrics: Optional transport metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, connMetrics metrics.ConnectionMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Minecraft.Enabled {
		adapters = append(adapters, minecraft.New(cfg.Adapters.Minecraft, connMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
