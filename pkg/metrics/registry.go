// Package metrics defines the observability interfaces of the server and
// owns the Prometheus registry they report to.
//
// Collection is optional. Components accept nil metrics and fall back to the
// no-op implementations in this package. Collection is on once InitRegistry
// has run; the constructors in metrics/prometheus check IsEnabled and return
// no-ops otherwise.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls do nothing.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the registry, or nil before InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
