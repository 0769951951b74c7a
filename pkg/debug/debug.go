package debug

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Global registry for run metrics. Holds no Go runtime collectors.
var globalRegistry = prometheus.NewRegistry()

func init() {
	globalRegistry.MustRegister(collectors.NewBuildInfoCollector())
}

// Registry returns the Prometheus registry for registering custom metrics.
func Registry() prometheus.Registerer {
	return globalRegistry
}

// Gatherer returns the registry as a gatherer, mostly for tests.
func Gatherer() prometheus.Gatherer {
	return globalRegistry
}

// WriteMetricsFile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector. The file is
// written to a temp name and renamed, so a scraper never sees a partial file.
func WriteMetricsFile(path string) error {
	if err := prometheus.WriteToTextfile(path, globalRegistry); err != nil {
		return fmt.Errorf("write metrics file %s: %w", path, err)
	}
	return nil
}
