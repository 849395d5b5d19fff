// Package detect holds the behavioral detectors: independent, composable
// rules that read a flow table (and optionally its feature vectors) and
// emit findings. Detectors register themselves at init time; adding a new
// one means registering another implementation, not subclassing anything.
package detect

import (
	"fmt"
	"sort"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// Factory defines a function that creates a detector from the analysis
// configuration.
type Factory func(cfg *config.AnalysisConfig) model.Detector

// registry holds the mapping of detector names to their factory functions.
var registry = make(map[string]Factory)

// Register registers a new detector type with its factory function.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("detector '%s' already registered", name))
	}
	registry[name] = factory
}

// Names returns the registered detector names in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateAll instantiates every registered detector with the given
// configuration, in stable name order.
func CreateAll(cfg *config.AnalysisConfig) []model.Detector {
	detectors := make([]model.Detector, 0, len(registry))
	for _, name := range Names() {
		detectors = append(detectors, registry[name](cfg))
	}
	return detectors
}
