package providers

import (
	"fmt"
	"strings"

	"github.com/you/flight-buddy/internal/config"
)

// SupportedProviders are the names the factory resolves, in the order they
// are advertised to users.
var SupportedProviders = []string{"amadeus", "serpapi"}

// New builds the flight provider selected by name, falling back to the
// configured default when name is empty. Unknown names and missing
// credentials fail here, before any network call.
func New(name string, cfg *config.Config) (FlightProvider, error) {
	if name == "" {
		name = cfg.Provider
	}
	if name == "" {
		name = "amadeus"
	}

	switch strings.ToLower(name) {
	case "amadeus":
		return NewAmadeus(cfg)
	case "serpapi":
		return NewSerpApi(cfg)
	default:
		return nil, &ConfigError{Message: fmt.Sprintf(
			"unknown provider %q, supported: %s", name, strings.Join(SupportedProviders, ", "))}
	}
}
