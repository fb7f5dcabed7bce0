package providers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/you/flight-buddy/internal/config"
)

func factoryConfig() *config.Config {
	return &config.Config{
		Provider:         "amadeus",
		AmadeusBaseURL:   "https://test.api.amadeus.com",
		AmadeusAPIKey:    "key",
		AmadeusAPISecret: "secret",
		SerpApiBaseURL:   "https://serpapi.com",
		SerpApiKey:       "key",
	}
}

func TestFactoryDefaultsToConfiguredProvider(t *testing.T) {
	p, err := New("", factoryConfig())
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, "amadeus", p.Name())
}

func TestFactoryExplicitOverride(t *testing.T) {
	p, err := New("SerpApi", factoryConfig())
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, "serpapi", p.Name())
}

func TestFactoryUnknownProvider(t *testing.T) {
	_, err := New("kayak", factoryConfig())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, cfgErr.Message, "kayak")
	require.Contains(t, cfgErr.Message, "amadeus, serpapi")
}

func TestFactoryMissingCredentials(t *testing.T) {
	cfg := factoryConfig()
	cfg.AmadeusAPIKey = ""
	_, err := New("amadeus", cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
