package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Provider string

	AmadeusBaseURL   string
	AmadeusAPIKey    string
	AmadeusAPISecret string

	SerpApiBaseURL string
	SerpApiKey     string

	SeatsAeroBaseURL string
	SeatsAeroAPIKey  string

	Currency   string
	MaxResults int

	BalancesFile string
}

func Load() *Config {
	// Credentials are commonly kept in a local .env during development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("provider", "amadeus")
	v.SetDefault("amadeus_base_url", "https://test.api.amadeus.com")
	v.SetDefault("serpapi_base_url", "https://serpapi.com")
	v.SetDefault("seatsaero_base_url", "https://seats.aero/partnerapi")
	v.SetDefault("currency", "USD")
	v.SetDefault("max_results", 10)
	v.SetDefault("balances_file", "balances.yaml")

	if path := os.Getenv("FLIGHT_BUDDY_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		// Fallback to conventional locations for local dev
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// The config file is optional; env vars and defaults cover everything.
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	if p := os.Getenv("FLIGHT_BUDDY_BALANCES"); p != "" {
		v.Set("balances_file", p)
	}

	return &Config{
		Provider:         v.GetString("provider"),
		AmadeusBaseURL:   v.GetString("amadeus_base_url"),
		AmadeusAPIKey:    v.GetString("amadeus_api_key"),
		AmadeusAPISecret: v.GetString("amadeus_api_secret"),
		SerpApiBaseURL:   v.GetString("serpapi_base_url"),
		SerpApiKey:       v.GetString("serpapi_api_key"),
		SeatsAeroBaseURL: v.GetString("seatsaero_base_url"),
		SeatsAeroAPIKey:  v.GetString("seatsaero_api_key"),
		Currency:         v.GetString("currency"),
		MaxResults:       v.GetInt("max_results"),
		BalancesFile:     v.GetString("balances_file"),
	}
}
