package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	GeminiAPIKey    string
	GeminiModel     string
	ScenarioCatalog string // optional path overriding the embedded catalog
	VoteTimeout     time.Duration
	SessionIdleTTL  time.Duration
}

// Load reads configuration from the environment, with .env as a convenience
// for local development.
func Load() *Config {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Addr:            getEnv("ADDR", ":8090"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ScenarioCatalog: os.Getenv("SCENARIO_CATALOG"),
		VoteTimeout:     getDuration("VOTE_TIMEOUT", DefaultVoteTimeout),
		SessionIdleTTL:  getDuration("SESSION_IDLE_TTL", DefaultSessionIdleTTL),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
