// Package config loads process configuration from the environment, with a
// .env file honored when present.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Judge0 credentials. An empty APIKey selects the heuristic grader.
	Judge0APIKey  string
	Judge0APIHost string
	Judge0BaseURL string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8000"),
		Judge0APIKey:  getEnv("JUDGE0_API_KEY", ""),
		Judge0APIHost: getEnv("JUDGE0_API_HOST", "judge0-ce.p.rapidapi.com"),
		Judge0BaseURL: getEnv("JUDGE0_BASE_URL", "https://judge0-ce.p.rapidapi.com"),
	}
}

// JudgeConfigured reports whether the external judge path is usable.
func (c *Config) JudgeConfigured() bool { return c.Judge0APIKey != "" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
