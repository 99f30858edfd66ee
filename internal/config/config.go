// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server process settings.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"ADDR" envDefault:":8080"`
	// DBPath is the SQLite journal path. Empty keeps sessions in memory.
	DBPath string `env:"DB_PATH"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	// GeminiAPIKey enables the Gemini dialogue provider. Empty falls
	// back to the scripted provider.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	// GeminiModel overrides the default Gemini model.
	GeminiModel string `env:"GEMINI_MODEL"`
	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
