package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Config holds all application settings, populated from the environment
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`

	// Database: PostgreSQL when POSTGRES_DSN is set, otherwise the
	// in-memory store (development only)
	UseMemoryDB bool   `env:"USE_MEMORY_DB" envDefault:"false"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LoadConfig loads configuration from .env files and the environment
func LoadConfig() (*Config, error) {
	// Load the environment-specific .env file before parsing; real env vars
	// always win over file values.
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)

	if cfg.Environment == "production" {
		// The in-memory store loses data on restart; never use it in production
		cfg.UseMemoryDB = false
		cfg.Debug = false
	}

	return cfg, nil
}

var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config. On serverless platforms
// it initializes once per cold start and reuses it across warm invocations.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate checks settings that would make the service unsafe or unusable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == "dev-secret-change-in-production" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		fmt.Println("[warn] using default JWT secret (not for production)")
	}

	if c.Environment == "production" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN must be set in production")
	}

	return nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadEnvFile loads KEY=VALUE pairs from a .env file into the environment.
// Existing environment variables are never overwritten.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
