package config

import "testing"

func TestLoadConfigProductionOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("USE_MEMORY_DB", "true")
	t.Setenv("DEBUG", "true")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/app")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.UseMemoryDB {
		t.Fatal("production must never use the in-memory store")
	}
	if cfg.Debug {
		t.Fatal("production must not run in debug mode")
	}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Fatal("environment predicates disagree with ENVIRONMENT=production")
	}
}

func TestLoadConfigSplitsAllowedOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
	if cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("AllowedOrigins[0] = %q", cfg.AllowedOrigins[0])
	}
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Port:        "3000",
		JWTSecret:   "dev-secret-change-in-production",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("default JWT secret must be rejected in production")
	}

	cfg.JWTSecret = "a-real-secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing POSTGRES_DSN must be rejected in production")
	}

	cfg.PostgresDSN = "postgres://localhost/app"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresPort(t *testing.T) {
	cfg := &Config{Environment: "development", JWTSecret: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty PORT must be rejected")
	}
}
