package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := loadConfig(envFrom(map[string]string{
		"JWT_SECRET":    testSecret,
		"XDG_DATA_HOME": dataDir,
	}))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Port != "18910" {
		t.Errorf("Expected default port 18910, got %s", cfg.Port)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("Expected sqlite store, got %s", cfg.Store)
	}
	if want := filepath.Join(dataDir, "inkwell", "inkwell-sqlite.db"); cfg.DBPath != want {
		t.Errorf("Expected DB path %s, got %s", want, cfg.DBPath)
	}
	if cfg.LogLevel != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", cfg.LogLevel)
	}
	if cfg.JWTTTL != 0 {
		t.Errorf("Expected zero TTL (issuer default), got %s", cfg.JWTTTL)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Errorf("Unexpected rate limit defaults: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.TracingEnabled {
		t.Error("Tracing should be off by default")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadConfig(envFrom(map[string]string{
		"PORT":              "8080",
		"LOG_LEVEL":         "debug",
		"LOG_FORMAT":        "json",
		"INKWELL_STORE":     "Bolt",
		"INKWELL_DB_PATH":   "/var/lib/inkwell/data.bolt",
		"JWT_SECRET":        testSecret,
		"JWT_TTL":           "2h",
		"MODERATION_CONFIG": "/etc/inkwell/roles.json",
		"ADMIN_USERNAME":    "root",
		"ADMIN_EMAIL":       "root@example.com",
		"ADMIN_PASSWORD":    "changeme",
		"TRACING_ENABLED":   "true",
		"RATE_LIMIT_RPS":    "2.5",
		"RATE_LIMIT_BURST":  "5",
	}))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Port != "8080" || cfg.LogLevel != zerolog.DebugLevel || cfg.LogFormat != "json" {
		t.Errorf("Unexpected server settings: %+v", cfg)
	}
	if cfg.Store != "bolt" || cfg.DBPath != "/var/lib/inkwell/data.bolt" {
		t.Errorf("Unexpected store settings: %s %s", cfg.Store, cfg.DBPath)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("Expected 2h TTL, got %s", cfg.JWTTTL)
	}
	if cfg.AdminUsername != "root" || cfg.AdminPassword != "changeme" {
		t.Errorf("Unexpected admin bootstrap: %s", cfg.AdminUsername)
	}
	if !cfg.TracingEnabled {
		t.Error("Expected tracing enabled")
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 5 {
		t.Errorf("Unexpected rate limits: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := map[string]map[string]string{
		"JWT_SECRET is required":   {},
		"at least 32 bytes":        {"JWT_SECRET": "short"},
		"INKWELL_STORE must be":    {"JWT_SECRET": testSecret, "INKWELL_STORE": "postgres"},
		"invalid JWT_TTL":          {"JWT_SECRET": testSecret, "JWT_TTL": "forever"},
		"invalid RATE_LIMIT_RPS":   {"JWT_SECRET": testSecret, "RATE_LIMIT_RPS": "-1"},
		"invalid RATE_LIMIT_BURST": {"JWT_SECRET": testSecret, "RATE_LIMIT_BURST": "lots"},
		"must be set together":     {"JWT_SECRET": testSecret, "ADMIN_USERNAME": "root"},
	}

	for want, env := range tests {
		env["INKWELL_DB_PATH"] = "/tmp/inkwell.db"
		_, err := loadConfig(envFrom(env))
		if err == nil {
			t.Errorf("Expected error containing %q, got nil", want)
			continue
		}
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error containing %q, got %v", want, err)
		}
	}
}
