package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the server configuration, read from the environment
type Config struct {
	Port      string
	LogLevel  zerolog.Level
	LogFormat string

	// Store selects the persistence backend: "sqlite" (default) or "bolt"
	Store  string
	DBPath string

	JWTSecret []byte
	JWTTTL    time.Duration

	// ModerationConfig is an optional JSON role policy file
	ModerationConfig string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	TracingEnabled bool

	RateLimitRPS   float64
	RateLimitBurst int
}

// loadConfig reads configuration through getenv so tests can supply values
func loadConfig(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT"),
		LogFormat:        getenv("LOG_FORMAT"),
		Store:            strings.ToLower(getenv("INKWELL_STORE")),
		DBPath:           getenv("INKWELL_DB_PATH"),
		ModerationConfig: getenv("MODERATION_CONFIG"),
		AdminUsername:    getenv("ADMIN_USERNAME"),
		AdminEmail:       getenv("ADMIN_EMAIL"),
		AdminPassword:    getenv("ADMIN_PASSWORD"),
		TracingEnabled:   getenv("TRACING_ENABLED") == "true",
		RateLimitRPS:     10,
		RateLimitBurst:   20,
	}
	if cfg.Port == "" {
		cfg.Port = "18910"
	}

	switch getenv("LOG_LEVEL") {
	case "debug":
		cfg.LogLevel = zerolog.DebugLevel
	case "warn":
		cfg.LogLevel = zerolog.WarnLevel
	case "error":
		cfg.LogLevel = zerolog.ErrorLevel
	default:
		cfg.LogLevel = zerolog.InfoLevel
	}

	switch cfg.Store {
	case "":
		cfg.Store = "sqlite"
	case "sqlite", "bolt":
	default:
		return nil, fmt.Errorf("INKWELL_STORE must be sqlite or bolt, got %q", cfg.Store)
	}

	if cfg.DBPath == "" {
		// Default to XDG data directory or home directory for development
		dataDir := getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		cfg.DBPath = filepath.Join(dataDir, "inkwell", "inkwell-"+cfg.Store+".db")
	}

	secret := getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if len(secret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	cfg.JWTSecret = []byte(secret)

	if raw := getenv("JWT_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid JWT_TTL %q", raw)
		}
		cfg.JWTTTL = ttl
	}

	if raw := getenv("RATE_LIMIT_RPS"); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", raw)
		}
		cfg.RateLimitRPS = rps
	}
	if raw := getenv("RATE_LIMIT_BURST"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", raw)
		}
		cfg.RateLimitBurst = burst
	}

	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		return nil, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}
