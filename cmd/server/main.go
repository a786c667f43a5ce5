package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/database/boltstore"
	"inkwell/internal/database/sqlitestore"
	"inkwell/internal/handlers"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/moderation"
	"inkwell/internal/routing"
	"inkwell/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg)

	log.Info().Msg("Starting inkwell moderation service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shut down tracer provider")
			}
		}()
		log.Info().Msg("Tracing enabled")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer store.Close()
	log.Info().Str("store", cfg.Store).Str("path", cfg.DBPath).Msg("Database opened")

	policy, err := moderation.NewPolicy(cfg.ModerationConfig)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ModerationConfig).Msg("Failed to load moderation policy")
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go reloadOnSignal(ctx, hup, policy)

	svc := moderation.NewService(store)
	hasher := auth.NewPasswordHasher(0)

	if cfg.AdminUsername != "" {
		hash, err := hasher.Hash(cfg.AdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash admin password")
		}
		if _, err := svc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, hash); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap admin account")
		}
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize credential issuer")
	}
	gate := auth.NewGate(issuer, svc)

	metrics.StartCollector(ctx, metrics.StatsSource{
		ReportsByStatus: func(ctx context.Context) (map[string]int, error) {
			stats, err := svc.Statistics(ctx)
			if err != nil {
				return nil, err
			}
			counts := make(map[string]int, len(stats.ByStatus))
			for status, n := range stats.ByStatus {
				counts[string(status)] = n
			}
			return counts, nil
		},
		UserCount: svc.CountUsers,
	}, time.Minute)

	rateLimit := middleware.NewRateLimitConfig(cfg.RateLimitRPS, cfg.RateLimitBurst)
	rateLimit.StartCleanup(ctx, 5*time.Minute)

	handler := routing.SetupRouter(routing.Config{
		Handlers:  handlers.NewHandler(svc, policy, issuer, hasher),
		Gate:      gate,
		Policy:    policy,
		RateLimit: rateLimit,
		Logger:    log.Logger,
		Tracing:   cfg.TracingEnabled,
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	log.Info().
		Str("address", srv.Addr).
		Str("url", "http://localhost:"+cfg.Port).
		Str("store", cfg.Store).
		Dur("token_ttl", issuer.TTL()).
		Msg("Starting HTTP server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}

// setupLogging configures the global zerolog logger.
// JSON logs in production, pretty console logs otherwise.
func setupLogging(cfg *Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

func openStore(cfg *Config) (moderation.Store, error) {
	if cfg.Store == "bolt" {
		return boltstore.Open(boltstore.Options{Path: cfg.DBPath})
	}
	return sqlitestore.Open(cfg.DBPath)
}
