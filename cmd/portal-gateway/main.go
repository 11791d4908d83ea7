package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/portal-gateway/internal/audit"
	"github.com/carelink/portal-gateway/internal/gateway"
	"github.com/carelink/portal-gateway/internal/profile"
	"github.com/carelink/portal-gateway/internal/relay"
	"github.com/carelink/portal-gateway/internal/routing"
	"github.com/carelink/portal-gateway/pkg/config"
	"github.com/carelink/portal-gateway/pkg/database"
	"github.com/carelink/portal-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)

	// Initialize Sentry crash reporting if configured
	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize Sentry, continuing without it")
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Optional Redis-backed profile existence cache
	var profileCache *profile.Cache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		profileCache = profile.NewCache(client, time.Duration(cfg.Redis.CacheTTL)*time.Second)
		appLogger.Info("Profile existence cache enabled")
	}

	// Optional Postgres-backed audit trail
	var db *database.DB
	var auditStore *audit.Store
	if cfg.Database.Enabled {
		db, err = database.NewConnection(&cfg.Database, appLogger)
		if err != nil {
			log.Fatalf("Failed to connect to audit database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to migrate audit schema: %v", err)
		}
		auditStore = audit.NewStore(db, appLogger)
		appLogger.Info("Audit trail enabled")
	}

	// Profile existence oracle and redirect decision engine
	profiles := profile.NewClient(
		cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.ProfileTimeout)*time.Second,
		profileCache,
		appLogger,
	)
	engine := routing.NewEngine(profiles)

	// Upload relay
	uploads := relay.New(relay.Config{
		UpstreamBaseURL:       cfg.Upstream.BaseURL,
		ConnectTimeout:        time.Duration(cfg.Upstream.ConnectTimeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.Upstream.ResponseHeaderTimeout) * time.Second,
		BodyTimeout:           time.Duration(cfg.Upstream.BodyTimeout) * time.Second,
	}, appLogger)

	// Rate limiter for the API surface
	var limiter *gateway.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = gateway.NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
		limiter.StartCleanup(time.Duration(cfg.RateLimit.CleanupInterval) * time.Second)
	}

	service, err := gateway.NewService(cfg, appLogger, engine, uploads, auditStore, db, limiter, sentryEnabled)
	if err != nil {
		log.Fatalf("Failed to create portal gateway: %v", err)
	}

	// Start the server in a goroutine
	go func() {
		if err := service.Start(); err != nil {
			appLogger.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down portal gateway...")

	if err := service.Stop(); err != nil {
		appLogger.WithError(err).Error("Failed to shutdown server gracefully")
		os.Exit(1)
	}
}
