package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"log/slog"

	"github.com/hearkenhq/hearken/internal/api"
	"github.com/hearkenhq/hearken/internal/auth"
	"github.com/hearkenhq/hearken/internal/config"
	"github.com/hearkenhq/hearken/internal/connector"
	"github.com/hearkenhq/hearken/internal/database"
	"github.com/hearkenhq/hearken/internal/logging"
	"github.com/hearkenhq/hearken/internal/metrics"
	"github.com/hearkenhq/hearken/internal/models"
	"github.com/hearkenhq/hearken/internal/providers/reddit"
	"github.com/hearkenhq/hearken/internal/providers/twitter"
	"github.com/hearkenhq/hearken/internal/server"
	"github.com/hearkenhq/hearken/internal/vault"
)

const usageRetention = 48 * time.Hour

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting hearken")

	if cfg.Vault.MasterKey == nil {
		logger.Error("VAULT_MASTER_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()

	logger.Info("connecting to database")
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConnections = cfg.Database.MaxConnections
	db, err := database.Connect(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	connectorRepo := database.NewConnectorRepository(db)
	secretRepo := database.NewSecretRepository(db)
	usageRepo := database.NewUsageRepository(db)

	// Credential vault
	sealer, err := vault.NewSealer(cfg.Vault.MasterKey)
	if err != nil {
		logger.Error("failed to init vault sealer", "error", err)
		os.Exit(1)
	}
	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	vaultService := vault.NewService(secretRepo, sealer, logger).WithObserver(collector)

	// Connector registry with all supported providers
	registry := connector.NewRegistry(connectorRepo, vaultService, connector.Deps{
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Usage:      usageRepo,
		Metrics:    collector,
	})
	registry.Register(models.ProviderTwitter, twitter.Factory)
	registry.Register(models.ProviderReddit, reddit.Factory)
	logger.Info("connector registry ready", "providers", []string{"twitter", "reddit"})

	// Load auth configuration
	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		os.Exit(1)
	}
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := database.HealthCheck(r.Context(), db); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	logger.Info("setting up REST API")
	api.SetupRoutes(mux, registry, connectorRepo, authConfig, logger)

	// Usage events only matter inside the hour/day windows; prune the rest.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			pruned, err := usageRepo.Prune(context.Background(), time.Now().Add(-usageRetention))
			if err != nil {
				logger.Error("failed to prune usage events", "error", err)
				continue
			}
			if pruned > 0 {
				logger.Debug("pruned usage events", "count", pruned)
			}
		}
	}()

	// Wrap with SPA middleware to serve the admin UI for non-API routes
	handler := server.SPAMiddleware(collector.InstrumentHandler(mux), "./web/dist", "./web/dist/index.html")

	srv := server.New(cfg.Server, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("hearken started", "port", cfg.Server.Port)

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
