package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bherbruck/configlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bherbruck/scriptcache/hooks/metrics"
	"github.com/bherbruck/scriptcache/internal/api"
	"github.com/bherbruck/scriptcache/internal/appconfig"
	"github.com/bherbruck/scriptcache/internal/config"
	"github.com/bherbruck/scriptcache/internal/provisioning"
	"github.com/bherbruck/scriptcache/internal/redisstore"
	"github.com/bherbruck/scriptcache/internal/script"
	"github.com/bherbruck/scriptcache/internal/storage"
)

// version is set via ldflags during build
var version = "dev"

func main() {
	// Set up basic logging (will be reconfigured after parsing)
	setupBasicLogging()

	// Parse configuration from env vars, CLI flags, and defaults
	var cfg appconfig.Config
	if err := configlib.Parse(&cfg); err != nil {
		slog.Error("Failed to parse configuration", "error", err)
		os.Exit(1)
	}

	// Reconfigure logging with user preferences
	setupLogging(cfg.Logging.Level, cfg.Logging.Format)

	// Handle version flag
	if cfg.Version {
		fmt.Printf("scriptcache version %s\n", version)
		os.Exit(0)
	}

	// Handle token flag
	if cfg.Token {
		token, err := cfg.API.IssueToken("cli")
		if err != nil {
			slog.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	slog.Info("Starting scriptcache", "version", version)

	// Connect to Redis
	store, err := redisstore.New(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	// Connection metrics listen before the first command so the initial connect is counted
	store.Subscribe(metrics.NewMetricsHook(metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)))
	slog.Info("Connection metrics hook registered")

	// The engine subscribes to connection signals itself
	engine := script.NewEngine(store, &cfg.Script,
		script.WithLoadErrorHandler(func(err error) {
			slog.Error("Failed to load scripts into Redis", "error", err)
		}))

	// Initialize optional script storage
	var db *storage.DB
	if cfg.Database.Enabled {
		slog.Info("Connecting to database", "type", cfg.Database.Type)
		db, err = storage.Open(&cfg.Database)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
	}

	// Load and provision the manifest if provided
	if cfg.ConfigFile != "" {
		slog.Info("Loading script manifest", "path", cfg.ConfigFile)
		manifest, err := config.Load(cfg.ConfigFile)
		if err != nil {
			slog.Error("Failed to load script manifest", "error", err)
			os.Exit(1)
		}

		if err := provisioning.Provision(engine, db, manifest); err != nil {
			slog.Error("Failed to provision scripts", "error", err)
			os.Exit(1)
		}
	}

	// Register the script directory if configured
	if cfg.Script.Dir != "" {
		if _, err := engine.RegisterDir(cfg.Script.Dir); err != nil {
			slog.Error("Failed to register script directory", "error", err)
			os.Exit(1)
		}
	}

	// Register enabled scripts stored in the database
	if db != nil {
		stored, err := db.EnabledScripts()
		if err != nil {
			slog.Error("Failed to load stored scripts", "error", err)
			os.Exit(1)
		}
		engine.Register(stored)
		slog.Info("Stored scripts registered", "count", len(stored))
	}

	// A failed ping is not fatal: scripts are loaded once the connection comes up
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		slog.Warn("Redis is not reachable yet", "error", err)
	}
	pingCancel()

	// Load every registered script before taking traffic; failures fall back to lazy loading
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Warm(warmCtx); err != nil {
		slog.Warn("Script cache not fully warm, remaining scripts load on first use", "error", err)
	} else {
		slog.Info("Script cache warmed", "scripts", len(engine.Status()))
	}
	warmCancel()

	// Start HTTP API server in a goroutine
	apiServer := api.NewServer(&cfg.API, engine, db)
	go func() {
		if err := apiServer.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("===========================================")
	slog.Info("scriptcache is running")
	slog.Info("  Redis", "addrs", cfg.Redis.Addrs, "master_name", cfg.Redis.MasterName)
	slog.Info("  HTTP API", "address", cfg.API.HTTPAddr)
	if db == nil {
		slog.Info("  Database", "enabled", false)
	} else if cfg.Database.Type == "sqlite" {
		slog.Info("  Database", "type", cfg.Database.Type, "path", cfg.Database.FilePath)
	} else {
		slog.Info("  Database", "type", cfg.Database.Type, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.DBName)
	}
	slog.Info("===========================================")
	slog.Info("Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down gracefully...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop HTTP server (no new executions)
	slog.Info("Stopping HTTP server...")
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("Error stopping HTTP server", "error", err)
	}

	// 2. Wait for background loads and async executions
	slog.Info("Shutting down script engine...")
	if err := engine.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down script engine", "error", err)
	}

	// 3. Close Redis
	slog.Info("Closing Redis connection...")
	if err := store.Close(); err != nil {
		slog.Error("Error closing Redis connection", "error", err)
	}

	// 4. Close database
	if db != nil {
		slog.Info("Closing database...")
		if err := db.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}

// setupBasicLogging configures a basic logger before config parsing
// This ensures we can log config parsing errors
func setupBasicLogging() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))
}

// setupLogging reconfigures slog with user preferences from config
func setupLogging(logLevel, logFormat string) {
	// Parse log level
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Parse log format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
