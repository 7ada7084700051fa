/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the enterprise dashboard server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Pick the permission cache (Redis when REDIS_ADDR answers, else memory)
  5. Wire services and the API handler
  6. Optionally seed a demo scenario and ensure the admin account
  7. Start the session sweeper and the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database
  -seed    Scenario to load at startup ("enterprises" or "demo")

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the session sweeper
  4. Close Redis and database connections
  5. Exit

ENVIRONMENT:
  See config/config.go for every variable and its default.

EXAMPLES:
  # Run with file database
  ./server -db="./data/dashboard.db"

  # Throwaway instance with demo data
  ./server -db=":memory:" -seed=demo
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/access"
	"github.com/warp/enterprise-dashboard/api"
	"github.com/warp/enterprise-dashboard/config"
	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/finance"
	"github.com/warp/enterprise-dashboard/generic"
	"github.com/warp/enterprise-dashboard/identity"
	"github.com/warp/enterprise-dashboard/logging"
	"github.com/warp/enterprise-dashboard/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	seed := flag.String("seed", "", "scenario to load at startup")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "dashboard")
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(*dbPath, sqlite.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	cache, closeCache := permissionCache(cfg, logger)
	defer closeCache()

	// Services
	catalog := access.DefaultCatalog()
	resolver := access.NewResolver(store, catalog, cache, logger.Named("access"))
	rates := currency.NewService(store, logger.Named("currency"))
	handler := api.NewHandler(api.Deps{
		Store:          store,
		Identity:       identity.NewService(store, store, cfg.SessionTTL, logger.Named("identity")),
		Resolver:       resolver,
		Saver:          access.NewSaver(store, catalog, resolver, logger.Named("access")),
		Rates:          rates,
		Loader:         finance.NewLoader(store, rates, logger.Named("finance")),
		Clock:          generic.SystemClock{Location: loc},
		Location:       loc,
		Logger:         logger,
		Metrics:        api.NewMetrics(),
		SecureCookies:  cfg.IsProduction(),
		AllowScenarios: !cfg.IsProduction(),
	})

	ctx := context.Background()
	if *seed != "" {
		if err := handler.LoadScenarioByID(ctx, *seed); err != nil {
			return fmt.Errorf("load scenario %q: %w", *seed, err)
		}
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := handler.EnsureAccount(ctx, identity.SignUpRequest{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			Role:     generic.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("ensure admin account: %w", err)
		}
		if admin.Role != generic.RoleAdmin {
			logger.Warn("admin email belongs to a non-admin profile", zap.String("user_id", string(admin.ID)))
		}
	}

	sweeper := identity.NewSweeper(store, cfg.SessionSweepInterval, logger.Named("sessions"))
	sweeper.Start()
	defer sweeper.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Ping:        store.Ping,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.Env),
			zap.String("db", *dbPath),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// permissionCache returns a Redis cache when REDIS_ADDR is set and reachable,
// otherwise an in-process cache.
func permissionCache(cfg config.Config, logger *zap.Logger) (access.Cache, func()) {
	if cfg.RedisAddr == "" {
		return access.NewMemoryCache(cfg.PermissionCacheTTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory permission cache",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		client.Close()
		return access.NewMemoryCache(cfg.PermissionCacheTTL), func() {}
	}

	logger.Info("permission cache on redis", zap.String("addr", cfg.RedisAddr))
	return access.NewRedisCache(client, cfg.PermissionCacheTTL), func() { client.Close() }
}
