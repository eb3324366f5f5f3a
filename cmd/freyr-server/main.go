// Package main initializes and runs the Freyr association server.
//
// It acts as the composition root: it loads configuration, wires the Postgres
// store, the catalog providers, the search engine with its result cache, the
// REST API, and the observability server, then handles the process lifecycle.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/cache"
	"github.com/freyrlabs/freyr/internal/catalog"
	"github.com/freyrlabs/freyr/internal/condition"
	"github.com/freyrlabs/freyr/internal/config"
	"github.com/freyrlabs/freyr/internal/database"
	"github.com/freyrlabs/freyr/internal/httpapi"
	"github.com/freyrlabs/freyr/internal/logger"
	"github.com/freyrlabs/freyr/internal/observability"
	"github.com/freyrlabs/freyr/internal/search"
	"github.com/freyrlabs/freyr/internal/service"
	"github.com/freyrlabs/freyr/internal/store"
)

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration and logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(&cfg.App)
	slog.SetDefault(appLogger)
	cfg.LogConfig(appLogger)

	// Background context for initialization
	ctx := context.Background()

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	checkers := []observability.Checker{database.NewHealthChecker(pool)}

	// Result cache backend selection. The memory backend is per-instance; the
	// Redis backend shares entries and invalidations across instances.
	var resultCache search.ResultCache
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisCache := cache.NewRedis(redisClient, cfg.Cache.TTL, appLogger)
		defer redisCache.Close()

		resultCache = redisCache
		checkers = append(checkers, cache.NewHealthChecker(redisClient))
	default:
		memoryCache, err := cache.NewMemory(cfg.Cache.Capacity, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to build memory cache: %w", err)
		}
		defer memoryCache.Close()

		resultCache = memoryCache
	}

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------

	registry := condition.NewRegistry()
	associationStore := store.NewPostgresStore(pool, registry)
	productCatalog := catalog.NewPostgresCatalog(pool)

	engine := search.NewEngine(associationStore, productCatalog, productCatalog, appLogger)
	cachedSearcher := search.NewCachedSearcher(engine, resultCache, cfg.Cache.TimeBucket, appLogger)

	bus := association.NewBus()
	bus.Subscribe(cachedSearcher.OnAssociationChanged)

	lifecycle := service.NewAssociationService(associationStore, bus, appLogger)

	// Config validation requires the key hash in production; an empty hash in
	// development disables authentication.
	skipAuth := cfg.Server.APIKeyHash == ""
	if skipAuth {
		appLogger.Warn("API key authentication is disabled, set FREYR_SERVER_API_KEY_HASH to enable it")
	}
	api := httpapi.NewAPIWithConfig(lifecycle, cachedSearcher, registry, productCatalog, productCatalog,
		cfg.Server.APIKeyHash, skipAuth)

	// -------------------------------------------------------------------------
	// 4. Servers
	// -------------------------------------------------------------------------

	obsServer := observability.NewServer(appLogger, &cfg.Observability, checkers...)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           api.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		appLogger.Info("starting API server",
			slog.String("addr", apiServer.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		var serveErr error
		if cfg.Server.TLSEnabled {
			serveErr = apiServer.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			serveErr = apiServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", serveErr)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		appLogger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("API server shutdown failed", slog.String("error", err.Error()))
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	appLogger.Info("service exited successfully")
	return nil
}
