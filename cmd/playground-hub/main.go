// Package main provides the state hub serving the playground to browser views.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cache"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/config"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/hub"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/metrics"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "config file (default $PLAYGROUND_CONFIG)")
	addr := flag.String("addr", "", "listen address (default $PLAYGROUND_HUB_ADDR)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HubAddr = *addr
	}

	// Initialize logging
	logger, closeLog := config.SetupLogger(cfg, false)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting playground-hub", "addr", cfg.HubAddr, "api", cfg.APIURL)

	collector := metrics.NewCollector()
	apiClient := client.New(cfg.APIURL, cfg.ClientTimeout,
		client.WithMetrics(collector),
		client.WithLogger(logger),
		client.WithSlowThreshold(cfg.SlowRequestThreshold),
	)

	textCache, closeCache, err := openCache(cfg, logger)
	if err != nil {
		slog.Error("failed to open text cache", "error", err)
		os.Exit(1)
	}
	if closeCache != nil {
		defer func() {
			if err := closeCache(context.Background()); err != nil {
				slog.Error("failed to close text cache", "error", err)
			}
		}()
	}

	st := store.New(apiClient,
		store.WithCache(textCache),
		store.WithLogger(logger),
		store.WithMinTextsForTsne(cfg.MinTextsForTsne),
	)
	defer st.Close()

	// The hub serves views even when the service is down; failures are in the state
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
	if err := st.Init(ctx); err != nil {
		slog.Warn("initial load incomplete", "error", err)
	}
	cancel()

	h := hub.New(st, logger)
	runCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Run(runCtx)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:        cfg.HubAddr,
		Handler:     h.Handler(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("websocket endpoint available", "url", fmt.Sprintf("ws://localhost%s/ws", cfg.HubAddr))
		slog.Info("state endpoint available", "url", fmt.Sprintf("http://localhost%s/state", cfg.HubAddr))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down hub...")
	stopHub()

	// Graceful shutdown with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	snap := collector.Snapshot()
	slog.Info("hub stopped", "uptime_seconds", snap.UptimeSeconds, "endpoints", len(snap.Operations))
}

func openCache(cfg config.Config, logger *slog.Logger) (cache.TextCache, func(context.Context) error, error) {
	if cfg.CacheBackend != config.CacheBackendSurrealDB {
		return cache.NewFileCache(cfg.CachePath), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sc, err := cache.NewSurrealCache(ctx, cache.SurrealConfig{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return sc, sc.Close, nil
}
