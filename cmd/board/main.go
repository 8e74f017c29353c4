// Package main is the entry point for the mini-metro-display board server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/api"
	"github.com/TonyTwoStep/mini-metro-display/internal/board"
	"github.com/TonyTwoStep/mini-metro-display/internal/config"
	"github.com/TonyTwoStep/mini-metro-display/internal/geo"
	"github.com/TonyTwoStep/mini-metro-display/internal/telemetry"
	"github.com/TonyTwoStep/mini-metro-display/internal/transit"
)

func main() {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration error: ", err)
	}

	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Configuration error: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Geocoding failures are fatal: retrying without a corrected address
	// cannot succeed
	geocoder := geo.NewGeocoder(cfg.HTTPTimeout)
	origin, err := geocoder.Locate(ctx, cfg.Address)
	if err != nil {
		if errors.Is(err, geo.ErrAddressNotFound) {
			log.Fatalf("Address %q could not be geocoded; check BOARD_ADDRESS", cfg.Address)
		}
		log.Fatal("Geocoding failed: ", err)
	}
	slog.Info("board origin resolved", "address", cfg.Address, "lat", origin.Lat, "lon", origin.Lon)

	transitland := transit.NewTransitlandClient(cfg.TransitlandAPIKey, cfg.HTTPTimeout, cfg.CacheTTL, loc)
	var realtime board.RealtimeSource
	if len(cfg.RealtimeFeedURLs) > 0 {
		realtime = transit.NewRealtimeFeed(cfg.RealtimeFeedURLs, cfg.HTTPTimeout, cfg.CacheTTL)
	}

	registry := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	engine := board.NewEngine(board.EngineConfig{
		Origin:          origin,
		RadiusMeters:    cfg.SearchRadiusM,
		RefreshInterval: cfg.RefreshInterval,
		TickTimeout:     cfg.TickTimeout,
		DepartureWindow: cfg.DepartureWindow,
		MaxEntries:      cfg.MaxEntries,
		ReindexEvery:    cfg.ReindexEvery,
	}, transitland, transitland, realtime, metrics)

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("refresh loop stopped", "err", err)
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(engine, telemetry.Handler(registry)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "err", err)
		}
	}()

	fmt.Printf("🚇 departures board serving on port %s\n", cfg.Port)
	fmt.Printf("📍 %s (radius %.0fm, refresh %s)\n", cfg.Address, cfg.SearchRadiusM, cfg.RefreshInterval)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed to start: ", err)
	}
}
