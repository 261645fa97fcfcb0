package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/territoryrun/internal/archive"
	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/config"
	"github.com/playperu/territoryrun/internal/database"
	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/handler/health"
	"github.com/playperu/territoryrun/internal/migrations"
	"github.com/playperu/territoryrun/internal/server"
	"github.com/playperu/territoryrun/internal/store"
	"github.com/playperu/territoryrun/internal/territory"
	"github.com/playperu/territoryrun/internal/tuning"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	tn, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("loading tuning: %w", err)
	}

	// --- libSQL ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to libsql: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to libsql", "path", cfg.DBPath, "schema_version", version)

	st := store.New(db)

	// --- Territories ---
	territories, err := st.Territories(ctx)
	if err != nil {
		return fmt.Errorf("loading territories: %w", err)
	}
	if len(territories) == 0 && cfg.SeedTerritories > 0 {
		seed := uint64(time.Now().UnixNano())
		territories = territory.Generate(rand.New(rand.NewPCG(seed, seed>>1)),
			geo.Location{Lat: cfg.SeedLat, Lng: cfg.SeedLng}, cfg.SeedTerritories, "", time.Now())
		if err := st.SaveTerritories(ctx, territories); err != nil {
			return fmt.Errorf("seeding territories: %w", err)
		}
		logger.Info("seeded territories", "count", len(territories), "lat", cfg.SeedLat, "lng", cfg.SeedLng)
	}
	catalog := territory.NewCatalog(territories)
	logger.Info("territories loaded", "count", catalog.Len())

	// --- Run archive ---
	arch := archive.NewWriter(cfg.ArchiveDir, "runs")
	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	hub := server.NewHub(st, catalog, tn, server.NewBroker(), arch, logger, server.HubOptions{
		RunTick:       cfg.RunTick,
		LocationRate:  cfg.LocationRate,
		LocationBurst: cfg.LocationBurst,
	})
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, hub, tokens, cfg.SPADir, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"libsql":  health.DB(db),
			"archive": health.Dir(cfg.ArchiveDir),
		}).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return hub.RunEnergyRegen(gctx, cfg.EnergyCheck)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		if err := hub.Close(context.Background()); err != nil {
			logger.Error("saving players on shutdown", "error", err)
		}
		return arch.Close()
	})

	return g.Wait()
}
