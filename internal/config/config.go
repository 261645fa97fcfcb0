package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr   string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath     string     `env:"DB_PATH" envDefault:"data/territory.db"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir     string     `env:"SPA_DIR" envDefault:"../web/dist"`
	TuningPath string     `env:"TUNING_PATH"`
	ArchiveDir string     `env:"ARCHIVE_DIR" envDefault:"data/runs"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	RunTick     time.Duration `env:"RUN_TICK" envDefault:"1s"`
	EnergyCheck time.Duration `env:"ENERGY_CHECK" envDefault:"30s"`

	// Pushed GPS fixes per second, per player.
	LocationRate  float64 `env:"LOCATION_RATE" envDefault:"5"`
	LocationBurst int     `env:"LOCATION_BURST" envDefault:"10"`

	SeedTerritories int     `env:"SEED_TERRITORIES" envDefault:"40"`
	SeedLat         float64 `env:"SEED_LAT" envDefault:"-12.0464"`
	SeedLng         float64 `env:"SEED_LNG" envDefault:"-77.0428"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.RunTick <= 0 || cfg.EnergyCheck <= 0 {
		return nil, fmt.Errorf("RUN_TICK and ENERGY_CHECK must be positive")
	}
	return &cfg, nil
}
