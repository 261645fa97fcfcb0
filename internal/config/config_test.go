package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.RunTick != time.Second {
		t.Errorf("RunTick = %v, want 1s", cfg.RunTick)
	}
	if cfg.EnergyCheck != 30*time.Second {
		t.Errorf("EnergyCheck = %v, want 30s", cfg.EnergyCheck)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsNonPositiveTick(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RUN_TICK", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for RUN_TICK=0s")
	}
}
