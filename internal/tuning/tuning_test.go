package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	tn := Default()

	if tn.Energy.Max != 100 || tn.Energy.RegenRate != 5 {
		t.Errorf("energy = %+v, want max 100 regen 5", tn.Energy)
	}
	if tn.Energy.RegenWindow != 5*time.Minute {
		t.Errorf("regen window = %v, want 5m", tn.Energy.RegenWindow)
	}
	if tn.Territory.CapturedDefense != 50 {
		t.Errorf("captured defense = %d, want 50", tn.Territory.CapturedDefense)
	}
	if len(tn.Territory.PaceThresholds) != 2 || tn.Territory.PaceThresholds[0].MinPace != "6:30" {
		t.Errorf("pace thresholds = %+v", tn.Territory.PaceThresholds)
	}
	if tn.Run.NoiseThresholdM != 2 || tn.Run.Containment != "bbox" {
		t.Errorf("run = %+v", tn.Run)
	}

	premium, ok := tn.Tier("premium")
	if !ok {
		t.Fatal("premium tier missing")
	}
	if premium.EnergyMax != 999 || premium.Duration != 30*24*time.Hour {
		t.Errorf("premium = %+v", premium)
	}

	for _, action := range []string{"claim", "attack", "defend", "fortify"} {
		if _, ok := tn.Reward(action); !ok {
			t.Errorf("reward for %q missing", action)
		}
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	tn, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tn.Progression.XPPerLevel != 1000 {
		t.Errorf("xp per level = %d, want 1000", tn.Progression.XPPerLevel)
	}
}

func TestLoadFile(t *testing.T) {
	raw := strings.Replace(string(defaultYAML), "max: 100", "max: 120", 1)
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	tn, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tn.Energy.Max != 120 {
		t.Errorf("energy max = %d, want 120", tn.Energy.Max)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"zero energy max", "max: 100", "max: 0"},
		{"bad duration", "regen_window: 5m", "regen_window: five minutes"},
		{"bad pace", `min_pace: "6:30"`, `min_pace: "6:75"`},
		{"unknown containment", "containment: bbox", "containment: circle"},
		{"free tier defined", "  premium:\n", "  free:\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := strings.Replace(string(defaultYAML), tt.from, tt.to, 1)
			if raw == string(defaultYAML) {
				t.Fatalf("replacement %q not applied", tt.from)
			}
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
