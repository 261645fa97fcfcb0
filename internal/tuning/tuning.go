// Package tuning loads the game balance file: energy pool, territory
// requirement scaling, action rewards, daily rewards and subscription tiers.
package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	Energy      Energy            `yaml:"energy"`
	Territory   Territory         `yaml:"territory"`
	Actions     map[string]Reward `yaml:"actions"`
	DailyReward DailyReward       `yaml:"daily_reward"`
	Progression Progression       `yaml:"progression"`
	Run         Run               `yaml:"run"`
	Tiers       map[string]Tier   `yaml:"tiers"`
}

type Energy struct {
	Max         int           `yaml:"max"`
	RegenRate   int           `yaml:"regen_rate"`
	RegenWindow time.Duration `yaml:"regen_window"`
}

type Territory struct {
	BaseDistanceKm  float64         `yaml:"base_distance_km"`
	BaseEnergyCost  int             `yaml:"base_energy_cost"`
	CapturedDefense int             `yaml:"captured_defense"`
	PaceThresholds  []PaceThreshold `yaml:"pace_thresholds"`
}

// PaceThreshold applies MinPace when defense strength is strictly above Above.
// Thresholds are checked in file order; the first match wins.
type PaceThreshold struct {
	Above   int    `yaml:"above"`
	MinPace string `yaml:"min_pace"`
}

type Reward struct {
	XP    int `yaml:"xp"`
	Coins int `yaml:"coins"`
	Gems  int `yaml:"gems"`
}

type DailyReward struct {
	BaseCoins      int `yaml:"base_coins"`
	CoinsPerStreak int `yaml:"coins_per_streak"`
	BaseXP         int `yaml:"base_xp"`
	XPPerStreak    int `yaml:"xp_per_streak"`
	BonusGems      int `yaml:"bonus_gems"`
	BonusStreak    int `yaml:"bonus_streak"`
}

type Progression struct {
	StartingLevel int `yaml:"starting_level"`
	XPPerLevel    int `yaml:"xp_per_level"`
	RunXPPerKm    int `yaml:"run_xp_per_km"`
	StartingCoins int `yaml:"starting_coins"`
	StartingGems  int `yaml:"starting_gems"`
}

type Run struct {
	NoiseThresholdM float64 `yaml:"noise_threshold_m"`
	Containment     string  `yaml:"containment"`
}

type Tier struct {
	EnergyMax int           `yaml:"energy_max"`
	Duration  time.Duration `yaml:"duration"`
	Benefits  []string      `yaml:"benefits"`
}

// Default returns the embedded balance file. It panics only if the embedded
// file itself is broken, which the package tests rule out.
func Default() Tuning {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tuning: %v", err))
	}
	return t
}

// Load reads a tuning file from path, or the embedded default when path is empty.
func Load(path string) (Tuning, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("reading tuning file: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw YAML against the tuning schema and decodes it.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := validate(raw); err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.Run.Containment == "" {
		t.Run.Containment = "bbox"
	}
	return t, nil
}

func validate(raw []byte) error {
	schema, err := jsonschema.CompileString("tuning.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compiling tuning schema: %w", err)
	}

	// Round-trip through JSON so the validator sees float64 numbers and
	// string-keyed objects only.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	return nil
}

// Reward returns the rewards configured for an action type.
func (t Tuning) Reward(action string) (Reward, bool) {
	r, ok := t.Actions[action]
	return r, ok
}

// Tier returns the subscription tier definition.
func (t Tuning) Tier(name string) (Tier, bool) {
	tier, ok := t.Tiers[name]
	return tier, ok
}
