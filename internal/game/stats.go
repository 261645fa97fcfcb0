package game

import (
	"maps"
	"time"

	"github.com/playperu/territoryrun/internal/tuning"
)

const TierFree = "free"

type Energy struct {
	Current   int       `json:"current"`
	Max       int       `json:"max"`
	LastRegen time.Time `json:"lastRegen"`
	// RegenRate is energy gained per regen window (5 minutes by default).
	RegenRate int `json:"regenRate"`
}

type Currencies struct {
	Coins       int            `json:"coins"`
	Gems        int            `json:"gems"`
	BrandPoints map[string]int `json:"brandPoints"`
}

type Subscription struct {
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Benefits  []string   `json:"benefits"`
}

// PlayerStats is a player's progression. TotalDistance is in meters.
type PlayerStats struct {
	PlayerID            string       `json:"playerId"`
	Name                string       `json:"name"`
	Level               int          `json:"level"`
	XP                  int          `json:"xp"`
	XPToNextLevel       int          `json:"xpToNextLevel"`
	Currencies          Currencies   `json:"currencies"`
	Energy              Energy       `json:"energy"`
	TerritoriesOwned    int          `json:"territoriesOwned"`
	TerritoriesCaptured int          `json:"territoriesCaptured"`
	TotalDistance       float64      `json:"totalDistance"`
	RunsCompleted       int          `json:"runsCompleted"`
	DailyStreak         int          `json:"dailyStreak"`
	LastDailyReward     *time.Time   `json:"lastDailyReward,omitempty"`
	Subscription        Subscription `json:"subscription"`
	CreatedAt           time.Time    `json:"createdAt"`
}

// NewPlayer returns the starting stats for a freshly registered player.
func NewPlayer(id, name string, tn tuning.Tuning, now time.Time) PlayerStats {
	return PlayerStats{
		PlayerID:      id,
		Name:          name,
		Level:         tn.Progression.StartingLevel,
		XPToNextLevel: tn.Progression.StartingLevel * tn.Progression.XPPerLevel,
		Currencies: Currencies{
			Coins:       tn.Progression.StartingCoins,
			Gems:        tn.Progression.StartingGems,
			BrandPoints: map[string]int{},
		},
		Energy: Energy{
			Current:   tn.Energy.Max,
			Max:       tn.Energy.Max,
			LastRegen: now,
			RegenRate: tn.Energy.RegenRate,
		},
		Subscription: Subscription{Tier: TierFree, Benefits: []string{}},
		CreatedAt:    now,
	}
}

func (s PlayerStats) Premium() bool {
	return s.Subscription.Tier != "" && s.Subscription.Tier != TierFree
}

func (s PlayerStats) clone() PlayerStats {
	s.Currencies.BrandPoints = maps.Clone(s.Currencies.BrandPoints)
	if s.Currencies.BrandPoints == nil {
		s.Currencies.BrandPoints = map[string]int{}
	}
	s.Subscription.Benefits = append([]string{}, s.Subscription.Benefits...)
	if s.LastDailyReward != nil {
		t := *s.LastDailyReward
		s.LastDailyReward = &t
	}
	if s.Subscription.ExpiresAt != nil {
		t := *s.Subscription.ExpiresAt
		s.Subscription.ExpiresAt = &t
	}
	return s
}
