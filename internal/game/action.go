package game

import (
	"fmt"
	"time"

	"github.com/playperu/territoryrun/internal/territory"
	"github.com/playperu/territoryrun/internal/tuning"
)

type ActionType string

const (
	ActionClaim   ActionType = "claim"
	ActionAttack  ActionType = "attack"
	ActionDefend  ActionType = "defend"
	ActionFortify ActionType = "fortify"
)

func ParseActionType(s string) (ActionType, error) {
	switch t := ActionType(s); t {
	case ActionClaim, ActionAttack, ActionDefend, ActionFortify:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// target is the territory status an action applies to.
func (t ActionType) target() territory.Status {
	switch t {
	case ActionClaim:
		return territory.StatusNeutral
	case ActionAttack:
		return territory.StatusEnemy
	default:
		return territory.StatusOwned
	}
}

type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusInProgress ActionStatus = "in-progress"
	StatusCompleted  ActionStatus = "completed"
	StatusFailed     ActionStatus = "failed"
)

// Requirements gate a territory action. Distance is in kilometers; MinPace is
// "m:ss" per kilometer or empty when there is none.
type Requirements struct {
	EnergyCost int     `json:"energyCost"`
	Distance   float64 `json:"distance"`
	MinPace    string  `json:"minPace,omitempty"`
}

type Rewards struct {
	XP    int `json:"xp"`
	Coins int `json:"coins"`
	Gems  int `json:"gems,omitempty"`
}

type Action struct {
	ID           string       `json:"id"`
	Type         ActionType   `json:"type"`
	TerritoryID  string       `json:"territoryId"`
	Requirements Requirements `json:"requirements"`
	Rewards      Rewards      `json:"rewards"`
	Status       ActionStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

func (a Action) Resolved() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// TerritoryRequirements scales the base distance and energy cost linearly with
// defense strength: factor = 1 + defense/100.
func TerritoryRequirements(tn tuning.Territory, defense int) Requirements {
	defense = max(0, min(100, defense))
	req := Requirements{
		Distance: tn.BaseDistanceKm * (1 + float64(defense)/100),
		// ceil(base * (100+defense) / 100) in integers so 10 * 1.1 stays 11.
		EnergyCost: (tn.BaseEnergyCost*(100+defense) + 99) / 100,
	}
	for _, th := range tn.PaceThresholds {
		if defense > th.Above {
			req.MinPace = th.MinPace
			break
		}
	}
	return req
}
