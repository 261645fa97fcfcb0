// Package game holds a player's progression: energy, currencies, XP and
// levels, territory actions, premium tiers and daily rewards.
package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/territoryrun/internal/territory"
	"github.com/playperu/territoryrun/internal/tuning"
)

var (
	ErrInsufficientEnergy = errors.New("not enough energy")
	ErrUnknownAction      = errors.New("unknown action type")
	ErrInvalidTarget      = errors.New("action does not apply to this territory")
	ErrActionNotFound     = errors.New("action not found")
	ErrActionResolved     = errors.New("action already resolved")
	ErrUnknownTier        = errors.New("unknown subscription tier")
	ErrAlreadyCollected   = errors.New("daily reward already collected today")
)

// fortifyDelta is the defense gained by a successful fortify.
const fortifyDelta = 10

// actionHistory is how many resolved actions are kept; in-progress actions
// are never dropped.
const actionHistory = 50

// lowEnergyRatio triggers a low-energy event when a spend leaves the player at
// or below this share of max energy.
const lowEnergyRatio = 0.2

// Territories is the part of territory.Catalog the manager writes to.
type Territories interface {
	Get(id string) (territory.Territory, error)
	Claim(id, ownerID string, from territory.Status, defense int, now time.Time) (territory.Territory, error)
	Fortify(id, ownerID string, delta int) (territory.Territory, error)
	OwnedBy(playerID string) int
}

type EventKind string

const (
	EventLevelUp           EventKind = "level_up"
	EventTerritoryCaptured EventKind = "territory_captured"
	EventDailyReward       EventKind = "daily_reward"
	EventLowEnergy         EventKind = "low_energy"
	EventPremium           EventKind = "premium"
	EventActionFailed      EventKind = "action_failed"
)

// Event is something the player should be told about.
type Event struct {
	Kind    EventKind
	Title   string
	Message string
}

type Options struct {
	Now func() time.Time
	// OnEvent is called without the manager lock held.
	OnEvent func(Event)
}

// DailyReward is what CollectDailyReward credited. Streak is the streak value
// used for the calculation, before the increment.
type DailyReward struct {
	Coins  int `json:"coins"`
	XP     int `json:"xp"`
	Gems   int `json:"gems"`
	Streak int `json:"streak"`
}

// Manager owns one player's stats and active actions.
type Manager struct {
	tn      tuning.Tuning
	catalog Territories
	now     func() time.Time
	onEvent func(Event)

	mu      sync.Mutex
	stats   PlayerStats
	actions []Action
}

func NewManager(stats PlayerStats, catalog Territories, tn tuning.Tuning, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		tn:      tn,
		catalog: catalog,
		now:     opts.Now,
		onEvent: opts.OnEvent,
		stats:   stats.clone(),
	}
}

func (m *Manager) PlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.PlayerID
}

// Stats returns a copy of the player's stats. TerritoriesOwned is read from the
// catalog, since other players can take territories away.
func (m *Manager) Stats() PlayerStats {
	m.mu.Lock()
	s := m.stats.clone()
	m.mu.Unlock()
	s.TerritoriesOwned = m.catalog.OwnedBy(s.PlayerID)
	s.XPToNextLevel = s.Level * m.tn.Progression.XPPerLevel
	return s
}

// Snapshot returns stats and every recorded action for persistence.
func (m *Manager) Snapshot() (PlayerStats, []Action) {
	s := m.Stats()
	m.mu.Lock()
	defer m.mu.Unlock()
	return s, slices.Clone(m.actions)
}

// Restore replaces the recorded actions, e.g. after loading a snapshot.
func (m *Manager) Restore(actions []Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = slices.Clone(actions)
	m.pruneLocked()
}

// Actions returns all recorded actions, oldest first.
func (m *Manager) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.actions)
}

func (m *Manager) CalculateTerritoryRequirements(t territory.Territory) Requirements {
	return TerritoryRequirements(m.tn.Territory, t.DefenseStrength)
}

// CanPerformAction reports whether the player can pay for a. Paid tiers
// always can.
func (m *Manager) CanPerformAction(a Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(m.now())
	return m.canPerformLocked(a)
}

func (m *Manager) canPerformLocked(a Action) bool {
	return m.stats.Energy.Current >= a.Requirements.EnergyCost || m.stats.Premium()
}

// StartTerritoryAction validates and records a new action against a
// territory, spending energy on the free tier. On error nothing has changed.
func (m *Manager) StartTerritoryAction(typ ActionType, territoryID string) (Action, error) {
	if _, err := ParseActionType(string(typ)); err != nil {
		return Action{}, err
	}
	t, err := m.catalog.Get(territoryID)
	if err != nil {
		return Action{}, fmt.Errorf("loading territory %s: %w", territoryID, err)
	}

	m.mu.Lock()
	now := m.now()
	m.expireLocked(now)
	if t.For(m.stats.PlayerID).Status != typ.target() {
		m.mu.Unlock()
		return Action{}, fmt.Errorf("%w: %s on %s territory", ErrInvalidTarget, typ, t.For(m.stats.PlayerID).Status)
	}
	reward, _ := m.tn.Reward(string(typ))
	a := Action{
		ID:           uuid.NewString(),
		Type:         typ,
		TerritoryID:  territoryID,
		Requirements: TerritoryRequirements(m.tn.Territory, t.DefenseStrength),
		Rewards:      Rewards{XP: reward.XP, Coins: reward.Coins, Gems: reward.Gems},
		Status:       StatusPending,
		CreatedAt:    now,
	}
	if !m.canPerformLocked(a) {
		m.mu.Unlock()
		return Action{}, ErrInsufficientEnergy
	}

	var events []Event
	if !m.stats.Premium() {
		e := &m.stats.Energy
		e.Current -= a.Requirements.EnergyCost
		if float64(e.Current) <= lowEnergyRatio*float64(e.Max) {
			events = append(events, Event{
				Kind:    EventLowEnergy,
				Title:   "Low energy",
				Message: fmt.Sprintf("%d/%d energy left. It refills by %d every %s.", e.Current, e.Max, e.RegenRate, m.tn.Energy.RegenWindow),
			})
		}
	}
	a.Status = StatusInProgress
	m.actions = append(m.actions, a)
	m.mu.Unlock()

	m.emit(events)
	return a, nil
}

// CompleteAction resolves an in-progress action. A success credits the
// rewards and applies the action to the catalog; a failure only marks it.
func (m *Manager) CompleteAction(id string, success bool) (Action, error) {
	m.mu.Lock()
	i := slices.IndexFunc(m.actions, func(a Action) bool { return a.ID == id })
	if i < 0 {
		m.mu.Unlock()
		return Action{}, ErrActionNotFound
	}
	a := &m.actions[i]
	if a.Resolved() {
		m.mu.Unlock()
		return Action{}, ErrActionResolved
	}

	now := m.now()
	a.CompletedAt = &now
	if !success {
		a.Status = StatusFailed
		out := *a
		m.pruneLocked()
		m.mu.Unlock()
		return out, nil
	}

	// The territory may have changed hands since the action started.
	var (
		events []Event
		t      territory.Territory
		err    error
	)
	pid := m.stats.PlayerID
	switch a.Type {
	case ActionClaim, ActionAttack:
		t, err = m.catalog.Claim(a.TerritoryID, pid, a.Type.target(), m.tn.Territory.CapturedDefense, now)
		if err == nil {
			m.stats.TerritoriesCaptured++
			events = append(events, Event{
				Kind:    EventTerritoryCaptured,
				Title:   "Territory captured",
				Message: fmt.Sprintf("%s is now yours.", t.Name),
			})
		}
	case ActionFortify:
		t, err = m.catalog.Fortify(a.TerritoryID, pid, fortifyDelta)
	case ActionDefend:
		t, err = m.catalog.Get(a.TerritoryID)
		if err == nil && t.For(pid).Status != a.Type.target() {
			err = territory.ErrStatusChanged
		}
	}
	if errors.Is(err, territory.ErrStatusChanged) {
		a.Status = StatusFailed
		out := *a
		m.pruneLocked()
		m.mu.Unlock()
		m.emit([]Event{{
			Kind:    EventActionFailed,
			Title:   "Action failed",
			Message: fmt.Sprintf("The territory changed hands before your %s finished.", out.Type),
		}})
		return out, nil
	}
	if err != nil {
		a.CompletedAt = nil
		m.mu.Unlock()
		return Action{}, fmt.Errorf("%s on territory %s: %w", a.Type, a.TerritoryID, err)
	}
	a.Status = StatusCompleted
	m.stats.XP += a.Rewards.XP
	m.stats.Currencies.Coins += a.Rewards.Coins
	m.stats.Currencies.Gems += a.Rewards.Gems
	events = append(events, m.levelUpLocked()...)
	out := *a
	m.pruneLocked()
	m.mu.Unlock()

	m.emit(events)
	return out, nil
}

// pruneLocked drops the oldest resolved actions beyond actionHistory.
func (m *Manager) pruneLocked() {
	resolved := 0
	for _, a := range m.actions {
		if a.Resolved() {
			resolved++
		}
	}
	drop := resolved - actionHistory
	if drop <= 0 {
		return
	}
	m.actions = slices.DeleteFunc(m.actions, func(a Action) bool {
		if drop > 0 && a.Resolved() {
			drop--
			return true
		}
		return false
	})
}

// PurchasePremium switches the player to a paid tier for the tier's duration
// and raises the energy cap.
func (m *Manager) PurchasePremium(tier string) (Subscription, error) {
	def, ok := m.tn.Tier(tier)
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	m.mu.Lock()
	expires := m.now().Add(def.Duration)
	m.stats.Subscription = Subscription{
		Tier:      tier,
		ExpiresAt: &expires,
		Benefits:  slices.Clone(def.Benefits),
	}
	m.stats.Energy.Max = def.EnergyMax
	sub := m.stats.clone().Subscription
	m.mu.Unlock()

	m.emit([]Event{{
		Kind:    EventPremium,
		Title:   "Welcome to " + tier,
		Message: fmt.Sprintf("Your %s subscription is active until %s.", tier, expires.UTC().Format(time.DateOnly)),
	}})
	return sub, nil
}

// CollectDailyReward credits the reward for the current streak and bumps the
// streak. It can be collected once per UTC day; skipping a day resets the
// streak first.
func (m *Manager) CollectDailyReward() (DailyReward, error) {
	m.mu.Lock()
	now := m.now()
	today := day(now)
	if last := m.stats.LastDailyReward; last != nil {
		switch gap := today.Sub(day(*last)); {
		case gap < 24*time.Hour:
			m.mu.Unlock()
			return DailyReward{}, ErrAlreadyCollected
		case gap > 24*time.Hour:
			m.stats.DailyStreak = 0
		}
	}

	r := dailyReward(m.tn.DailyReward, m.stats.DailyStreak)
	m.stats.Currencies.Coins += r.Coins
	m.stats.Currencies.Gems += r.Gems
	m.stats.XP += r.XP
	m.stats.DailyStreak++
	m.stats.LastDailyReward = &now

	events := []Event{{
		Kind:    EventDailyReward,
		Title:   "Daily reward",
		Message: fmt.Sprintf("+%d coins, +%d XP, +%d gems. Streak: %d days.", r.Coins, r.XP, r.Gems, m.stats.DailyStreak),
	}}
	events = append(events, m.levelUpLocked()...)
	m.mu.Unlock()

	m.emit(events)
	return r, nil
}

func dailyReward(cfg tuning.DailyReward, streak int) DailyReward {
	r := DailyReward{
		Coins:  cfg.BaseCoins + streak*cfg.CoinsPerStreak,
		XP:     cfg.BaseXP + streak*cfg.XPPerStreak,
		Streak: streak,
	}
	if streak >= cfg.BonusStreak {
		r.Gems = cfg.BonusGems
	}
	return r
}

func day(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// RegenerateEnergy adds RegenRate for every whole regen window elapsed since
// the last regen, capped at Max, and returns the amount gained.
func (m *Manager) RegenerateEnergy() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.expireLocked(now)

	if m.tn.Energy.RegenWindow <= 0 {
		return 0
	}
	e := &m.stats.Energy
	windows := int(now.Sub(e.LastRegen) / m.tn.Energy.RegenWindow)
	if windows <= 0 {
		return 0
	}
	before := e.Current
	e.Current = min(e.Max, e.Current+windows*e.RegenRate)
	e.LastRegen = now
	return max(0, e.Current-before)
}

// RunRegen calls RegenerateEnergy every interval until ctx is done.
func (m *Manager) RunRegen(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.RegenerateEnergy()
		}
	}
}

// RecordRun credits a finished run of the given distance in meters and
// returns the XP earned.
func (m *Manager) RecordRun(distance float64) int {
	if distance < 0 {
		distance = 0
	}
	m.mu.Lock()
	xp := int(distance / 1000 * float64(m.tn.Progression.RunXPPerKm))
	m.stats.TotalDistance += distance
	m.stats.RunsCompleted++
	m.stats.XP += xp
	events := m.levelUpLocked()
	m.mu.Unlock()

	m.emit(events)
	return xp
}

func (m *Manager) levelUpLocked() []Event {
	var events []Event
	per := m.tn.Progression.XPPerLevel
	for per > 0 && m.stats.XP >= m.stats.Level*per {
		m.stats.XP -= m.stats.Level * per
		m.stats.Level++
		events = append(events, Event{
			Kind:    EventLevelUp,
			Title:   "Level up!",
			Message: fmt.Sprintf("You reached level %d.", m.stats.Level),
		})
	}
	return events
}

// expireLocked drops an expired paid tier back to free.
func (m *Manager) expireLocked(now time.Time) {
	sub := m.stats.Subscription
	if !m.stats.Premium() || sub.ExpiresAt == nil || now.Before(*sub.ExpiresAt) {
		return
	}
	m.stats.Subscription = Subscription{Tier: TierFree, Benefits: []string{}}
	m.stats.Energy.Max = m.tn.Energy.Max
	m.stats.Energy.Current = min(m.stats.Energy.Current, m.stats.Energy.Max)
}

func (m *Manager) emit(events []Event) {
	if m.onEvent == nil {
		return
	}
	for _, e := range events {
		m.onEvent(e)
	}
}
