package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/playperu/territoryrun/internal/archive"
	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/geolocation"
	"github.com/playperu/territoryrun/internal/notify"
	"github.com/playperu/territoryrun/internal/run"
	"github.com/playperu/territoryrun/internal/store"
	"github.com/playperu/territoryrun/internal/territory"
	"github.com/playperu/territoryrun/internal/tuning"
)

const maxNameLen = 32

var ErrInvalidName = fmt.Errorf("name must be 1-%d characters", maxNameLen)

type HubOptions struct {
	RunTick       time.Duration
	LocationRate  float64
	LocationBurst int
	Now           func() time.Time
}

// Hub keeps one live Session per player that has talked to the server since
// startup, loading it from the store on first use.
type Hub struct {
	store    *store.DocStore
	catalog  *territory.Catalog
	tuning   tuning.Tuning
	broker   *Broker
	archive  *archive.Writer
	logger   *slog.Logger
	opts     HubOptions
	detector territory.Detector

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Session is a loaded player: game state, notifications, the location feed
// their device pushes into and the run tracker reading from it.
type Session struct {
	ID       string
	Game     *game.Manager
	Notes    *notify.List
	Feed     *geolocation.Feed
	Location *geolocation.Source
	Tracker  *run.Tracker

	limiter *rate.Limiter

	mu  sync.Mutex
	rec store.Player
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Name
}

// NewHub wires the shared pieces. arch may be nil to skip archiving.
func NewHub(st *store.DocStore, catalog *territory.Catalog, tn tuning.Tuning, broker *Broker, arch *archive.Writer, logger *slog.Logger, opts HubOptions) *Hub {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocationRate <= 0 {
		opts.LocationRate = 5
	}
	if opts.LocationBurst <= 0 {
		opts.LocationBurst = 10
	}
	mode, err := territory.ParseContainment(tn.Run.Containment)
	if err != nil {
		logger.Warn("unknown containment mode, using bbox", "mode", tn.Run.Containment)
	}
	return &Hub{
		store:    st,
		catalog:  catalog,
		tuning:   tn,
		broker:   broker,
		archive:  arch,
		logger:   logger,
		opts:     opts,
		detector: territory.Detector{Mode: mode},
		sessions: make(map[string]*Session),
	}
}

func (h *Hub) Catalog() *territory.Catalog { return h.catalog }
func (h *Hub) Tuning() tuning.Tuning        { return h.tuning }
func (h *Hub) Broker() *Broker              { return h.broker }

// Register creates a player with the starting stats.
func (h *Hub) Register(ctx context.Context, name, password string) (store.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return store.Player{}, ErrInvalidName
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.Player{}, err
	}

	now := h.opts.Now()
	id := uuid.NewString()
	p := store.Player{
		ID:            id,
		Name:          name,
		PasswordHash:  hash,
		Stats:         game.NewPlayer(id, name, h.tuning, now),
		Actions:       []game.Action{},
		Notifications: []notify.Notification{},
		CreatedAt:     now,
	}
	if err := h.store.CreatePlayer(ctx, p); err != nil {
		return store.Player{}, err
	}
	h.logger.Info("player registered", "player_id", id)
	return p, nil
}

// Login checks credentials and returns the player.
func (h *Hub) Login(ctx context.Context, name, password string) (store.Player, error) {
	p, err := h.store.PlayerByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, store.ErrNotFound) {
		return store.Player{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return store.Player{}, err
	}
	if err := auth.CheckPassword(p.PasswordHash, password); err != nil {
		return store.Player{}, err
	}
	return p, nil
}

func (h *Hub) Get(ctx context.Context, playerID string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[playerID]
	h.mu.RUnlock()
	if ok {
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double-check after acquiring write lock.
	if s, ok := h.sessions[playerID]; ok {
		return s, nil
	}

	rec, err := h.store.Player(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading player %q: %w", playerID, err)
	}
	s = h.open(rec)
	h.sessions[playerID] = s
	return s, nil
}

func (h *Hub) open(rec store.Player) *Session {
	id := rec.ID
	s := &Session{
		ID:      id,
		rec:     rec,
		limiter: rate.NewLimiter(rate.Limit(h.opts.LocationRate), h.opts.LocationBurst),
	}
	s.Notes = notify.NewList(h.opts.Now, func(n notify.Notification) {
		h.broker.Publish(id, Event{Type: eventNotification, Data: n})
	})
	s.Notes.Load(rec.Notifications)

	s.Game = game.NewManager(rec.Stats, h.catalog, h.tuning, game.Options{
		Now: h.opts.Now,
		OnEvent: func(e game.Event) {
			s.Notes.Add(noteKind(e.Kind), e.Title, e.Message)
		},
	})
	s.Game.Restore(rec.Actions)

	s.Feed = geolocation.NewFeed()
	s.Location = geolocation.NewSource(s.Feed, geolocation.DefaultOptions)
	s.Tracker = run.NewTracker(s.Location, run.Options{
		Tick:           h.opts.RunTick,
		NoiseThreshold: h.tuning.Run.NoiseThresholdM,
		Detector:       h.detector,
		Now:            h.opts.Now,
		OnUpdate: func(sess run.Session) {
			h.broker.Publish(id, Event{Type: eventRun, Data: sess})
		},
	})
	return s
}

func noteKind(k game.EventKind) notify.Kind {
	switch k {
	case game.EventLevelUp:
		return notify.KindAchievement
	case game.EventTerritoryCaptured:
		return notify.KindTerritory
	case game.EventDailyReward, game.EventPremium:
		return notify.KindReward
	case game.EventLowEnergy, game.EventActionFailed:
		return notify.KindWarning
	}
	return notify.KindInfo
}

// Save writes the session's game state and notifications back to the store.
func (h *Hub) Save(ctx context.Context, s *Session) error {
	stats, actions := s.Game.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Stats = stats
	s.rec.Actions = actions
	s.rec.Notifications = s.Notes.List()
	if err := h.store.SavePlayer(ctx, s.rec); err != nil {
		return fmt.Errorf("saving player %s: %w", s.ID, err)
	}
	return nil
}

// SaveTerritory persists a territory after an ownership or defense change and
// tells every connected player.
func (h *Hub) SaveTerritory(ctx context.Context, id string) error {
	t, err := h.catalog.Get(id)
	if err != nil {
		return err
	}
	if err := h.store.SaveTerritory(ctx, t); err != nil {
		return fmt.Errorf("saving territory %s: %w", id, err)
	}
	h.broker.PublishAll(Event{Type: eventTerritory, Data: t})
	return nil
}

// FinishRun credits a stopped run, stores it and appends it to the archive.
func (h *Hub) FinishRun(ctx context.Context, s *Session, sess run.Session) (store.Run, error) {
	xp := s.Game.RecordRun(sess.Distance)
	r := store.Run{
		ID:         uuid.NewString(),
		PlayerID:   s.ID,
		Session:    sess,
		XP:         xp,
		FinishedAt: h.opts.Now(),
	}
	if err := h.store.SaveRun(ctx, r); err != nil {
		return store.Run{}, fmt.Errorf("saving run: %w", err)
	}
	if h.archive != nil {
		if err := h.archive.Write(r); err != nil {
			h.logger.Error("archiving run failed", "run_id", r.ID, "error", err)
		}
	}
	s.Notes.Add(notify.KindInfo, "Run saved",
		fmt.Sprintf("%.2f km in %s, +%d XP.", sess.Distance/1000, sess.Duration.Round(time.Second), xp))

	if err := h.Save(ctx, s); err != nil {
		return store.Run{}, err
	}
	h.logger.Info("run finished", "player_id", s.ID, "run_id", r.ID, "distance_m", sess.Distance, "territories", len(sess.TerritoriesClaimed))
	return r, nil
}

// RunEnergyRegen regenerates energy for every loaded player each interval
// until ctx is done, publishing fresh state to players that gained any.
func (h *Hub) RunEnergyRegen(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.regenerate()
		}
	}
}

func (h *Hub) regenerate() {
	for _, s := range h.loaded() {
		if gained := s.Game.RegenerateEnergy(); gained > 0 {
			h.logger.Debug("energy regenerated", "player_id", s.ID, "gained", gained)
			h.broker.Publish(s.ID, Event{Type: eventState, Data: s.Game.Stats()})
		}
	}
}

func (h *Hub) loaded() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Close stops every tracker and saves every loaded player.
func (h *Hub) Close(ctx context.Context) error {
	var errs []error
	for _, s := range h.loaded() {
		s.Tracker.Close()
		if err := h.Save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	h.mu.Lock()
	clear(h.sessions)
	h.mu.Unlock()
	return errors.Join(errs...)
}
