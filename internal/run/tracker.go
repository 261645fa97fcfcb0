// Package run tracks a single GPS run: elapsed time, route, distance, pace and
// the territories entered along the way.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/territory"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

var (
	ErrPermissionDenied = errors.New("location permission is required to start a run")
	ErrAlreadyActive    = errors.New("a run is already in progress")
	ErrNotRunning       = errors.New("no run in progress")
	ErrNotPaused        = errors.New("run is not paused")
)

// Session is the live state of one run. Distance is in meters, Pace in
// minutes per kilometer.
type Session struct {
	StartTime          time.Time      `json:"startTime"`
	Route              []geo.Location `json:"route"`
	TerritoriesClaimed []string       `json:"territoriesClaimed"`
	Distance           float64        `json:"distance"`
	Duration           time.Duration  `json:"duration"`
	Pace               float64        `json:"pace"`
	IsRunning          bool           `json:"isRunning"`
	IsPaused           bool           `json:"isPaused"`
}

func (s Session) clone() Session {
	s.Route = append([]geo.Location(nil), s.Route...)
	s.TerritoriesClaimed = append([]string(nil), s.TerritoriesClaimed...)
	return s
}

// LocationSource is the part of geolocation.Source the tracker needs.
type LocationSource interface {
	RequestPermission(ctx context.Context) (bool, error)
	StartWatching()
	StopWatching()
	Location() (geo.Location, bool)
}

type Options struct {
	Tick           time.Duration // default 1s
	NoiseThreshold float64       // meters, default 2
	Detector       territory.Detector
	Now            func() time.Time
	// OnUpdate receives a copy of the session after every change. It runs
	// without the tracker lock held and never sees an older copy after a
	// newer one.
	OnUpdate func(Session)
}

type Tracker struct {
	src  LocationSource
	opts Options

	mu          sync.Mutex
	state       State
	session     Session
	pausedAt    time.Time
	pausedTotal time.Duration
	stop        chan struct{}
	seq         uint64

	// pubMu orders OnUpdate calls; published is the seq of the last one.
	pubMu     sync.Mutex
	published uint64
}

// update is a session copy stamped with the order it was taken in.
type update struct {
	seq     uint64
	session Session
}

func NewTracker(src LocationSource, opts Options) *Tracker {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.NoiseThreshold <= 0 {
		opts.NoiseThreshold = 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{src: src, opts: opts, state: StateIdle}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.clone()
}

// StartRun requires location permission, resets the session and starts
// ticking. Starting from stopped discards the previous session.
func (t *Tracker) StartRun(ctx context.Context) error {
	if s := t.State(); s == StateRunning || s == StatePaused {
		return ErrAlreadyActive
	}

	granted, err := t.src.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting location permission: %w", err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	t.mu.Lock()
	if t.state == StateRunning || t.state == StatePaused {
		t.mu.Unlock()
		return ErrAlreadyActive
	}
	t.session = Session{
		StartTime: t.opts.Now(),
		IsRunning: true,
	}
	t.pausedTotal = 0
	t.state = StateRunning
	t.src.StartWatching()
	t.startLoopLocked()
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
	return nil
}

func (t *Tracker) PauseRun() error {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return ErrNotRunning
	}
	t.stopLoopLocked()
	t.pausedAt = t.opts.Now()
	t.state = StatePaused
	t.session.IsPaused = true
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
	return nil
}

func (t *Tracker) ResumeRun() error {
	t.mu.Lock()
	if t.state != StatePaused {
		t.mu.Unlock()
		return ErrNotPaused
	}
	t.pausedTotal += t.opts.Now().Sub(t.pausedAt)
	t.state = StateRunning
	t.session.IsPaused = false
	t.startLoopLocked()
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
	return nil
}

// StopRun ends the run and stops the location watch. The route and distance
// stay readable until the next StartRun.
func (t *Tracker) StopRun() (Session, error) {
	t.mu.Lock()
	if t.state != StateRunning && t.state != StatePaused {
		t.mu.Unlock()
		return Session{}, ErrNotRunning
	}
	now := t.opts.Now()
	if t.state == StatePaused {
		t.pausedTotal += now.Sub(t.pausedAt)
	}
	t.stopLoopLocked()
	t.src.StopWatching()
	t.session.Duration = now.Sub(t.session.StartTime) - t.pausedTotal
	t.session.Pace = pace(t.session.Duration, t.session.Distance)
	t.session.IsRunning = false
	t.session.IsPaused = false
	t.state = StateStopped
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
	return u.session, nil
}

// Tick folds the latest location into the route. The tick loop calls it once
// per interval while running; it is a no-op in any other state.
func (t *Tracker) Tick() {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return
	}
	s := &t.session
	s.Duration = t.opts.Now().Sub(s.StartTime) - t.pausedTotal

	if loc, ok := t.src.Location(); ok {
		if n := len(s.Route); n == 0 {
			s.Route = append(s.Route, loc)
		} else if d := geo.Distance(s.Route[n-1], loc); d > t.opts.NoiseThreshold {
			s.Route = append(s.Route, loc)
			s.Distance += d
		}
	}
	s.Pace = pace(s.Duration, s.Distance)
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
}

// ClaimTerritory records every territory containing the current location that
// this run has not entered yet, and returns the new ids.
func (t *Tracker) ClaimTerritory(territories []territory.Territory) ([]string, error) {
	t.mu.Lock()
	if t.state != StateRunning && t.state != StatePaused {
		t.mu.Unlock()
		return nil, ErrNotRunning
	}
	loc, ok := t.src.Location()
	if !ok {
		t.mu.Unlock()
		return nil, nil
	}
	ids := t.opts.Detector.NewlyEntered(loc, territories, t.session.TerritoriesClaimed)
	if len(ids) == 0 {
		t.mu.Unlock()
		return nil, nil
	}
	t.session.TerritoriesClaimed = append(t.session.TerritoriesClaimed, ids...)
	u := t.updateLocked()
	t.mu.Unlock()

	t.notify(u)
	return ids, nil
}

// Close stops the tick loop and the location watch without touching the
// session. Safe to call in any state.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLoopLocked()
	t.src.StopWatching()
	if t.state == StateRunning || t.state == StatePaused {
		t.session.IsRunning = false
		t.session.IsPaused = false
		t.state = StateStopped
	}
}

func (t *Tracker) startLoopLocked() {
	stop := make(chan struct{})
	t.stop = stop
	go func() {
		ticker := time.NewTicker(t.opts.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
}

func (t *Tracker) stopLoopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Tracker) updateLocked() update {
	t.seq++
	return update{seq: t.seq, session: t.session.clone()}
}

// notify drops updates taken before the last one delivered, so a tick that
// raced a state change cannot overwrite it.
func (t *Tracker) notify(u update) {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()
	if u.seq <= t.published {
		return
	}
	t.published = u.seq
	if t.opts.OnUpdate != nil {
		t.opts.OnUpdate(u.session)
	}
}

// pace is minutes per kilometer, 0 before any distance is covered.
func pace(d time.Duration, meters float64) float64 {
	if meters <= 0 {
		return 0
	}
	return d.Minutes() / (meters / 1000)
}
