package run

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/territory"
)

type fakeSource struct {
	mu        sync.Mutex
	granted   bool
	permErr   error
	loc       *geo.Location
	watching  bool
	startCall int
}

func (f *fakeSource) RequestPermission(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted, f.permErr
}

func (f *fakeSource) StartWatching() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watching = true
	f.startCall++
}

func (f *fakeSource) StopWatching() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watching = false
}

func (f *fakeSource) Location() (geo.Location, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loc == nil {
		return geo.Location{}, false
	}
	return *f.loc, true
}

func (f *fakeSource) set(l geo.Location) {
	f.mu.Lock()
	f.loc = &l
	f.mu.Unlock()
}

func (f *fakeSource) isWatching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watching
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestTracker returns a tracker whose loop never fires on its own; tests
// drive it with Tick.
func newTestTracker(t *testing.T) (*Tracker, *fakeSource, *fakeClock) {
	t.Helper()
	src := &fakeSource{granted: true}
	clock := &fakeClock{now: time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)}
	tr := NewTracker(src, Options{Tick: time.Hour, Now: clock.Now})
	t.Cleanup(tr.Close)
	return tr, src, clock
}

func TestStartRequiresPermission(t *testing.T) {
	tr, src, _ := newTestTracker(t)
	src.granted = false

	if err := tr.StartRun(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("StartRun = %v, want ErrPermissionDenied", err)
	}
	if tr.State() != StateIdle {
		t.Errorf("state = %s, want idle", tr.State())
	}
	if src.isWatching() {
		t.Error("should not watch without permission")
	}

	src.permErr = errors.New("timed out")
	if err := tr.StartRun(context.Background()); err == nil || errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("StartRun = %v, want wrapped permission error", err)
	}
}

func TestRightTriangleDistance(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	a := geo.Location{Lat: 0, Lng: 0}
	b := geo.Location{Lat: 0.001, Lng: 0}
	c := geo.Location{Lat: 0.001, Lng: 0.001}

	src.set(a)
	if err := tr.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	var last float64
	for _, p := range []geo.Location{a, b, c} {
		src.set(p)
		clock.Advance(time.Second)
		tr.Tick()

		s := tr.Session()
		if s.Distance < last {
			t.Fatalf("distance decreased: %.3f -> %.3f", last, s.Distance)
		}
		last = s.Distance
	}

	s := tr.Session()
	want := geo.Distance(a, b) + geo.Distance(b, c)
	if math.Abs(s.Distance-want) > 1e-9 {
		t.Errorf("distance = %.6f, want %.6f", s.Distance, want)
	}
	if math.Abs(s.Distance-222.39) > 0.05 {
		t.Errorf("distance = %.3f, want ≈222.39 along both legs", s.Distance)
	}
	if len(s.Route) != 3 {
		t.Errorf("route has %d points, want 3", len(s.Route))
	}
}

func TestHypotenuseDistance(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	a := geo.Location{Lat: 0, Lng: 0}
	mid := geo.Location{Lat: 0.0005, Lng: 0.0005}
	c := geo.Location{Lat: 0.001, Lng: 0.001}

	src.set(a)
	tr.StartRun(context.Background())
	for _, p := range []geo.Location{a, mid, c} {
		src.set(p)
		clock.Advance(time.Second)
		tr.Tick()
	}

	if d := tr.Session().Distance; math.Abs(d-157.25) > 0.05 {
		t.Errorf("distance = %.3f, want ≈157.25", d)
	}
}

func TestNoiseFilter(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	start := geo.Location{Lat: -12.05, Lng: -77.04}

	src.set(start)
	tr.StartRun(context.Background())
	tr.Tick()

	src.set(geo.Offset(start, 1.5, 0))
	clock.Advance(time.Second)
	tr.Tick()

	s := tr.Session()
	if len(s.Route) != 1 || s.Distance != 0 {
		t.Fatalf("jitter accepted: route=%d distance=%.3f", len(s.Route), s.Distance)
	}

	src.set(geo.Offset(start, 5, 0))
	clock.Advance(time.Second)
	tr.Tick()

	s = tr.Session()
	if len(s.Route) != 2 {
		t.Fatalf("route has %d points, want 2", len(s.Route))
	}
	if math.Abs(s.Distance-5) > 0.01 {
		t.Errorf("distance = %.3f, want 5 (measured from the last accepted point)", s.Distance)
	}
}

func TestPaceZeroWithoutDistance(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	src.set(geo.Location{Lat: 1, Lng: 1})
	tr.StartRun(context.Background())

	for range 5 {
		clock.Advance(time.Minute)
		tr.Tick()
	}

	s := tr.Session()
	if s.Duration != 5*time.Minute {
		t.Errorf("duration = %v, want 5m", s.Duration)
	}
	if s.Pace != 0 {
		t.Errorf("pace = %v, want 0 at zero distance", s.Pace)
	}
}

func TestPace(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	start := geo.Location{Lat: 0, Lng: 0}
	src.set(start)
	tr.StartRun(context.Background())
	tr.Tick()

	// 1 km in 6 minutes.
	src.set(geo.Offset(start, 1000, 0))
	clock.Advance(6 * time.Minute)
	tr.Tick()

	if p := tr.Session().Pace; math.Abs(p-6) > 0.01 {
		t.Errorf("pace = %.3f, want 6 min/km", p)
	}
}

func TestPauseResumeStop(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	start := geo.Location{Lat: 0, Lng: 0}
	src.set(start)

	if err := tr.PauseRun(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("PauseRun before start = %v", err)
	}

	tr.StartRun(context.Background())
	if err := tr.StartRun(context.Background()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second StartRun = %v, want ErrAlreadyActive", err)
	}
	tr.Tick()
	src.set(geo.Offset(start, 100, 0))
	clock.Advance(time.Minute)
	tr.Tick()

	if err := tr.ResumeRun(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("ResumeRun while running = %v", err)
	}
	if err := tr.PauseRun(); err != nil {
		t.Fatalf("PauseRun: %v", err)
	}
	if s := tr.Session(); !s.IsPaused || !s.IsRunning || tr.State() != StatePaused {
		t.Fatalf("after pause: %+v state=%s", s, tr.State())
	}

	// Movement while paused is ignored.
	src.set(geo.Offset(start, 500, 0))
	clock.Advance(10 * time.Minute)
	tr.Tick()
	if d := tr.Session().Distance; math.Abs(d-100) > 0.01 {
		t.Fatalf("distance changed while paused: %.3f", d)
	}

	if err := tr.ResumeRun(); err != nil {
		t.Fatalf("ResumeRun: %v", err)
	}
	clock.Advance(time.Minute)
	tr.Tick()
	s := tr.Session()
	if s.Duration != 2*time.Minute {
		t.Errorf("duration = %v, want 2m excluding the pause", s.Duration)
	}
	if math.Abs(s.Distance-500) > 0.05 {
		t.Errorf("distance = %.3f, want 500", s.Distance)
	}

	final, err := tr.StopRun()
	if err != nil {
		t.Fatalf("StopRun: %v", err)
	}
	if final.IsRunning || final.IsPaused || tr.State() != StateStopped {
		t.Errorf("after stop: %+v state=%s", final, tr.State())
	}
	if len(final.Route) != 3 || math.Abs(final.Distance-500) > 0.05 {
		t.Errorf("stop discarded state: route=%d distance=%.3f", len(final.Route), final.Distance)
	}
	if src.isWatching() {
		t.Error("stop should end the location watch")
	}
	if _, err := tr.StopRun(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second StopRun = %v", err)
	}

	// A new run starts from zero.
	if err := tr.StartRun(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if s := tr.Session(); s.Distance != 0 || len(s.Route) != 0 {
		t.Errorf("restart kept state: %+v", s)
	}
}

func TestStopWhilePausedExcludesPause(t *testing.T) {
	tr, src, clock := newTestTracker(t)
	src.set(geo.Location{})
	tr.StartRun(context.Background())
	clock.Advance(3 * time.Minute)
	tr.PauseRun()
	clock.Advance(time.Hour)

	s, err := tr.StopRun()
	if err != nil {
		t.Fatal(err)
	}
	if s.Duration != 3*time.Minute {
		t.Errorf("duration = %v, want 3m", s.Duration)
	}
}

func TestClaimTerritory(t *testing.T) {
	tr, src, _ := newTestTracker(t)
	territories := []territory.Territory{
		{ID: "t1", Polygon: []geo.Location{{Lat: 0, Lng: 0}, {Lat: 0.001, Lng: 0}, {Lat: 0.001, Lng: 0.001}, {Lat: 0, Lng: 0.001}}},
		{ID: "t2", Polygon: []geo.Location{{Lat: 0.01, Lng: 0.01}, {Lat: 0.011, Lng: 0.01}, {Lat: 0.011, Lng: 0.011}, {Lat: 0.01, Lng: 0.011}}},
	}

	if _, err := tr.ClaimTerritory(territories); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("claim before start = %v", err)
	}

	src.set(geo.Location{Lat: 0.0005, Lng: 0.0005})
	tr.StartRun(context.Background())

	ids, err := tr.ClaimTerritory(territories)
	if err != nil || len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("first claim = %v, %v", ids, err)
	}
	ids, _ = tr.ClaimTerritory(territories)
	if len(ids) != 0 {
		t.Fatalf("second claim = %v, want none", ids)
	}
	if got := tr.Session().TerritoriesClaimed; len(got) != 1 {
		t.Fatalf("claimed = %v, want [t1]", got)
	}

	src.set(geo.Location{Lat: 0.0105, Lng: 0.0105})
	ids, _ = tr.ClaimTerritory(territories)
	if len(ids) != 1 || ids[0] != "t2" {
		t.Fatalf("third claim = %v", ids)
	}
	if got := tr.Session().TerritoriesClaimed; len(got) != 2 {
		t.Errorf("claimed = %v, want [t1 t2]", got)
	}
}

func TestLoopTicksAndNotifies(t *testing.T) {
	src := &fakeSource{granted: true}
	src.set(geo.Location{Lat: 1, Lng: 1})

	updates := make(chan Session, 64)
	tr := NewTracker(src, Options{
		Tick: 5 * time.Millisecond,
		OnUpdate: func(s Session) {
			select {
			case updates <- s:
			default:
			}
		},
	})
	defer tr.Close()

	if err := tr.StartRun(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-updates:
			if len(s.Route) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("tick loop never recorded the first location")
		}
	}
}

func TestStaleTickAfterStopIsDropped(t *testing.T) {
	src := &fakeSource{granted: true}
	src.set(geo.Location{Lat: 1, Lng: 1})

	var (
		mu   sync.Mutex
		last Session
	)
	tr := NewTracker(src, Options{
		Tick: time.Hour,
		OnUpdate: func(s Session) {
			mu.Lock()
			last = s
			mu.Unlock()
		},
	})
	defer tr.Close()

	if err := tr.StartRun(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A tick takes its copy, then loses the race to StopRun.
	tr.mu.Lock()
	stale := tr.updateLocked()
	tr.mu.Unlock()
	if !stale.session.IsRunning {
		t.Fatal("tick copy should be running")
	}
	if _, err := tr.StopRun(); err != nil {
		t.Fatal(err)
	}
	tr.notify(stale)

	mu.Lock()
	defer mu.Unlock()
	if last.IsRunning {
		t.Error("stale running copy was published after stop")
	}
}

func TestUpdatesNeverGoBackwards(t *testing.T) {
	src := &fakeSource{granted: true}
	src.set(geo.Location{Lat: 1, Lng: 1})

	var (
		mu      sync.Mutex
		last    Session
		stopped bool
		revived bool
	)
	tr := NewTracker(src, Options{
		Tick: time.Hour,
		OnUpdate: func(s Session) {
			mu.Lock()
			defer mu.Unlock()
			if stopped && s.IsRunning {
				revived = true
			}
			if !s.IsRunning {
				stopped = true
			}
			last = s
		},
	})
	defer tr.Close()

	for range 20 {
		mu.Lock()
		stopped = false
		mu.Unlock()
		if err := tr.StartRun(context.Background()); err != nil {
			t.Fatal(err)
		}
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					tr.Tick()
				}
			}()
		}
		if _, err := tr.StopRun(); err != nil {
			t.Fatal(err)
		}
		wg.Wait()
	}

	mu.Lock()
	defer mu.Unlock()
	if revived {
		t.Error("a running copy was published after the stop")
	}
	if last.IsRunning {
		t.Error("last published session is still running")
	}
}

func TestCloseStopsWatch(t *testing.T) {
	tr, src, _ := newTestTracker(t)
	tr.StartRun(context.Background())
	tr.Close()

	if src.isWatching() {
		t.Error("Close should stop the watch")
	}
	if tr.State() != StateStopped {
		t.Errorf("state = %s, want stopped", tr.State())
	}
}
