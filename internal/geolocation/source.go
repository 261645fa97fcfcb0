package geolocation

import (
	"context"
	"errors"
	"sync"

	"github.com/playperu/territoryrun/internal/geo"
)

// Source tracks the latest fix and error reported by a Platform. It holds at
// most one platform watch at a time.
type Source struct {
	platform Platform
	opts     Options

	mu      sync.Mutex
	fix     *Fix
	err     string
	loading bool

	watchMu sync.Mutex
	watchID WatchID
}

func NewSource(p Platform, opts Options) *Source {
	return &Source{platform: p, opts: opts}
}

// RequestLocation performs a single fix. Failures are also recorded in Err.
func (s *Source) RequestLocation(ctx context.Context) (Fix, error) {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	fix, err := s.platform.GetCurrentPosition(ctx, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = describe(err)
		return Fix{}, err
	}
	s.fix = &fix
	return fix, nil
}

// RequestPermission checks the platform permission and, when the user has not
// answered yet, waits for the answer. Platforms that cannot report the answer
// directly are asked for a fix to trigger the prompt.
func (s *Source) RequestPermission(ctx context.Context) (bool, error) {
	state, err := s.platform.Permission(ctx)
	if err == nil {
		switch state {
		case StateGranted:
			return true, nil
		case StateDenied:
			s.setErr(ErrPermissionDenied)
			return false, nil
		}
	}

	if pa, ok := s.platform.(PermissionAwaiter); ok {
		return s.awaitPermission(ctx, pa)
	}

	_, err = s.RequestLocation(ctx)
	if errors.Is(err, ErrPermissionDenied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Source) awaitPermission(ctx context.Context, pa PermissionAwaiter) (bool, error) {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	state, err := pa.AwaitPermission(ctx, s.opts.Timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	switch {
	case err != nil:
		s.err = describe(err)
		return false, err
	case state == StateDenied:
		s.err = describe(ErrPermissionDenied)
		return false, nil
	}
	return true, nil
}

// StartWatching subscribes to continuous updates. It is a no-op while a
// watch is already active.
func (s *Source) StartWatching() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchID != 0 {
		return
	}
	s.watchID = s.platform.WatchPosition(s.opts, s.onFix, s.setErr)
}

func (s *Source) StopWatching() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchID != 0 {
		s.platform.ClearWatch(s.watchID)
		s.watchID = 0
	}
}

func (s *Source) Watching() bool {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return s.watchID != 0
}

func (s *Source) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Location returns the most recent fix's position.
func (s *Source) Location() (geo.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fix == nil {
		return geo.Location{}, false
	}
	return s.fix.Location, true
}

func (s *Source) Fix() (Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fix == nil {
		return Fix{}, false
	}
	return *s.fix, true
}

// Err is the readable message of the last failure, or "" after a success.
func (s *Source) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) onFix(fix Fix) {
	s.mu.Lock()
	s.fix = &fix
	s.err = ""
	s.mu.Unlock()
}

func (s *Source) setErr(err error) {
	s.mu.Lock()
	s.err = describe(err)
	s.mu.Unlock()
}

func describe(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Error()
	}
	return err.Error()
}
