package geolocation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var ErrInvalidFix = errors.New("invalid fix coordinates")

// Feed is a Platform driven by fixes pushed from a remote device. A client
// app forwards what its own location API reports; Feed replays it to watches
// and pending one-shot requests.
type Feed struct {
	now func() time.Time

	mu         sync.Mutex
	last       *Fix
	permission PermissionState
	nextID     WatchID
	watchers   map[WatchID]watcher
	waiters    map[chan outcome]struct{}
	// answered wakes AwaitPermission callers once the prompt is answered.
	answered []chan PermissionState
}

type watcher struct {
	onFix func(Fix)
	onErr func(error)
}

type outcome struct {
	fix Fix
	err error
}

func NewFeed() *Feed {
	return &Feed{
		now:        time.Now,
		permission: StatePrompt,
		watchers:   make(map[WatchID]watcher),
		waiters:    make(map[chan outcome]struct{}),
	}
}

// Push delivers a fix. Receiving a fix implies the device granted permission.
// A zero Timestamp is stamped with the current time.
func (f *Feed) Push(fix Fix) error {
	if !fix.Location.Valid() || fix.Accuracy < 0 {
		return ErrInvalidFix
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}

	f.mu.Lock()
	f.last = &fix
	watchers, waiters := f.drainLocked()
	f.answerLocked(StateGranted)
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{fix: fix}
	}
	for _, w := range watchers {
		w.onFix(fix)
	}
	return nil
}

// PushError delivers a platform failure to every watch and pending request.
func (f *Feed) PushError(code ErrorCode) {
	err := &Error{Code: code}

	f.mu.Lock()
	if code == PermissionDenied {
		f.answerLocked(StateDenied)
	}
	watchers, waiters := f.drainLocked()
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome{err: err}
	}
	for _, w := range watchers {
		if w.onErr != nil {
			w.onErr(err)
		}
	}
}

// SetPermission records the device's answer to the permission prompt.
func (f *Feed) SetPermission(granted bool) {
	if !granted {
		f.PushError(PermissionDenied)
		return
	}
	f.mu.Lock()
	f.answerLocked(StateGranted)
	f.mu.Unlock()
}

// answerLocked records the permission state and wakes every AwaitPermission
// caller.
func (f *Feed) answerLocked(state PermissionState) {
	f.permission = state
	for _, ch := range f.answered {
		ch <- state
	}
	f.answered = nil
}

// AwaitPermission blocks while the permission prompt is unanswered. It
// returns once the device grants or denies access, or pushes a fix.
func (f *Feed) AwaitPermission(ctx context.Context, timeout time.Duration) (PermissionState, error) {
	f.mu.Lock()
	if f.permission != StatePrompt {
		state := f.permission
		f.mu.Unlock()
		return state, nil
	}
	ch := make(chan PermissionState, 1)
	f.answered = append(f.answered, ch)
	f.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case state := <-ch:
		return state, nil
	case <-expired:
		f.forgetAnswer(ch)
		return StatePrompt, ErrTimeout
	case <-ctx.Done():
		f.forgetAnswer(ch)
		return StatePrompt, ctx.Err()
	}
}

func (f *Feed) forgetAnswer(ch chan PermissionState) {
	f.mu.Lock()
	f.answered = slices.DeleteFunc(f.answered, func(c chan PermissionState) bool { return c == ch })
	f.mu.Unlock()
}

// Last returns the most recent pushed fix.
func (f *Feed) Last() (Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Fix{}, false
	}
	return *f.last, true
}

// drainLocked snapshots watchers and removes all pending waiters.
func (f *Feed) drainLocked() ([]watcher, []chan outcome) {
	watchers := make([]watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		watchers = append(watchers, w)
	}
	waiters := make([]chan outcome, 0, len(f.waiters))
	for ch := range f.waiters {
		waiters = append(waiters, ch)
		delete(f.waiters, ch)
	}
	return watchers, waiters
}

func (f *Feed) GetCurrentPosition(ctx context.Context, opts Options) (Fix, error) {
	f.mu.Lock()
	if f.permission == StateDenied {
		f.mu.Unlock()
		return Fix{}, ErrPermissionDenied
	}
	if f.last != nil && opts.MaximumAge > 0 && f.now().Sub(f.last.Timestamp) <= opts.MaximumAge {
		fix := *f.last
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan outcome, 1)
	f.waiters[ch] = struct{}{}
	f.mu.Unlock()

	var expired <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o := <-ch:
		return o.fix, o.err
	case <-expired:
		f.forget(ch)
		return Fix{}, ErrTimeout
	case <-ctx.Done():
		f.forget(ch)
		return Fix{}, ctx.Err()
	}
}

func (f *Feed) forget(ch chan outcome) {
	f.mu.Lock()
	delete(f.waiters, ch)
	f.mu.Unlock()
}

func (f *Feed) WatchPosition(_ Options, onFix func(Fix), onErr func(error)) WatchID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.watchers[f.nextID] = watcher{onFix: onFix, onErr: onErr}
	return f.nextID
}

func (f *Feed) ClearWatch(id WatchID) {
	f.mu.Lock()
	delete(f.watchers, id)
	f.mu.Unlock()
}

func (f *Feed) Permission(_ context.Context) (PermissionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

// Watches reports the number of active watches.
func (f *Feed) Watches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}
