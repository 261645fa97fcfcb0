// Package notify keeps a player's in-app notification list.
package notify

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Limit is how many notifications a list keeps; older ones are dropped.
const Limit = 50

var ErrNotFound = errors.New("notification not found")

type Kind string

const (
	KindInfo        Kind = "info"
	KindAchievement Kind = "achievement"
	KindTerritory   Kind = "territory"
	KindReward      Kind = "reward"
	KindWarning     Kind = "warning"
)

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// List is a newest-first notification list, safe for concurrent use.
type List struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
	// onAdd runs without the lock held.
	onAdd func(Notification)
}

func NewList(now func() time.Time, onAdd func(Notification)) *List {
	if now == nil {
		now = time.Now
	}
	return &List{now: now, onAdd: onAdd}
}

func (l *List) Add(kind Kind, title, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: l.now(),
	}
	l.mu.Lock()
	l.items = slices.Insert(l.items, 0, n)
	if len(l.items) > Limit {
		l.items = l.items[:Limit]
	}
	l.mu.Unlock()

	if l.onAdd != nil {
		l.onAdd(n)
	}
	return n
}

func (l *List) List() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

func (l *List) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, it := range l.items {
		if !it.Read {
			n++
		}
	}
	return n
}

func (l *List) MarkRead(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (l *List) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		l.items[i].Read = true
	}
}

// Load replaces the list, keeping at most Limit entries.
func (l *List) Load(items []Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.Clone(items[:min(len(items), Limit)])
}
