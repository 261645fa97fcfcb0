package notify

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAddNewestFirst(t *testing.T) {
	var published []Notification
	l := NewList(nil, func(n Notification) { published = append(published, n) })

	l.Add(KindInfo, "first", "")
	l.Add(KindReward, "second", "+50 coins")

	got := l.List()
	if len(got) != 2 || got[0].Title != "second" || got[1].Title != "first" {
		t.Fatalf("List = %+v", got)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Error("ids must be set and unique")
	}
	if len(published) != 2 {
		t.Errorf("published %d, want 2", len(published))
	}
	if l.Unread() != 2 {
		t.Errorf("Unread = %d, want 2", l.Unread())
	}
}

func TestCap(t *testing.T) {
	l := NewList(nil, nil)
	for i := range Limit + 10 {
		l.Add(KindInfo, fmt.Sprintf("n%d", i), "")
	}
	got := l.List()
	if len(got) != Limit {
		t.Fatalf("len = %d, want %d", len(got), Limit)
	}
	if want := fmt.Sprintf("n%d", Limit+9); got[0].Title != want {
		t.Errorf("newest = %q, want %q", got[0].Title, want)
	}
}

func TestMarkRead(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	l := NewList(func() time.Time { return now }, nil)
	a := l.Add(KindTerritory, "a", "")
	l.Add(KindWarning, "b", "")

	if err := l.MarkRead(a.ID); err != nil {
		t.Fatal(err)
	}
	if l.Unread() != 1 {
		t.Errorf("Unread = %d, want 1", l.Unread())
	}
	if err := l.MarkRead("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead unknown = %v", err)
	}

	l.MarkAllRead()
	if l.Unread() != 0 {
		t.Errorf("Unread after MarkAllRead = %d", l.Unread())
	}
	if !l.List()[0].CreatedAt.Equal(now) {
		t.Error("CreatedAt not taken from clock")
	}
}

func TestListReturnsCopy(t *testing.T) {
	l := NewList(nil, nil)
	l.Add(KindInfo, "a", "")
	l.List()[0].Read = true
	if l.Unread() != 1 {
		t.Error("mutating List result changed the list")
	}
}
