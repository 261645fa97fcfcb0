package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/playperu/territoryrun/internal/game"
)

func TestDailyReward(t *testing.T) {
	e := setupEnv(t, HubOptions{})
	tok, _ := e.register(t, "Ana")

	rec := e.do(t, http.MethodPost, "/api/me/daily-reward", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if r := decode[game.DailyReward](t, rec); r.Coins != 50 || r.XP != 25 || r.Streak != 0 {
		t.Errorf("reward = %+v", r)
	}
	if rec := e.do(t, http.MethodPost, "/api/me/daily-reward", tok, nil); rec.Code != http.StatusConflict {
		t.Errorf("second collect: status = %d, want 409", rec.Code)
	}

	e.clock.Advance(24 * time.Hour)
	rec = e.do(t, http.MethodPost, "/api/me/daily-reward", tok, nil)
	if r := decode[game.DailyReward](t, rec); r.Coins != 60 || r.Streak != 1 {
		t.Errorf("next day reward = %+v", r)
	}

	rec = e.do(t, http.MethodGet, "/api/me/state", tok, nil)
	s := decode[StateResponse](t, rec)
	if s.Stats.Currencies.Coins != 210 || s.Stats.DailyStreak != 2 || s.UnreadNotifications != 2 {
		t.Errorf("state = %+v", s)
	}
}

func TestNotifications(t *testing.T) {
	e := setupEnv(t, HubOptions{})
	tok, id := e.register(t, "Ana")

	e.do(t, http.MethodPost, "/api/me/daily-reward", tok, nil)
	e.do(t, http.MethodPost, "/api/me/premium", tok, PremiumRequest{Tier: "elite"})

	rec := e.do(t, http.MethodGet, "/api/me/notifications", tok, nil)
	list := decode[NotificationsResponse](t, rec)
	if len(list.Items) != 2 || list.Unread != 2 {
		t.Fatalf("notifications = %+v", list)
	}
	if list.Items[0].Title != "Welcome to elite" {
		t.Errorf("newest = %q, want the premium notification", list.Items[0].Title)
	}

	rec = e.do(t, http.MethodPost, "/api/me/notifications/"+list.Items[0].ID+"/read", tok, nil)
	if got := decode[NotificationsResponse](t, rec); got.Unread != 1 {
		t.Errorf("unread after read = %d, want 1", got.Unread)
	}
	if rec := e.do(t, http.MethodPost, "/api/me/notifications/nope/read", tok, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown notification: status = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/me/notifications/read-all", tok, nil)
	if got := decode[NotificationsResponse](t, rec); got.Unread != 0 {
		t.Errorf("unread after read-all = %d, want 0", got.Unread)
	}

	p, err := e.store.Player(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range p.Notifications {
		if !n.Read {
			t.Errorf("stored notification %q still unread", n.Title)
		}
	}
	if p.Stats.Subscription.Tier != "elite" {
		t.Errorf("stored tier = %q, want elite", p.Stats.Subscription.Tier)
	}
}

func TestEnergyRegenerates(t *testing.T) {
	e := setupEnv(t, HubOptions{}, plot("a", origin, 100))
	tok, id := e.register(t, "Ana")
	e.do(t, http.MethodPost, "/api/me/actions", tok, StartActionRequest{Type: "claim", TerritoryID: "a"})

	sess, err := e.hub.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	ch := e.hub.Broker().Subscribe(id)
	defer e.hub.Broker().Unsubscribe(id, ch)

	e.hub.regenerate()
	if got := sess.Game.Stats().Energy.Current; got != 80 {
		t.Fatalf("energy before any window = %d, want 80", got)
	}
	select {
	case <-ch:
		t.Error("published state without a regen")
	default:
	}

	e.clock.Advance(10 * time.Minute)
	e.hub.regenerate()
	if got := sess.Game.Stats().Energy.Current; got != 90 {
		t.Errorf("energy = %d, want 90", got)
	}
	select {
	case <-ch:
	default:
		t.Error("no state event after regen")
	}
}
