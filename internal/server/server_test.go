package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/playperu/territoryrun/internal/archive"
	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/database"
	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/migrations"
	"github.com/playperu/territoryrun/internal/store"
	"github.com/playperu/territoryrun/internal/territory"
	"github.com/playperu/territoryrun/internal/tuning"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	hub     *Hub
	store   *store.DocStore
	handler http.Handler
	clock   *testClock
	archive string
}

// origin is the south-west corner of the first test territory.
var origin = geo.Location{Lat: -12.05, Lng: -77.05}

func plot(id string, sw geo.Location, defense int) territory.Territory {
	return territory.Territory{
		ID:   id,
		Name: "Plot " + id,
		Polygon: []geo.Location{
			sw,
			{Lat: sw.Lat + 0.001, Lng: sw.Lng},
			{Lat: sw.Lat + 0.001, Lng: sw.Lng + 0.001},
			{Lat: sw.Lat, Lng: sw.Lng + 0.001},
		},
		DefenseStrength: defense,
	}
}

func setupEnv(t *testing.T, opts HubOptions, territories ...territory.Territory) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	st := store.New(db)
	if err := st.SaveTerritories(ctx, territories); err != nil {
		t.Fatalf("seed territories: %v", err)
	}

	clock := &testClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	if opts.RunTick == 0 {
		// Ticks are driven by hand.
		opts.RunTick = time.Hour
	}

	dir := t.TempDir()
	arch := archive.NewWriter(dir, "runs")
	t.Cleanup(func() { arch.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(st, territory.NewCatalog(territories), tuning.Default(), NewBroker(), arch, logger, opts)
	t.Cleanup(func() { hub.Close(context.Background()) })

	tokens := auth.NewTokens("test-secret", time.Hour)
	srv := New(":0", logger, hub, tokens, "", nil)

	return &testEnv{hub: hub, store: st, handler: srv.Handler(), clock: clock, archive: dir}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// register creates a player and returns its token and id.
func (e *testEnv) register(t *testing.T, name string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/players", "", CredentialsRequest{Name: name, Password: "secret123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return resp.Token, resp.PlayerID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}
