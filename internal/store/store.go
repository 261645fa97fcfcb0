// Package store persists players, territories and finished runs as JSONB
// documents in libSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/notify"
	"github.com/playperu/territoryrun/internal/run"
	"github.com/playperu/territoryrun/internal/territory"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNameTaken = errors.New("player name already taken")
)

// Player is everything persisted for one player.
type Player struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	PasswordHash  string                `json:"passwordHash"`
	Stats         game.PlayerStats      `json:"stats"`
	Actions       []game.Action         `json:"actions"`
	Notifications []notify.Notification `json:"notifications"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// Run is a finished run.
type Run struct {
	ID         string      `json:"id"`
	PlayerID   string      `json:"playerId"`
	Session    run.Session `json:"session"`
	XP         int         `json:"xp"`
	FinishedAt time.Time   `json:"finishedAt"`
}

type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	PlayerID         string  `json:"playerId"`
	Name             string  `json:"name"`
	Level            int     `json:"level"`
	TerritoriesOwned int     `json:"territoriesOwned"`
	TotalDistance    float64 `json:"totalDistance"`
}

// DocStore keeps one JSONB document per row. Tables come from migrations.
type DocStore struct {
	db *sql.DB
}

func New(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Players

func (s *DocStore) CreatePlayer(ctx context.Context, p Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO players (id, name, created_at, data) VALUES (?, ?, ?, jsonb(?))`,
		p.ID, p.Name, timestamp(p.CreatedAt), string(data),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrNameTaken
	}
	return err
}

func (s *DocStore) Player(ctx context.Context, id string) (Player, error) {
	var p Player
	err := s.get(ctx, "players", id, &p)
	return p, err
}

// PlayerByName looks a player up by name, ignoring case.
func (s *DocStore) PlayerByName(ctx context.Context, name string) (Player, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM players WHERE name = ?`, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	if err != nil {
		return Player{}, err
	}
	var p Player
	return p, json.Unmarshal([]byte(data), &p)
}

// SavePlayer overwrites an existing player's document.
func (s *DocStore) SavePlayer(ctx context.Context, p Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET data = jsonb(?) WHERE id = ?`, string(data), p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Leaderboard ranks players by territories currently owned, then by total
// distance run.
func (s *DocStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name,
		       json_extract(p.data, '$.stats.level'),
		       COUNT(t.id) AS owned,
		       json_extract(p.data, '$.stats.totalDistance') AS distance
		FROM players p
		LEFT JOIN territories t ON t.owner_id = p.id
		GROUP BY p.id
		ORDER BY owned DESC, distance DESC, p.name
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Level, &e.TerritoriesOwned, &e.TotalDistance); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Territories

// SaveTerritories upserts every territory in one transaction.
func (s *DocStore) SaveTerritories(ctx context.Context, territories []territory.Territory) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range territories {
		if err := putTerritory(ctx, tx, t); err != nil {
			return fmt.Errorf("saving territory %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (s *DocStore) SaveTerritory(ctx context.Context, t territory.Territory) error {
	return putTerritory(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putTerritory(ctx context.Context, db execer, t territory.Territory) error {
	// Status is relative to a viewer and never stored.
	t.Status = ""
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO territories (id, owner_id, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, data = excluded.data`,
		t.ID, t.OwnerID, string(data),
	)
	return err
}

func (s *DocStore) Territories(ctx context.Context) ([]territory.Territory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT json(data) FROM territories ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []territory.Territory
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t territory.Territory
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Runs

func (s *DocStore) SaveRun(ctx context.Context, r Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, player_id, finished_at, data) VALUES (?, ?, ?, jsonb(?))`,
		r.ID, r.PlayerID, timestamp(r.FinishedAt), string(data),
	)
	return err
}

// Runs returns a player's most recent runs, newest first.
func (s *DocStore) Runs(ctx context.Context, playerID string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM runs WHERE player_id = ? ORDER BY finished_at DESC LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Run
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
