package server

import (
	"net/http"
	"strconv"

	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/geolocation"
	"github.com/playperu/territoryrun/internal/run"
	"github.com/playperu/territoryrun/internal/store"
)

type RunResponse struct {
	State         run.State        `json:"state"`
	Session       run.Session      `json:"session"`
	Location      *geolocation.Fix `json:"location,omitempty"`
	LocationError string           `json:"locationError,omitempty"`
	Watching      bool             `json:"watching"`
}

type StopRunResponse struct {
	Run   store.Run        `json:"run"`
	Stats game.PlayerStats `json:"stats"`
}

type ClaimResponse struct {
	Entered []TerritoryView `json:"entered"`
	Session run.Session     `json:"session"`
}

func runOf(sess *Session) RunResponse {
	resp := RunResponse{
		State:         sess.Tracker.State(),
		Session:       sess.Tracker.Session(),
		LocationError: sess.Location.Err(),
		Watching:      sess.Location.Watching(),
	}
	if fix, ok := sess.Location.Fix(); ok {
		resp.Location = &fix
	}
	return resp
}

func handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runOf(sessionFrom(r)))
	}
}

// handleRunStart asks the device for location permission. When the player
// has not answered yet the request waits for a fix to be pushed.
func handleRunStart(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Tracker.StartRun(r.Context()); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		hub.logger.Info("run started", "player_id", sess.ID)
		writeJSON(w, http.StatusOK, runOf(sess))
	}
}

func handleRunPause(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Tracker.PauseRun(); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, runOf(sess))
	}
}

func handleRunResume(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Tracker.ResumeRun(); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, runOf(sess))
	}
}

func handleRunStop(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		final, err := sess.Tracker.StopRun()
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		rec, err := hub.FinishRun(r.Context(), sess, final)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		hub.broker.Publish(sess.ID, Event{Type: eventState, Data: stateOf(sess)})
		writeJSON(w, http.StatusOK, StopRunResponse{Run: rec, Stats: sess.Game.Stats()})
	}
}

// handleRunClaim records the territories the runner is standing in that this
// run has not entered yet.
func handleRunClaim(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		ids, err := sess.Tracker.ClaimTerritory(hub.catalog.ViewFor(sess.ID))
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}

		entered := make([]TerritoryView, 0, len(ids))
		for _, id := range ids {
			t, err := hub.catalog.Get(id)
			if err != nil {
				continue
			}
			entered = append(entered, viewOf(sess, t))
		}
		writeJSON(w, http.StatusOK, ClaimResponse{Entered: entered, Session: sess.Tracker.Session()})
	}
}

func handleRunHistory(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}
		runs, err := hub.store.Runs(r.Context(), sessionFrom(r).ID, limit)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}
