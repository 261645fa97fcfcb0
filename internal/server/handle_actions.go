package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/territoryrun/internal/game"
)

type StartActionRequest struct {
	Type        game.ActionType `json:"type"`
	TerritoryID string          `json:"territoryId"`
}

type CompleteActionRequest struct {
	ActionID string `path:"id" json:"-"`
	Success  bool   `json:"success"`
}

type ActionResponse struct {
	Action game.Action      `json:"action"`
	Stats  game.PlayerStats `json:"stats"`
}

func handleListActions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actions := sessionFrom(r).Game.Actions()
		if actions == nil {
			actions = []game.Action{}
		}
		writeJSON(w, http.StatusOK, actions)
	}
}

func handleStartAction(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartActionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sess := sessionFrom(r)

		action, err := sess.Game.StartTerritoryAction(req.Type, req.TerritoryID)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		stats := sess.Game.Stats()
		hub.broker.Publish(sess.ID, Event{Type: eventState, Data: stateOf(sess)})
		writeJSON(w, http.StatusCreated, ActionResponse{Action: action, Stats: stats})
	}
}

func handleCompleteAction(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompleteActionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sess := sessionFrom(r)

		action, err := sess.Game.CompleteAction(chi.URLParam(r, "id"), req.Success)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		if action.Status == game.StatusCompleted && action.Type != game.ActionDefend {
			if err := hub.SaveTerritory(r.Context(), action.TerritoryID); err != nil {
				writeErr(w, r, hub.logger, err)
				return
			}
		}
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		hub.logger.Info("action resolved", "player_id", sess.ID, "action", action.Type,
			"territory_id", action.TerritoryID, "status", action.Status)
		hub.broker.Publish(sess.ID, Event{Type: eventState, Data: stateOf(sess)})
		writeJSON(w, http.StatusOK, ActionResponse{Action: action, Stats: sess.Game.Stats()})
	}
}
