package server

import (
	"net/http"

	"github.com/playperu/territoryrun/internal/game"
)

type StateResponse struct {
	Stats               game.PlayerStats `json:"stats"`
	UnreadNotifications int              `json:"unreadNotifications"`
	RunState            string           `json:"runState"`
}

type PremiumRequest struct {
	Tier string `json:"tier"`
}

func handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		writeJSON(w, http.StatusOK, stateOf(sess))
	}
}

func stateOf(sess *Session) StateResponse {
	return StateResponse{
		Stats:               sess.Game.Stats(),
		UnreadNotifications: sess.Notes.Unread(),
		RunState:            string(sess.Tracker.State()),
	}
}

func handleDailyReward(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		reward, err := sess.Game.CollectDailyReward()
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		hub.broker.Publish(sess.ID, Event{Type: eventState, Data: stateOf(sess)})
		writeJSON(w, http.StatusOK, reward)
	}
}

func handlePremium(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PremiumRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sess := sessionFrom(r)

		sub, err := sess.Game.PurchasePremium(req.Tier)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		hub.logger.Info("subscription purchased", "player_id", sess.ID, "tier", sub.Tier)
		hub.broker.Publish(sess.ID, Event{Type: eventState, Data: stateOf(sess)})
		writeJSON(w, http.StatusOK, sub)
	}
}
