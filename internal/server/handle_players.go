package server

import (
	"net/http"
	"strconv"

	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/store"
)

type CredentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

func handleRegister(hub *Hub, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := hub.Register(r.Context(), req.Name, req.Password)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeToken(w, r, hub, tokens, http.StatusCreated, p)
	}
}

func handleLogin(hub *Hub, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := hub.Login(r.Context(), req.Name, req.Password)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeToken(w, r, hub, tokens, http.StatusOK, p)
	}
}

func writeToken(w http.ResponseWriter, r *http.Request, hub *Hub, tokens *auth.Tokens, status int, p store.Player) {
	tok, err := tokens.Issue(p.ID)
	if err != nil {
		writeErr(w, r, hub.logger, err)
		return
	}
	writeJSON(w, status, TokenResponse{Token: tok, PlayerID: p.ID, Name: p.Name})
}

func handleLeaderboard(hub *Hub) http.HandlerFunc {
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

		entries, err := hub.store.Leaderboard(r.Context(), limit)
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
