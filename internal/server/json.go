package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/geolocation"
	"github.com/playperu/territoryrun/internal/notify"
	"github.com/playperu/territoryrun/internal/run"
	"github.com/playperu/territoryrun/internal/store"
	"github.com/playperu/territoryrun/internal/territory"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps domain errors to HTTP statuses; anything unknown is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, territory.ErrNotFound),
		errors.Is(err, game.ErrActionNotFound),
		errors.Is(err, notify.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInsufficientEnergy),
		errors.Is(err, game.ErrActionResolved),
		errors.Is(err, game.ErrAlreadyCollected),
		errors.Is(err, run.ErrAlreadyActive),
		errors.Is(err, run.ErrNotRunning),
		errors.Is(err, run.ErrNotPaused),
		errors.Is(err, store.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, game.ErrUnknownAction),
		errors.Is(err, game.ErrInvalidTarget),
		errors.Is(err, game.ErrUnknownTier),
		errors.Is(err, geolocation.ErrInvalidFix),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, run.ErrPermissionDenied),
		errors.Is(err, geolocation.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, geolocation.ErrTimeout),
		errors.Is(err, geolocation.ErrPositionUnavailable):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeErr writes err with its mapped status. Internal errors are logged and
// not echoed.
func writeErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
