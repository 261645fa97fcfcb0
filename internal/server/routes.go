package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/territoryrun/internal/auth"
)

func addRoutes(r chi.Router, logger *slog.Logger, hub *Hub, tokens *auth.Tokens, spaDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Territory Run API", "/openapi.json", "/docs"))

	r.Post("/api/players", handleRegister(hub, tokens))
	r.Post("/api/login", handleLogin(hub, tokens))
	r.Get("/api/leaderboard", handleLeaderboard(hub))

	// Player routes, resolved from the bearer token by playerMiddleware.
	r.Route("/api/me", func(r chi.Router) {
		r.Use(playerMiddleware(hub, tokens))

		r.Get("/state", handleState())
		r.Post("/daily-reward", handleDailyReward(hub))
		r.Post("/premium", handlePremium(hub))

		r.Get("/territories", handleTerritories(hub))
		r.Get("/territories/{id}", handleTerritory(hub))
		r.Get("/territories/{id}/requirements", handleRequirements(hub))

		r.Get("/actions", handleListActions())
		r.Post("/actions", handleStartAction(hub))
		r.Post("/actions/{id}/complete", handleCompleteAction(hub))

		r.Get("/run", handleRun())
		r.Post("/run/start", handleRunStart(hub))
		r.Post("/run/pause", handleRunPause(hub))
		r.Post("/run/resume", handleRunResume(hub))
		r.Post("/run/stop", handleRunStop(hub))
		r.Post("/run/claim", handleRunClaim(hub))
		r.Post("/run/location", handleLocation(hub))
		r.Post("/run/location-error", handleLocationError())
		r.Post("/run/permission", handlePermission())
		r.Get("/run/stream", handleRunStream(hub))
		r.Get("/runs", handleRunHistory(hub))

		r.Get("/events", handleEvents(hub))
		r.Get("/notifications", handleNotifications())
		r.Post("/notifications/read-all", handleMarkAllRead(hub))
		r.Post("/notifications/{id}/read", handleMarkRead(hub))
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
