package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each dependency to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type pathID struct {
	ID string `path:"id"`
}

type limitQuery struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20"`
}

type nearQuery struct {
	Lat    float64 `query:"lat"`
	Lng    float64 `query:"lng"`
	Radius float64 `query:"radius" default:"2000" description:"Meters."`
}

type operation struct {
	method, path string
	summary      string
	description  string
	req          any
	resp         any
	status       int
	errors       []int
	contentType  string
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Territory Run API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the territory running game. Routes under /api/me require a Bearer token.")

	ops := []operation{
		{method: http.MethodGet, path: "/healthz", summary: "Health check",
			description: "Returns the health status of backend dependencies.",
			resp:        HealthResponse{}, status: http.StatusOK, errors: []int{http.StatusServiceUnavailable}},

		{method: http.MethodPost, path: "/api/players", summary: "Register",
			description: "Creates a player with starting stats and returns a token.",
			req:         CredentialsRequest{}, resp: TokenResponse{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusConflict}},
		{method: http.MethodPost, path: "/api/login", summary: "Log in",
			req: CredentialsRequest{}, resp: TokenResponse{}, status: http.StatusOK,
			errors: []int{http.StatusUnauthorized}},
		{method: http.MethodGet, path: "/api/leaderboard", summary: "Leaderboard", req: limitQuery{},
			description: "Players ranked by territories owned, then total distance.",
			resp:        []store.LeaderboardEntry{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},

		{method: http.MethodGet, path: "/api/me/state", summary: "Player state",
			resp: StateResponse{}, status: http.StatusOK, errors: []int{http.StatusUnauthorized}},
		{method: http.MethodPost, path: "/api/me/daily-reward", summary: "Collect daily reward",
			description: "Once per UTC day. Missing a day resets the streak.",
			resp:        game.DailyReward{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/premium", summary: "Purchase a subscription tier",
			req: PremiumRequest{}, resp: game.Subscription{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},

		{method: http.MethodGet, path: "/api/me/territories", summary: "List territories", req: nearQuery{},
			description: "Territories near ?lat=&lng= within ?radius= meters (default 2000), or all of them.",
			resp:        []TerritoryView{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
		{method: http.MethodGet, path: "/api/me/territories/{id}", summary: "Get territory", req: pathID{},
			resp: TerritoryView{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodGet, path: "/api/me/territories/{id}/requirements", summary: "Territory requirements", req: pathID{},
			resp: game.Requirements{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},

		{method: http.MethodGet, path: "/api/me/actions", summary: "List actions",
			resp: []game.Action{}, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/me/actions", summary: "Start a territory action",
			description: "Spends energy on the free tier. 409 when energy is short.",
			req:         StartActionRequest{}, resp: ActionResponse{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/actions/{id}/complete", summary: "Resolve an action",
			req: CompleteActionRequest{}, resp: ActionResponse{}, status: http.StatusOK,
			errors: []int{http.StatusNotFound, http.StatusConflict}},

		{method: http.MethodGet, path: "/api/me/run", summary: "Current run",
			resp: RunResponse{}, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/me/run/start", summary: "Start a run",
			description: "Requires location permission. Waits for a pushed fix if the device has not answered yet.",
			resp:        RunResponse{}, status: http.StatusOK,
			errors: []int{http.StatusForbidden, http.StatusConflict, http.StatusGatewayTimeout}},
		{method: http.MethodPost, path: "/api/me/run/pause", summary: "Pause the run",
			resp: RunResponse{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/run/resume", summary: "Resume the run",
			resp: RunResponse{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/run/stop", summary: "Stop and save the run",
			resp: StopRunResponse{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/run/claim", summary: "Claim entered territories",
			description: "Adds territories containing the current location to the run, without duplicates.",
			resp:        ClaimResponse{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: "/api/me/run/location", summary: "Push a location fix",
			req: LocationRequest{}, status: http.StatusNoContent,
			errors: []int{http.StatusBadRequest, http.StatusTooManyRequests}},
		{method: http.MethodPost, path: "/api/me/run/location-error", summary: "Report a location error",
			req: LocationErrorRequest{}, status: http.StatusNoContent, errors: []int{http.StatusBadRequest}},
		{method: http.MethodPost, path: "/api/me/run/permission", summary: "Report the location permission answer",
			req: PermissionRequest{}, status: http.StatusNoContent},
		{method: http.MethodGet, path: "/api/me/run/stream", summary: "Location WebSocket",
			description: "Device sends StreamMessage JSON; player events are sent back.",
			status:      http.StatusSwitchingProtocols, contentType: "text/plain"},
		{method: http.MethodGet, path: "/api/me/runs", summary: "Run history", req: limitQuery{},
			resp: []store.Run{}, status: http.StatusOK},

		{method: http.MethodGet, path: "/api/me/events", summary: "SSE event stream",
			description: "state, run, notification and territory events. Pass the token as a query parameter.",
			status:      http.StatusOK, contentType: "text/event-stream"},
		{method: http.MethodGet, path: "/api/me/notifications", summary: "List notifications",
			resp: NotificationsResponse{}, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/me/notifications/{id}/read", summary: "Mark a notification read", req: pathID{},
			resp: NotificationsResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodPost, path: "/api/me/notifications/read-all", summary: "Mark all notifications read",
			resp: NotificationsResponse{}, status: http.StatusOK},
	}

	for _, o := range ops {
		oc, err := r.NewOperationContext(o.method, o.path)
		if err != nil {
			continue
		}
		oc.SetSummary(o.summary)
		if o.description != "" {
			oc.SetDescription(o.description)
		}
		if o.req != nil {
			oc.AddReqStructure(o.req)
		}
		if o.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(o.status), openapi.WithContentType(o.contentType))
		} else {
			oc.AddRespStructure(o.resp, openapi.WithHTTPStatus(o.status))
		}
		for _, code := range o.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
