package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/territoryrun/internal/game"
	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/territory"
)

const defaultRadius = 2000.0

// TerritoryView is a territory as one player sees it, with what it would take
// to act on it.
type TerritoryView struct {
	territory.Territory
	Requirements game.Requirements `json:"requirements"`
}

func viewOf(sess *Session, t territory.Territory) TerritoryView {
	t = t.For(sess.ID)
	return TerritoryView{Territory: t, Requirements: sess.Game.CalculateTerritoryRequirements(t)}
}

// handleTerritories lists territories around ?lat=&lng= (radius in meters,
// default 2 km), or every territory when no center is given.
func handleTerritories(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		q := r.URL.Query()

		var list []territory.Territory
		if q.Get("lat") == "" && q.Get("lng") == "" {
			list = hub.catalog.All()
		} else {
			lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
			lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
			center := geo.Location{Lat: lat, Lng: lng}
			if errLat != nil || errLng != nil || !center.Valid() {
				writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates")
				return
			}
			radius := defaultRadius
			if v := q.Get("radius"); v != "" {
				rad, err := strconv.ParseFloat(v, 64)
				if err != nil || rad <= 0 {
					writeError(w, http.StatusBadRequest, "radius must be a positive number of meters")
					return
				}
				radius = rad
			}
			list = hub.catalog.Near(center, radius)
		}

		views := make([]TerritoryView, len(list))
		for i, t := range list {
			views[i] = viewOf(sess, t)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleTerritory(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := hub.catalog.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(sessionFrom(r), t))
	}
}

func handleRequirements(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := hub.catalog.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionFrom(r).Game.CalculateTerritoryRequirements(t))
	}
}
