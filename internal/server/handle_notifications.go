package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/territoryrun/internal/notify"
)

type NotificationsResponse struct {
	Items  []notify.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func notificationsOf(sess *Session) NotificationsResponse {
	items := sess.Notes.List()
	if items == nil {
		items = []notify.Notification{}
	}
	return NotificationsResponse{Items: items, Unread: sess.Notes.Unread()}
}

func handleNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, notificationsOf(sessionFrom(r)))
	}
}

func handleMarkRead(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Notes.MarkRead(chi.URLParam(r, "id")); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, notificationsOf(sess))
	}
}

func handleMarkAllRead(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		sess.Notes.MarkAllRead()
		if err := hub.Save(r.Context(), sess); err != nil {
			writeErr(w, r, hub.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, notificationsOf(sess))
	}
}
