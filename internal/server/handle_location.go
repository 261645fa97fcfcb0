package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/territoryrun/internal/geo"
	"github.com/playperu/territoryrun/internal/geolocation"
)

var errRateLimited = errors.New("too many location updates")

// LocationRequest is one fix reported by the device. Timestamp is optional
// and defaults to the time the server received it.
type LocationRequest struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type LocationErrorRequest struct {
	Code geolocation.ErrorCode `json:"code"`
}

type PermissionRequest struct {
	Granted bool `json:"granted"`
}

// StreamMessage is what a device sends over the run stream: a fix, an error
// code or a permission answer.
type StreamMessage struct {
	Lat        *float64               `json:"lat,omitempty"`
	Lng        *float64               `json:"lng,omitempty"`
	Accuracy   float64                `json:"accuracy,omitempty"`
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
	Error      *geolocation.ErrorCode `json:"error,omitempty"`
	Permission *bool                  `json:"permission,omitempty"`
}

func pushFix(sess *Session, req LocationRequest) error {
	if !sess.limiter.Allow() {
		return errRateLimited
	}
	fix := geolocation.Fix{
		Location: geo.Location{Lat: req.Lat, Lng: req.Lng},
		Accuracy: req.Accuracy,
	}
	if req.Timestamp != nil {
		fix.Timestamp = *req.Timestamp
	}
	return sess.Feed.Push(fix)
}

func validCode(c geolocation.ErrorCode) bool {
	return c >= geolocation.PermissionDenied && c <= geolocation.Timeout
}

func handleLocation(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := pushFix(sessionFrom(r), req); err != nil {
			if errors.Is(err, errRateLimited) {
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			writeErr(w, r, hub.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLocationError() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationErrorRequest
		if err := readJSON(r, &req); err != nil || !validCode(req.Code) {
			writeError(w, http.StatusBadRequest, "code must be 1, 2 or 3")
			return
		}
		sessionFrom(r).Feed.PushError(req.Code)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handlePermission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PermissionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sessionFrom(r).Feed.SetPermission(req.Granted)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRunStream upgrades to a WebSocket. The device streams StreamMessages
// in; the player's events stream out.
func handleRunStream(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			hub.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch := hub.broker.Subscribe(sess.ID)
		defer hub.broker.Unsubscribe(sess.ID, ch)

		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case data := <-ch:
					if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
						hub.logger.Debug("websocket write failed", "error", err)
						return
					}
				}
			}
		}()

		for {
			var msg StreamMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				hub.logger.Debug("websocket read ended", "error", err)
				return
			}
			if err := applyStreamMessage(sess, msg); err != nil {
				if err := wsjson.Write(ctx, conn, Event{Type: "error", Data: ErrorResponse{Error: err.Error()}}); err != nil {
					hub.logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}

func applyStreamMessage(sess *Session, msg StreamMessage) error {
	switch {
	case msg.Lat != nil && msg.Lng != nil:
		return pushFix(sess, LocationRequest{Lat: *msg.Lat, Lng: *msg.Lng, Accuracy: msg.Accuracy, Timestamp: msg.Timestamp})
	case msg.Error != nil:
		if !validCode(*msg.Error) {
			return errors.New("code must be 1, 2 or 3")
		}
		sess.Feed.PushError(*msg.Error)
	case msg.Permission != nil:
		sess.Feed.SetPermission(*msg.Permission)
	default:
		return errors.New("message needs lat and lng, error or permission")
	}
	return nil
}
