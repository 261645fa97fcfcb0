package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/playperu/territoryrun/internal/auth"
	"github.com/playperu/territoryrun/internal/store"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// bearerToken reads the Authorization header, falling back to ?token= for
// EventSource and WebSocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return tok
	}
	return r.URL.Query().Get("token")
}

func playerMiddleware(hub *Hub, tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID, err := tokens.Parse(bearerToken(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			sess, err := hub.Get(r.Context(), playerID)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "player no longer exists")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load player")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *Session {
	return r.Context().Value(ctxKeySession).(*Session)
}
