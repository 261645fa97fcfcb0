package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/playperu/territoryrun/internal/database"
	"github.com/playperu/territoryrun/internal/handler/health"
)

func failing(msg string) health.Checker {
	return health.CheckFunc(func(context.Context) error { return errors.New(msg) })
}

func TestHandler(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	dir := t.TempDir()

	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name: "all healthy",
			checks: map[string]health.Checker{
				"libsql":  health.DB(db),
				"archive": health.Dir(dir),
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"libsql": "ok", "archive": "ok"},
		},
		{
			name: "database down",
			checks: map[string]health.Checker{
				"libsql":  failing("locked"),
				"archive": health.Dir(dir),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"libsql": "error", "archive": "ok"},
		},
		{
			name: "archive dir missing",
			checks: map[string]health.Checker{
				"libsql":  health.DB(db),
				"archive": health.Dir(filepath.Join(dir, "missing")),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"libsql": "ok", "archive": "error"},
		},
		{
			name:       "no checks",
			checks:     map[string]health.Checker{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.Default(), tt.checks)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]struct{ Status string }
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(body) != len(tt.wantBody) {
				t.Errorf("got %d checks, want %d", len(body), len(tt.wantBody))
			}
			for name, want := range tt.wantBody {
				if got := body[name].Status; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}
