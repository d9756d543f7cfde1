package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/handlers"
	"budget-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	defer db.Close()

	h, err := handlers.NewHandlers(db, auth.NewSessionManager("router-test-secret-01", time.Hour, false))
	require.NoError(t, err, "failed to create handlers")

	// Building the router panics if two patterns conflict
	router := setupRouter(h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name         string
		method       string
		path         string
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "Root redirects to /login",
			method:       http.MethodGet,
			path:         "/",
			wantStatus:   http.StatusFound,
			wantLocation: "/login",
		},
		{
			name:       "Embedded stylesheet",
			method:     http.MethodGet,
			path:       "/static/style.css",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Login page",
			method:     http.MethodGet,
			path:       "/login",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Health check",
			method:     http.MethodGet,
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:         "Dashboard requires auth",
			method:       http.MethodGet,
			path:         "/dashboard",
			wantStatus:   http.StatusFound,
			wantLocation: "/login",
		},
		{
			name:       "Unknown path",
			method:     http.MethodGet,
			path:       "/expenses",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Wrong method",
			method:     http.MethodDelete,
			path:       "/transactions",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, "%s %s returned unexpected status", tt.method, tt.path)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			}
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "request id header missing")
		})
	}
}
