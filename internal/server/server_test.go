package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/internal/lifecycle"
)

type staticChecker map[string]string

func (s staticChecker) Check(context.Context) map[string]string { return s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_Healthz(t *testing.T) {
	probes := lifecycle.NewProbes(nil, testLogger())
	rec := httptest.NewRecorder()

	Router(probes, nil, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestRouter_Readyz(t *testing.T) {
	tests := []struct {
		name   string
		checks staticChecker
		status int
	}{
		{"ready", staticChecker{"storage": "OK"}, http.StatusOK},
		{"not ready", staticChecker{"storage": "OK", "redis": "down"}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probes := lifecycle.NewProbes(tt.checks, testLogger())
			rec := httptest.NewRecorder()

			Router(probes, tt.checks, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Contains(t, body, "components")
		})
	}
}

type failingProbes struct{}

func (failingProbes) Liveness(context.Context) error  { return errors.New("stuck") }
func (failingProbes) Readiness(context.Context) error { return nil }

func TestRouter_HealthzFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	Router(failingProbes{}, nil, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	Router(lifecycle.NewProbes(nil, testLogger()), nil, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
