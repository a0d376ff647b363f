package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	h := New(WithFailureThreshold(1))
	h.AddLivenessCheck(&mockCheck{name: "process"})
	h.AddReadinessCheck(&mockCheck{name: "storage", err: errors.New("connection refused")})

	r := chi.NewRouter()
	h.Routes(r)

	tests := []struct {
		path   string
		code   int
		status string
		check  string
		state  string
	}{
		{"/livez", http.StatusOK, "healthy", "process", "ok"},
		{"/readyz", http.StatusServiceUnavailable, "unhealthy", "storage", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			require.Contains(t, resp.Checks, tt.check)
			assert.Equal(t, tt.state, resp.Checks[tt.check].Status)
		})
	}
}

func TestReadinessHandler_ErrorDetails(t *testing.T) {
	h := New(WithFailureThreshold(1))
	h.AddReadinessCheck(&mockCheck{name: "storage", err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	h.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Message, "storage")
	assert.Equal(t, "connection refused", resp.Checks["storage"].Error)
	assert.NotEmpty(t, resp.Checks["storage"].Latency)
}

func TestLivenessHandler_NoChecks(t *testing.T) {
	w := httptest.NewRecorder()
	New().LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Checks)
}
