package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// HealthResponse is the JSON body of /livez and /readyz.
type HealthResponse struct {
	Status  string                 `json:"status"` // healthy or unhealthy
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check in a HealthResponse.
type CheckStatus struct {
	Status  string `json:"status"` // ok or error
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Routes mounts /livez and /readyz on r.
func (h *HealthChecker) Routes(r chi.Router) {
	r.Get("/livez", h.LivenessHandler())
	r.Get("/readyz", h.ReadinessHandler())
}

// LivenessHandler answers 200 while the process is alive and 503 otherwise.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckLiveness(r.Context())
		h.write(w, status, err)
	}
}

// ReadinessHandler answers 200 when every readiness check passes and 503 otherwise.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.CheckReadiness(r.Context())
		h.write(w, status, err)
	}
}

func (h *HealthChecker) write(w http.ResponseWriter, status *HealthStatus, err error) {
	resp := HealthResponse{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
	code := http.StatusOK
	if !status.Healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err != nil {
			resp.Message = err.Error()
		}
	}

	for _, c := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: c.Latency.String()}
		if !c.Healthy {
			cs.Status = "error"
			cs.Error = c.Error
		}
		resp.Checks[c.Name] = cs
	}

	body, merr := json.Marshal(resp)
	if merr != nil {
		h.logger.Error("Failed to encode health response", logger.ErrorField(merr))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
