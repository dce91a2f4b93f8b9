package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"load-forecast/pkg/logger"
)

// Check reports whether one dependency is usable
type Check func(ctx context.Context) error

// HealthHandler provides liveness and readiness endpoints
type HealthHandler struct {
	checks      map[string]Check
	startTime   time.Time
	serviceName string
	version     string
	log         *logger.Logger
}

// NewHealthHandler creates a health handler. Every check must pass for the
// service to report ready.
func NewHealthHandler(serviceName, version string, checks map[string]Check) *HealthHandler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthHandler{
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
		log:         logger.Component("health"),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "ready" or "unavailable"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if the process is serving HTTP
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness runs every check and returns 503 if any fails
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]ComponentHealth, len(names))
	ready := true
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		elapsed := time.Since(start)

		if err != nil {
			ready = false
			results[name] = ComponentHealth{Status: "unhealthy", ResponseTime: elapsed.String(), Error: err.Error()}
			continue
		}
		results[name] = ComponentHealth{Status: "healthy", ResponseTime: elapsed.String()}
	}

	status := HealthStatus{
		Status:    "ready",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
	}

	code := http.StatusOK
	if !ready {
		status.Status = "unavailable"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", results)
	}

	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
