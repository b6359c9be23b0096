package handlers

import (
	"net/http"
	"time"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/health"
)

// HealthHandler serves the liveness, readiness and detail probes.
type HealthHandler struct {
	prober  *health.Prober
	version string
	startAt time.Time
}

func NewHealthHandler(version string, prober *health.Prober) *HealthHandler {
	if prober == nil {
		prober = health.NewProber(0, nil, nil)
	}
	return &HealthHandler{prober: prober, version: version, startAt: time.Now()}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type ReadinessResponse struct {
	Status     string                           `json:"status"`
	Components map[string]health.ComponentCheck `json:"components,omitempty"`
}

type DetailedResponse struct {
	Status     string                           `json:"status"`
	Version    string                           `json:"version"`
	Uptime     string                           `json:"uptime"`
	Components map[string]health.ComponentCheck `json:"components"`
}

// Liveness never touches dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  h.uptime(),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.prober.Len() == 0 {
		writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready"})
		return
	}
	report := h.prober.CheckAll(r.Context())
	resp := ReadinessResponse{Status: "ready", Components: report.Components}
	if !report.Healthy {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	report := h.prober.CheckAll(r.Context())
	resp := DetailedResponse{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     h.uptime(),
		Components: report.Components,
	}
	code := http.StatusOK
	if !report.Healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) uptime() string {
	return time.Since(h.startAt).Truncate(time.Second).String()
}
