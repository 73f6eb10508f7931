package handlers

import (
	"net/http"

	"github.com/wonny/vnvalue/internal/scheduler"
	"github.com/wonny/vnvalue/internal/scheduler/jobs"
)

// EngineHandler reports the background engine health poll
type EngineHandler struct {
	health    *jobs.HealthJob
	scheduler *scheduler.Scheduler
	baseURL   string
	polling   bool
}

// NewEngineHandler creates a new engine handler.
// polling is false when the engine runs locally and is not polled.
func NewEngineHandler(health *jobs.HealthJob, sched *scheduler.Scheduler, baseURL string, polling bool) *EngineHandler {
	return &EngineHandler{
		health:    health,
		scheduler: sched,
		baseURL:   baseURL,
		polling:   polling,
	}
}

// EngineStatus is the response of GET /api/engine/health
type EngineStatus struct {
	BaseURL string                        `json:"base_url"`
	Polling bool                          `json:"polling"`
	Last    *jobs.HealthReport            `json:"last,omitempty"`
	Jobs    map[string]scheduler.JobStats `json:"jobs,omitempty"`
}

// Health returns the latest poll result
// GET /api/engine/health
func (h *EngineHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := EngineStatus{
		BaseURL: h.baseURL,
		Polling: h.polling,
	}
	if h.health != nil {
		status.Last = h.health.Last()
	}
	if h.scheduler != nil {
		status.Jobs = h.scheduler.GetJobStats()
	}

	respondJSON(w, http.StatusOK, status)
}
