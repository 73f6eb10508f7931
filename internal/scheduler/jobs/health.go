package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vnvalue/internal/external/engine"
	"github.com/wonny/vnvalue/internal/scheduler"
	"github.com/wonny/vnvalue/pkg/logger"
)

// HealthChecker is satisfied by *engine.Client
type HealthChecker interface {
	Health(ctx context.Context) (engine.HealthStatus, error)
}

// HealthReport is the outcome of the latest poll
type HealthReport struct {
	Healthy   bool      `json:"healthy"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthJob polls the engine's /health endpoint to keep a hosted engine warm
// and to surface outages. Failures are logged only.
type HealthJob struct {
	checker  HealthChecker
	logger   *logger.Logger
	schedule string
	timeout  time.Duration

	mu   sync.RWMutex
	last *HealthReport
}

// NewHealthJob creates a new engine health job
func NewHealthJob(checker HealthChecker, schedule string, log *logger.Logger) *HealthJob {
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &HealthJob{
		checker:  checker,
		logger:   log,
		schedule: schedule,
		timeout:  10 * time.Second,
	}
}

// Name returns the job name
func (j *HealthJob) Name() string {
	return "engine_health"
}

// Schedule returns the cron schedule (every 10 minutes by default)
func (j *HealthJob) Schedule() string {
	return j.schedule
}

// Run executes one health poll
func (j *HealthJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	report := HealthReport{CheckedAt: time.Now()}
	status, err := j.checker.Health(ctx)
	switch {
	case err != nil:
		report.Error = err.Error()
	case !status.Healthy():
		report.Status = status.Status
		err = fmt.Errorf("engine reports status %q", status.Status)
		report.Error = err.Error()
	default:
		report.Status = status.Status
		report.Healthy = true
	}

	j.mu.Lock()
	j.last = &report
	j.mu.Unlock()

	if err != nil {
		j.logger.WithError(err).Warn("Engine health check failed")
		return err
	}

	j.logger.Debug("Engine healthy")
	return nil
}

// Last returns the latest report, nil before the first poll
func (j *HealthJob) Last() *HealthReport {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.last == nil {
		return nil
	}
	r := *j.last
	return &r
}

// RegisterHealthJob schedules the job unless the engine runs on this machine.
// It reports whether the job was registered.
func RegisterHealthJob(s *scheduler.Scheduler, job *HealthJob, baseURL string) (bool, error) {
	if engine.IsLocalURL(baseURL) {
		return false, nil
	}
	if err := s.AddJob(job); err != nil {
		return false, err
	}
	return true, nil
}
