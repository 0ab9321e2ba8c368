package monitoring

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for a readiness evaluation.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Failed lists the components that are not up.
func (r HealthReport) Failed() []string {
	var failed []string
	for _, check := range r.Checks {
		if check.Status != StatusUp {
			failed = append(failed, check.Component)
		}
	}
	return failed
}

// Probe checks one dependency. A nil error means the dependency is up.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by dependencies that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe pings the database behind db.
func DatabaseProbe(db *gorm.DB) Probe {
	return Probe{Name: "database", Check: func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// PingProbe wraps any Pinger, such as the Redis cache.
func PingProbe(name string, p Pinger) Probe {
	return Probe{Name: name, Check: p.Ping}
}

// Health runs readiness probes, each bounded by its own timeout.
type Health struct {
	probes  []Probe
	timeout time.Duration
}

// NewHealth constructs a Health evaluator. Probes without a name or check are ignored.
func NewHealth(timeout time.Duration, probes ...Probe) *Health {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	h := &Health{timeout: timeout}
	for _, probe := range probes {
		if probe.Name != "" && probe.Check != nil {
			h.probes = append(h.probes, probe)
		}
	}
	return h
}

// Evaluate runs every probe. A timed out probe is degraded and a failed one is down.
func (h *Health) Evaluate(ctx context.Context) HealthReport {
	report := HealthReport{
		Success: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(h.probes)),
	}

	for _, probe := range h.probes {
		result := h.run(ctx, probe)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			report.Success = false
			if report.Status != StatusDown {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (h *Health) run(ctx context.Context, probe Probe) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		result.Component = probe.Name
		result.Duration = time.Since(start)
	}()

	err := probe.Check(ctx)
	switch {
	case err == nil:
		return ProbeResult{Status: StatusUp}
	case ctx.Err() != nil:
		return ProbeResult{Status: StatusDegraded, Details: ctx.Err().Error()}
	default:
		return ProbeResult{Status: StatusDown, Details: err.Error()}
	}
}
