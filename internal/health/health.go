package health

import (
	"sort"
	"sync"
	"time"
)

// Component status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Name      string     `json:"name"`
	Status    string     `json:"status"` // "ok", "degraded", "error"
	Message   string     `json:"message,omitempty"`
	LastOK    *time.Time `json:"last_ok,omitempty"`
	LastError *time.Time `json:"last_error,omitempty"`
}

// Stamp returns a pointer to t for the LastOK and LastError fields, or nil
// when t is zero so the field is left out of the report.
func Stamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// HealthReport aggregates health from all components.
type HealthReport struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker interface for components to implement.
type HealthChecker interface {
	HealthCheck() ComponentHealth
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func() ComponentHealth

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck() ComponentHealth { return f() }

// Registry holds health checkers for all components.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewRegistry creates a new health registry.
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]HealthChecker),
	}
}

// Register adds a component health checker.
func (r *Registry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Names returns the registered component names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all health checks and returns a report with the overall status:
// "error" if any component errors, else "degraded" if any is degraded, else "ok".
func (r *Registry) Check() HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := HealthReport{
		Status:     StatusOK,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	for name, checker := range r.checkers {
		c := checker.HealthCheck()
		report.Components[name] = c
		switch {
		case c.Status == StatusError:
			report.Status = StatusError
		case c.Status == StatusDegraded && report.Status == StatusOK:
			report.Status = StatusDegraded
		}
	}

	return report
}
