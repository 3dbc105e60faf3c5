package llm

import (
	"sync"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/health"
)

// tracker records the outcome of backend calls.
type tracker struct {
	mu           sync.RWMutex
	lastSuccess  time.Time
	lastError    time.Time
	lastErrorMsg string
}

func (t *tracker) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSuccess = time.Now()
}

func (t *tracker) recordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = time.Now()
	t.lastErrorMsg = err.Error()
}

// HealthCheck returns the health status of the model backend.
func (c *Client) HealthCheck() health.ComponentHealth {
	h := health.ComponentHealth{
		Name:   "model",
		Status: health.StatusOK,
	}
	if !c.Configured() {
		h.Status = health.StatusDegraded
		h.Message = "API key not configured"
		return h
	}

	c.health.mu.RLock()
	defer c.health.mu.RUnlock()
	h.LastOK = health.Stamp(c.health.lastSuccess)

	if !c.health.lastError.IsZero() {
		// If last error is more recent than last success, we're in trouble
		if c.health.lastError.After(c.health.lastSuccess) {
			h.Status = health.StatusError
			h.Message = c.health.lastErrorMsg
			h.LastError = health.Stamp(c.health.lastError)
		} else if time.Since(c.health.lastError) < 5*time.Minute {
			h.Status = health.StatusDegraded
			h.Message = "recent error: " + c.health.lastErrorMsg
			h.LastError = health.Stamp(c.health.lastError)
		}
	}
	if c.health.lastSuccess.IsZero() && c.health.lastError.IsZero() {
		h.Message = "no API calls yet"
	}
	return h
}
