package store

import (
	"context"
	"sync"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/health"
)

var (
	healthMu     sync.Mutex
	lastHealthOK time.Time
)

// HealthCheck returns the health status of the database.
func (db *DB) HealthCheck() health.ComponentHealth {
	h := health.ComponentHealth{
		Name:   "database",
		Status: health.StatusOK,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		h.Status = health.StatusError
		h.Message = err.Error()
		h.LastError = health.Stamp(time.Now())
		return h
	}

	// Check we can query
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		h.Status = health.StatusDegraded
		h.Message = "cannot query users: " + err.Error()
		h.LastError = health.Stamp(time.Now())
		return h
	}

	healthMu.Lock()
	lastHealthOK = time.Now()
	h.LastOK = health.Stamp(lastHealthOK)
	healthMu.Unlock()
	return h
}
