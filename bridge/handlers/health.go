package handlers

import (
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

// HealthStatus is the readiness report.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   time.Time         `json:"time"`
}

// HealthChecker probes the gateway's dependencies.
type HealthChecker struct {
	db        *badger.DB
	inspector *asynq.Inspector
}

// NewHealthChecker creates a checker. The inspector may be nil when the
// queue is not configured.
func NewHealthChecker(db *badger.DB, inspector *asynq.Inspector) *HealthChecker {
	return &HealthChecker{db: db, inspector: inspector}
}

// LivenessHandler reports that the process is up.
func (h *HealthChecker) LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{Status: "ok", Time: time.Now()})
}

// ReadinessHandler reports whether the store and queue are reachable.
func (h *HealthChecker) ReadinessHandler(c echo.Context) error {
	checks := map[string]string{}
	healthy := true

	if h.db == nil || h.db.IsClosed() {
		checks["store"] = "closed"
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	if h.inspector != nil {
		if _, err := h.inspector.Queues(); err != nil {
			checks["queue"] = err.Error()
			healthy = false
		} else {
			checks["queue"] = "ok"
		}
	}

	status := HealthStatus{Status: "ok", Checks: checks, Time: time.Now()}
	code := http.StatusOK
	if !healthy {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
