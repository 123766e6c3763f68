package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoguard/cloak/internal/pkg/httputil"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// ComponentCheck reports one dependency's health, per the teacher's
// HealthChecker shape.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthStatus is GET /health's response body.
type HealthStatus struct {
	Status string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                     `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// HealthChecker reports the status of the Authoritative Store, the Fast
// Lookup Store, and how stale the last blacklist materialize run is.
type HealthChecker struct {
	store     *postgres.Store
	rdb       *redis.Client
	startTime time.Time

	lastMaterialize func() time.Time
}

func NewHealthChecker(store *postgres.Store, rdb *redis.Client, lastMaterialize func() time.Time) *HealthChecker {
	return &HealthChecker{store: store, rdb: rdb, startTime: time.Now(), lastMaterialize: lastMaterialize}
}

// HandleHealth always answers 200; the status field in the body conveys
// health, matching the teacher's split between /health and /health/ready.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status: overallStatus(checks),
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// HandleReadiness returns 503 once any critical dependency is down, for use
// as a readiness probe.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runChecks(r.Context())
	status := overallStatus(checks)
	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.JSON(w, httpStatus, map[string]any{"ready": status != "unhealthy", "status": status, "checks": checks})
}

func (hc *HealthChecker) runChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 3)
	go func() { ch <- result{"postgres", hc.checkPostgres(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"materialize", hc.checkMaterializeAge()} }()

	checks := make(map[string]ComponentCheck, 3)
	for i := 0; i < 3; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (hc *HealthChecker) checkPostgres(ctx context.Context) ComponentCheck {
	if hc.store == nil || hc.store.DB == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := hc.store.DB.PingContext(pingCtx); err != nil {
		return ComponentCheck{Status: "down", Latency: time.Since(start).String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).String()}
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.rdb == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := hc.rdb.Ping(pingCtx).Err(); err != nil {
		return ComponentCheck{Status: "down", Latency: time.Since(start).String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ComponentCheck{Status: "up", Latency: time.Since(start).String()}
}

// checkMaterializeAge reports "degraded" once B hasn't been rebuilt from A
// in over ten minutes, since that means blacklist decisions may be stale.
func (hc *HealthChecker) checkMaterializeAge() ComponentCheck {
	if hc.lastMaterialize == nil {
		return ComponentCheck{Status: "up", Message: "not tracked"}
	}
	last := hc.lastMaterialize()
	if last.IsZero() {
		return ComponentCheck{Status: "degraded", Message: "no materialize run yet"}
	}
	age := time.Since(last)
	if age > 10*time.Minute {
		return ComponentCheck{Status: "degraded", Message: fmt.Sprintf("last materialize %s ago", age.Round(time.Second))}
	}
	return ComponentCheck{Status: "up", Message: fmt.Sprintf("last materialize %s ago", age.Round(time.Second))}
}

func overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, c := range checks {
		switch c.Status {
		case "down":
			if c.Message != "not configured" {
				return "unhealthy"
			}
		case "degraded":
			status = "degraded"
		}
	}
	return status
}
