package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/pkg/httputil"
	"github.com/ignite/smart-affiliate/internal/sources"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// SchedulerStatus is the view of the cron scheduler the health check needs.
type SchedulerStatus interface {
	NextRun() time.Time
	Stats() map[string]int64
}

// breakerReporter is implemented by adapters guarded by a circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// HealthChecker reports on the database, Redis, the discovery loop, each
// source adapter and the scheduler.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	svc         OpportunityService
	adapters    []sources.Adapter
	scheduler   SchedulerStatus
	staleAfter  time.Duration
	startTime   time.Time
	now         func() time.Time
}

// NewHealthChecker creates a new HealthChecker. db and redisClient may be nil;
// their checks then report "not configured". A last run older than staleAfter
// marks discovery as degraded.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, svc OpportunityService, staleAfter time.Duration) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		svc:         svc,
		staleAfter:  staleAfter,
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// SetSources registers the adapters reported as "source:<name>" checks.
func (hc *HealthChecker) SetSources(adapters []sources.Adapter) {
	hc.adapters = adapters
}

// SetScheduler registers the scheduler reported by the "scheduler" check.
func (hc *HealthChecker) SetScheduler(s SchedulerStatus) {
	hc.scheduler = s
}

const healthVersion = "1.0.0"

// HandleHealth returns the health status of all components. It always
// responds 200; the status field conveys health.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(hc.now().Sub(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(hc.now().Sub(hc.startTime)),
	})
}

// HandleReadiness returns 200 only when no critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

// ---------------------------------------------------------------------------
// Individual component checks
// ---------------------------------------------------------------------------

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 3)

	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"discovery", hc.checkDiscovery()} }()

	checks := make(map[string]ComponentCheck, 4+len(hc.adapters))
	for i := 0; i < 3; i++ {
		r := <-ch
		checks[r.name] = r.check
	}

	// Adapter and scheduler state is in-memory, no need to fan out.
	for _, a := range hc.adapters {
		checks["source:"+a.Name()] = checkSource(a)
	}
	checks["scheduler"] = hc.checkScheduler()
	return checks
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), time.Second, err)
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), 500*time.Millisecond, err)
}

// checkDiscovery reports whether a run is in flight and how old the last one is.
func (hc *HealthChecker) checkDiscovery() ComponentCheck {
	if hc.svc.Running() {
		return ComponentCheck{Status: "up", Message: "run in progress"}
	}
	report, err := hc.svc.LatestReport()
	if errors.Is(err, discovery.ErrNoRunYet) {
		return ComponentCheck{Status: "up", Message: "no run yet"}
	}
	if err != nil {
		return ComponentCheck{Status: "degraded", Message: err.Error()}
	}

	age := hc.now().Sub(report.FinishedAt)
	msg := fmt.Sprintf("last run %s ago, %d products", formatUptime(age), report.Products)
	if hc.staleAfter > 0 && age > hc.staleAfter {
		return ComponentCheck{Status: "degraded", Message: "stale: " + msg}
	}
	return ComponentCheck{Status: "up", Message: msg}
}

// checkSource reports an adapter's circuit breaker. An open breaker means the
// source contributes nothing until it recovers.
func checkSource(a sources.Adapter) ComponentCheck {
	br, ok := a.(breakerReporter)
	if !ok {
		return ComponentCheck{Status: "up", Message: string(a.Kind())}
	}
	state := br.BreakerState()
	if state == "open" {
		return ComponentCheck{Status: "degraded", Message: "circuit breaker open"}
	}
	return ComponentCheck{Status: "up", Message: "circuit breaker " + state}
}

// checkScheduler reports the next run and run counters.
func (hc *HealthChecker) checkScheduler() ComponentCheck {
	if hc.scheduler == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}
	stats := hc.scheduler.Stats()
	counters := fmt.Sprintf("runs=%d skipped=%d failures=%d",
		stats["total_runs"], stats["total_skipped"], stats["total_failures"])

	next := hc.scheduler.NextRun()
	if next.IsZero() {
		return ComponentCheck{Status: "degraded", Message: "stopped, " + counters}
	}
	return ComponentCheck{Status: "up", Message: fmt.Sprintf("next run %s, %s", next.UTC().Format(time.RFC3339), counters)}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func latencyCheck(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if a configured database is down
//   - "degraded"  if any check is degraded or a configured non-critical check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != "not configured" {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}
	return "healthy"
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
