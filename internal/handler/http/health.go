// Package http provides HTTP handlers and middleware for the web application.
// It includes the notification API handlers, the provider webhook endpoint,
// health check endpoints, metrics collection, authentication, and various
// middleware components.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"learnloop/pkg/ratelimit"
)

// HealthResponse is the JSON body for /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus reports one subsystem. Status is "healthy", "degraded" or
// "unhealthy"; only "unhealthy" pulls the whole endpoint to 503.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RateLimiterHealthInfo is the per-limiter slice of the health report.
type RateLimiterHealthInfo struct {
	ActiveKeys     int    `json:"active_keys"`
	MemoryBytes    int64  `json:"memory_bytes"`
	CircuitBreaker string `json:"circuit_breaker"`
}

// HealthHandler answers /health with database connectivity plus rate limiter
// occupancy, so operators can see key counts and breaker states without
// scraping metrics.
type HealthHandler struct {
	DB      *sql.DB
	Version string

	IPRateLimiterStore   ratelimit.RateLimitStore
	UserRateLimiterStore ratelimit.RateLimitStore
	IPCircuitBreaker     *ratelimit.CircuitBreaker
	UserCircuitBreaker   *ratelimit.CircuitBreaker
	RateLimiterEnabled   bool
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	allHealthy := true

	if h.DB != nil {
		dbCheck := h.checkDatabase(ctx)
		checks["database"] = dbCheck
		if dbCheck.Status == "unhealthy" {
			allHealthy = false
		}
	} else {
		checks["database"] = CheckStatus{Status: "unhealthy", Message: "not configured"}
		allHealthy = false
	}

	if h.RateLimiterEnabled {
		// Informational only. An open breaker means fail-open admission,
		// which is operational, not an outage.
		checks["rate_limiter"] = h.checkRateLimiter(ctx)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("health: failed to encode response: %v", err)
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: "unhealthy", Message: err.Error()}
	}

	stats := h.DB.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}

	// MaxOpenConnections of 0 means unlimited, which makes the utilization
	// math meaningless.
	if stats.MaxOpenConnections == 0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "connection pool max connections not configured",
			Details: details,
		}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= 80.0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "connection pool utilization above 80%",
			Details: details,
		}
	}

	return CheckStatus{Status: "healthy", Details: details}
}

func (h *HealthHandler) checkRateLimiter(ctx context.Context) CheckStatus {
	details := make(map[string]any)
	if h.IPRateLimiterStore != nil {
		details["ip"] = limiterInfo(ctx, h.IPRateLimiterStore, h.IPCircuitBreaker)
	}
	if h.UserRateLimiterStore != nil {
		details["user"] = limiterInfo(ctx, h.UserRateLimiterStore, h.UserCircuitBreaker)
	}
	return CheckStatus{Status: "healthy", Details: details}
}

func limiterInfo(ctx context.Context, store ratelimit.RateLimitStore, cb *ratelimit.CircuitBreaker) RateLimiterHealthInfo {
	info := RateLimiterHealthInfo{CircuitBreaker: "not_configured"}
	if keys, err := store.KeyCount(ctx); err == nil {
		info.ActiveKeys = keys
	}
	if mem, err := store.MemoryUsage(ctx); err == nil {
		info.MemoryBytes = mem
	}
	if cb != nil {
		info.CircuitBreaker = cb.State().String()
	}
	return info
}

// ReadyHandler answers Kubernetes readiness checks: 200 once the database
// accepts connections, 503 before that.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.PingContext(ctx); err != nil {
		http.Error(w, "database not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		log.Printf("ready: failed to write response: %v", err)
	}
}

// LiveHandler answers liveness checks. Reaching it at all is the check.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		log.Printf("alive: failed to write response: %v", err)
	}
}
