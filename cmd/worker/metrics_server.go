package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learnloop/internal/dispatch"
	"learnloop/pkg/config"
)

// ProviderStatus is one provider breaker's state in /health/providers output.
type ProviderStatus struct {
	Name               string `json:"name"`
	State              string `json:"state"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
}

type providerHealthResponse struct {
	Healthy   bool             `json:"healthy"`
	Providers []ProviderStatus `json:"providers"`
}

// startMetricsServer serves /metrics, a liveness /health, and per-provider
// breaker state on /health/providers, listening on METRICS_PORT (default
// 9090). It shuts down gracefully when ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, dispatcher *dispatch.Dispatcher) *http.Server {
	port := config.GetEnvInt("METRICS_PORT", 9090)
	if port <= 0 || port > 65535 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/health/providers", providerHealthHandler(dispatcher))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
			return
		}
		logger.Info("metrics server stopped")
	}()

	return server
}

// providerHealthHandler answers 503 when any provider breaker is open, so an
// orchestrator can see a wedged delivery backend without scraping metrics.
func providerHealthHandler(dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			writeJSON(w, http.StatusServiceUnavailable,
				map[string]string{"error": "dispatch engine not initialized"})
			return
		}

		states := dispatcher.BreakerStates()
		providers := make([]ProviderStatus, 0, len(states))
		healthy := true
		for name, state := range states {
			open := state == "open"
			healthy = healthy && !open
			providers = append(providers, ProviderStatus{
				Name:               name,
				State:              state,
				CircuitBreakerOpen: open,
			})
		}
		sort.Slice(providers, func(i, j int) bool {
			return providers[i].Name < providers[j].Name
		})

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, providerHealthResponse{Healthy: healthy, Providers: providers})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
