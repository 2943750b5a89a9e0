package middleware

import (
	"net/http"

	"learnloop/pkg/security/csp"
)

// CSPMiddlewareConfig configures the Content-Security-Policy middleware.
type CSPMiddlewareConfig struct {
	// Enabled controls whether CSP headers are applied at all, so the
	// header can be toggled off via environment without a rebuild.
	Enabled bool

	// DefaultPolicy is applied to every response.
	DefaultPolicy *csp.Policy

	// ReportOnly switches to the report-only header, which surfaces
	// violations without enforcing the policy.
	ReportOnly bool
}

// CSPMiddleware stamps a Content-Security-Policy header on every response.
// The API only emits JSON, but error bodies opened directly in a browser
// should still be inert.
type CSPMiddleware struct {
	enabled bool
	header  string
	value   string
}

func NewCSPMiddleware(config CSPMiddlewareConfig) *CSPMiddleware {
	m := &CSPMiddleware{enabled: config.Enabled}
	if config.DefaultPolicy == nil {
		m.enabled = false
		return m
	}
	policy := config.DefaultPolicy.ReportOnly(config.ReportOnly)
	m.header = policy.HeaderName()
	m.value = policy.Build()
	if m.value == "" {
		m.enabled = false
	}
	return m
}

// Middleware returns the wrapping handler. The header name and value are
// fixed at construction, so the hot path is a single Header().Set.
func (m *CSPMiddleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !m.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(m.header, m.value)
			next.ServeHTTP(w, r)
		})
	}
}
