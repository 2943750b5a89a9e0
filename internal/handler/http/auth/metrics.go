package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Token issuance attempts by role and result.",
		},
		[]string{"role", "result"},
	)

	authzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization middleware decisions.",
		},
		[]string{"decision"},
	)
)

// RecordAuthRequest counts one token issuance attempt.
func RecordAuthRequest(role, result string) {
	authRequestsTotal.WithLabelValues(role, result).Inc()
}

// RecordAuthz counts one middleware allow/deny decision.
func RecordAuthz(decision string) {
	authzDecisionsTotal.WithLabelValues(decision).Inc()
}
