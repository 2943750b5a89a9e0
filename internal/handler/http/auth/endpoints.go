package auth

import "strings"

// PublicEndpoints lists paths reachable without a JWT.
//
// Justification for each public endpoint:
// - /health, /ready, /live: orchestration health checks
// - /metrics: Prometheus scraping
// - /auth/token: token issuance (cannot require a token to get one)
// - /webhooks/: provider callbacks authenticate with an HMAC signature,
//   not a JWT; providers cannot hold bearer tokens
var PublicEndpoints = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
	"/auth/token",
	"/webhooks/",
}

// IsPublicEndpoint checks if a given path is a public endpoint.
//
// Matching logic:
// - Endpoints ending with '/' use prefix matching (e.g., /webhooks/* matches
//   /webhooks/mail-relay)
// - Endpoints without '/' require an exact match, a trailing slash, or query
//   params only, so /health does not match /healthcheck or /health/detail
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if strings.HasSuffix(endpoint, "/") {
			if strings.HasPrefix(path, endpoint) {
				return true
			}
			continue
		}

		if path == endpoint {
			return true
		}
		if path == endpoint+"/" {
			return true
		}
		if strings.HasPrefix(path, endpoint+"?") {
			return true
		}
	}
	return false
}
