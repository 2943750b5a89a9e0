package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

const uuidSegment = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization so normalization stays cheap on the hot path.
var pathPatterns = []*PathPattern{
	// Notification routes with IDs
	{Pattern: regexp.MustCompile(`^/notifications/` + uuidSegment + `/read$`), Template: "/notifications/:id/read"},
	{Pattern: regexp.MustCompile(`^/notifications/` + uuidSegment + `/cancel$`), Template: "/notifications/:id/cancel"},
	{Pattern: regexp.MustCompile(`^/notifications/` + uuidSegment + `/resend$`), Template: "/notifications/:id/resend"},
	{Pattern: regexp.MustCompile(`^/notifications/` + uuidSegment + `$`), Template: "/notifications/:id"},

	// Per-user listing
	{Pattern: regexp.MustCompile(`^/users/[^/]+/notifications$`), Template: "/users/:id/notifications"},

	// Provider webhooks
	{Pattern: regexp.MustCompile(`^/webhooks/[^/]+$`), Template: "/webhooks/:provider"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /notifications/7f9c.../read) to template
// format (e.g., /notifications/:id/read). Static paths remain unchanged.
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/users/u1/notifications?page=1")  // "/users/:id/notifications"
//	NormalizePath("/webhooks/mail-relay/")            // "/webhooks/:provider"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path. Static paths like /health,
	// /metrics and /auth/token pass through unchanged.
	return path
}
