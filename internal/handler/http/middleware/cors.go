package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// CORSConfig is the cross-origin policy for the notification API. The API is
// consumed by the learning platform's web frontends, so the origin whitelist
// is mandatory: a deploy without CORS_ALLOWED_ORIGINS fails at startup
// instead of silently rejecting every dashboard request.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
	Logger *slog.Logger
}

const defaultCORSMaxAge = 86400

// LoadCORSConfig reads the CORS policy from the environment.
//
//	CORS_ALLOWED_ORIGINS  comma-separated origins, required
//	CORS_ALLOWED_METHODS  optional, defaults to the API's method set
//	CORS_ALLOWED_HEADERS  optional, defaults to Content-Type/Authorization/X-Request-ID
//	CORS_MAX_AGE          optional, seconds, defaults to 86400
func LoadCORSConfig() (*CORSConfig, error) {
	origins, err := parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if err != nil {
		return nil, err
	}

	cfg := &CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         defaultCORSMaxAge,
	}

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_METHODS")); raw != "" {
		methods, err := parseMethods(raw)
		if err != nil {
			return nil, err
		}
		cfg.AllowedMethods = methods
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_HEADERS")); raw != "" {
		cfg.AllowedHeaders = splitTrimmed(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_MAX_AGE")); raw != "" {
		maxAge, err := strconv.Atoi(raw)
		if err != nil || maxAge < 0 {
			return nil, fmt.Errorf("CORS_MAX_AGE must be a non-negative integer, got %q", raw)
		}
		cfg.MaxAge = maxAge
	}
	return cfg, nil
}

func parseOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS environment variable is required")
	}
	origins := make([]string, 0, 4)
	for _, origin := range splitTrimmed(raw) {
		u, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		switch {
		case u.Scheme != "http" && u.Scheme != "https":
			return nil, fmt.Errorf("origin must use http or https: %q", origin)
		case u.Path != "" || u.RawQuery != "" || u.Fragment != "":
			return nil, fmt.Errorf("origin must be scheme://host[:port] only: %q", origin)
		}
		origins = append(origins, strings.ToLower(origin))
	}
	if len(origins) == 0 {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS contains no valid origins")
	}
	return origins, nil
}

var corsMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "OPTIONS": true, "HEAD": true,
}

func parseMethods(raw string) ([]string, error) {
	methods := splitTrimmed(raw)
	for i, m := range methods {
		methods[i] = strings.ToUpper(m)
		if !corsMethods[methods[i]] {
			return nil, fmt.Errorf("invalid HTTP method in CORS_ALLOWED_METHODS: %q", m)
		}
	}
	return methods, nil
}

func splitTrimmed(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *CORSConfig) originAllowed(origin string) bool {
	origin = strings.ToLower(origin)
	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// CORS enforces the origin whitelist. Allowed origins are echoed back with
// credentials enabled (the frontends send bearer tokens); preflights answer
// 204 without reaching the handler. Disallowed origins get no CORS headers,
// which makes the browser block the response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin request.
				next.ServeHTTP(w, r)
				return
			}

			if !cfg.originAllowed(origin) {
				if cfg.Logger != nil {
					cfg.Logger.Warn("CORS: origin not allowed",
						slog.String("origin", origin),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method))
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
