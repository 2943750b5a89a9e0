package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"learnloop/internal/common/pagination"
	appconfig "learnloop/internal/config"
	"learnloop/internal/events"
	pgRepo "learnloop/internal/infra/adapter/persistence/postgres"
	"learnloop/internal/infra/db"
	"learnloop/internal/infra/provider"
	"learnloop/internal/observability/slo"
	"learnloop/internal/observability/tracing"
	"learnloop/internal/resilience/circuitbreaker"
	"learnloop/pkg/config"
	"learnloop/pkg/ratelimit"
	"learnloop/pkg/security/csp"

	"learnloop/internal/usecase/notify"
	"learnloop/internal/usecase/stats"
	webhookUC "learnloop/internal/usecase/webhook"

	hhttp "learnloop/internal/handler/http"
	hauth "learnloop/internal/handler/http/auth"
	"learnloop/internal/handler/http/middleware"
	hnotification "learnloop/internal/handler/http/notification"
	"learnloop/internal/handler/http/requestid"
	hwebhook "learnloop/internal/handler/http/webhook"
	authservice "learnloop/internal/service/auth"
)

func main() {
	logger := initLogger()
	validateJWTSecret(logger)
	authService := initAuthService(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	serverComponents := setupServer(logger, database, authService, version)

	runServer(logger, serverComponents, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// validateJWTSecret validates the JWT_SECRET environment variable for security requirements.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	// Enforce a 256-bit minimum.
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initAuthService builds the credential provider and validates the configured
// principals at startup. Password policy comes from the optional security
// config file; defaults apply when SECURITY_CONFIG is unset.
func initAuthService(logger *slog.Logger) *authservice.AuthService {
	minPasswordLength := 12
	weakPasswords := []string{"password", "123456", "admin", "test", "secret"}

	if path := os.Getenv("SECURITY_CONFIG"); path != "" {
		secCfg, err := appconfig.LoadSecurityConfig(path)
		if err != nil {
			logger.Error("failed to load security config", slog.Any("error", err))
			os.Exit(1)
		}
		if secCfg.GetMinPasswordLength() > 0 {
			minPasswordLength = secCfg.GetMinPasswordLength()
		}
		if wp := secCfg.GetWeakPasswords(); len(wp) > 0 {
			weakPasswords = wp
		}
		logger.Info("security config loaded",
			slog.String("path", path),
			slog.Int("min_password_length", minPasswordLength))
	}

	authProvider := hauth.NewEnvAuthProvider(minPasswordLength, weakPasswords)
	authService := authservice.NewAuthService(authProvider)

	// Fail fast on misconfigured principals: an API with no valid admin
	// account cannot be administered.
	reqs := authProvider.GetRequirements()
	for _, envKey := range reqs.RequiredEnvVars {
		if os.Getenv(envKey) == "" {
			logger.Error("required credential environment variable not set",
				slog.String("env", envKey))
			os.Exit(1)
		}
	}
	return authService
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// loadWebhookSecrets reads the provider config file and extracts the inbound
// webhook signing secrets. Without a config file, callbacks are accepted
// unsigned, which is only acceptable in development.
func loadWebhookSecrets(logger *slog.Logger) map[string]string {
	path := os.Getenv("PROVIDERS_CONFIG")
	if path == "" {
		logger.Warn("PROVIDERS_CONFIG not set; webhook signatures will not be verified")
		return nil
	}
	cfg, err := provider.LoadConfig(path)
	if err != nil {
		logger.Error("failed to load provider config", slog.Any("error", err))
		os.Exit(1)
	}
	secrets := cfg.WebhookSecrets()
	logger.Info("webhook secrets loaded", slog.Int("providers", len(secrets)))
	return secrets
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler     http.Handler
	IPStore     ratelimit.RateLimitStore
	UserStore   ratelimit.RateLimitStore
	IPWindow    time.Duration
	UserWindow  time.Duration
	AuthLimiter *middleware.RateLimiter // Legacy rate limiter for cleanup
}

// newRateLimitStore builds the configured rate limit backend. With
// RATE_LIMIT_REDIS_ADDR set, counts live in Redis and are shared across API
// replicas; otherwise each process keeps its own in-memory store.
func newRateLimitStore(logger *slog.Logger, maxKeys int, keyPrefix string) ratelimit.RateLimitStore {
	addr := os.Getenv("RATE_LIMIT_REDIS_ADDR")
	if addr == "" {
		return ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: maxKeys,
		})
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("RATE_LIMIT_REDIS_PASSWORD"),
	})
	logger.Info("rate limiting: redis store enabled",
		slog.String("addr", addr),
		slog.String("key_prefix", keyPrefix))
	return ratelimit.NewRedisRateLimitStore(client, ratelimit.RedisStoreConfig{
		KeyPrefix: keyPrefix,
	})
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, database *sql.DB, authService *authservice.AuthService, version string) *ServerComponents {
	// Repositories run through a DB circuit breaker so a dead database sheds
	// load fast instead of piling up blocked queries.
	dbCB := circuitbreaker.NewDBCircuitBreaker(database)
	notificationRepo := pgRepo.NewNotificationRepo(dbCB)
	preferenceRepo := pgRepo.NewPreferenceRepo(dbCB)
	templateRepo := pgRepo.NewTemplateRepo(dbCB)
	directoryRepo := pgRepo.NewDirectoryRepo(dbCB)
	interactionRepo := pgRepo.NewInteractionRepo(dbCB)

	bus := events.NewBus()
	bus.Subscribe(events.NewAuditObserver(logger))

	resolver := notify.NewPreferenceResolver(preferenceRepo, logger)
	factory := notify.NewFactory(resolver, templateRepo, directoryRepo, logger)

	// The API process persists QUEUED rows and lets the worker's poll loop
	// pick them up; it runs no in-process dispatch queue.
	notifySvc := notify.NewService(factory, notificationRepo, nil, bus, logger)

	ingestor := webhookUC.NewIngestor(
		notificationRepo,
		interactionRepo,
		preferenceRepo,
		loadWebhookSecrets(logger),
		bus,
		logger,
	)

	aggregator := stats.NewAggregator(notificationRepo, interactionRepo, logger)

	// Load rate limiting configuration
	rateLimitConfig, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create appropriate IPExtractor based on configuration
	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	// Initialize rate limiting components (if enabled)
	var ipRateLimiter *middleware.IPRateLimiter
	var webhookRateLimiter *middleware.IPRateLimiter
	var userRateLimiter *middleware.UserRateLimiter
	var ipStore ratelimit.RateLimitStore
	var userStore ratelimit.RateLimitStore
	var ipCircuitBreaker *ratelimit.CircuitBreaker
	var userCircuitBreaker *ratelimit.CircuitBreaker

	if rateLimitConfig.Enabled {
		// Separate stores for IP and user rate limiting so memory
		// management and cleanup stay independent
		ipStore = newRateLimitStore(logger, rateLimitConfig.MaxActiveKeys, "ratelimit:ip:")
		userStore = newRateLimitStore(logger, rateLimitConfig.MaxActiveKeys, "ratelimit:user:")

		algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
		metrics := ratelimit.NewPrometheusMetrics()

		ipCircuitBreaker = ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})
		webhookCircuitBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})
		userCircuitBreaker = ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})

		// Create IP rate limiter
		ipRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor,
			ipStore,
			algorithm,
			metrics,
			ipCircuitBreaker,
		)

		// Provider callbacks can burst well past interactive traffic, so
		// webhooks get their own limiter and store rather than sharing
		// per-IP counts with the API endpoints.
		webhookStore := newRateLimitStore(logger, rateLimitConfig.MaxActiveKeys, "ratelimit:webhook:")
		webhookRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit * 10,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor,
			webhookStore,
			algorithm,
			metrics,
			webhookCircuitBreaker,
		)

		// Create user rate limiter with tier-based limits
		tierLimits := make(map[ratelimit.UserTier]middleware.TierLimit)
		for _, tierCfg := range rateLimitConfig.TierLimits {
			tierLimits[tierCfg.Tier] = middleware.TierLimit{
				Limit:  tierCfg.Limit,
				Window: tierCfg.Window,
			}
		}

		userRateLimiter = middleware.NewUserRateLimiter(middleware.UserRateLimiterConfig{
			Store:               userStore,
			Algorithm:           algorithm,
			Metrics:             metrics,
			CircuitBreaker:      userCircuitBreaker,
			UserExtractor:       hauth.CallerExtractor{},
			TierLimits:          tierLimits,
			DefaultLimit:        rateLimitConfig.DefaultUserLimit,
			DefaultWindow:       rateLimitConfig.DefaultUserWindow,
			SkipUnauthenticated: true,
			Clock:               &ratelimit.SystemClock{},
		})

		logger.Info("rate limiting initialized",
			slog.Bool("enabled", true),
			slog.Int("ip_limit", rateLimitConfig.DefaultIPLimit),
			slog.Duration("ip_window", rateLimitConfig.DefaultIPWindow),
			slog.Int("user_limit", rateLimitConfig.DefaultUserLimit),
			slog.Duration("user_window", rateLimitConfig.DefaultUserWindow),
			slog.Int("max_keys", rateLimitConfig.MaxActiveKeys),
		)
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	// Setup routes with rate limiting middleware
	rootMux, authLimiter := setupRoutes(routeDeps{
		database:           database,
		version:            version,
		notifySvc:          notifySvc,
		ingestor:           ingestor,
		aggregator:         aggregator,
		authService:        authService,
		ipExtractor:        ipExtractor,
		webhookRateLimiter: webhookRateLimiter,
		userRateLimiter:    userRateLimiter,
		ipStore:            ipStore,
		userStore:          userStore,
		ipBreaker:          ipCircuitBreaker,
		userBreaker:        userCircuitBreaker,
		logger:             logger,
	})
	handler := applyMiddleware(logger, rootMux, ipRateLimiter)

	// Return server components including stores for cleanup
	return &ServerComponents{
		Handler:     handler,
		IPStore:     ipStore,
		UserStore:   userStore,
		IPWindow:    rateLimitConfig.DefaultIPWindow,
		UserWindow:  rateLimitConfig.DefaultUserWindow,
		AuthLimiter: authLimiter,
	}
}

// routeDeps bundles the dependencies for route registration.
type routeDeps struct {
	database           *sql.DB
	version            string
	notifySvc          *notify.Service
	ingestor           *webhookUC.Ingestor
	aggregator         *stats.Aggregator
	authService        *authservice.AuthService
	ipExtractor        middleware.IPExtractor
	webhookRateLimiter *middleware.IPRateLimiter
	userRateLimiter    *middleware.UserRateLimiter
	ipStore            ratelimit.RateLimitStore
	userStore          ratelimit.RateLimitStore
	ipBreaker          *ratelimit.CircuitBreaker
	userBreaker        *ratelimit.CircuitBreaker
	logger             *slog.Logger
}

// setupRoutes registers all HTTP routes (public and protected).
func setupRoutes(deps routeDeps) (*http.ServeMux, *middleware.RateLimiter) {
	// Token issuance is brute-forceable, so it gets a tight fixed limit:
	// 5 requests per minute per IP.
	authRateLimiter := middleware.NewRateLimiter(5, 1*time.Minute, deps.ipExtractor)

	publicMux := http.NewServeMux()
	publicMux.Handle("/auth/token", authRateLimiter.Middleware(hauth.TokenHandler(deps.authService)))

	// Health endpoints (no authentication)
	publicMux.Handle("/health", &hhttp.HealthHandler{
		DB:                   deps.database,
		Version:              deps.version,
		IPRateLimiterStore:   deps.ipStore,
		UserRateLimiterStore: deps.userStore,
		IPCircuitBreaker:     deps.ipBreaker,
		UserCircuitBreaker:   deps.userBreaker,
		RateLimiterEnabled:   deps.ipStore != nil,
	})
	publicMux.Handle("/ready", &hhttp.ReadyHandler{DB: deps.database})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", hhttp.MetricsHandler())

	// Provider delivery callbacks authenticate via HMAC signatures, not
	// bearer tokens, and carry their own rate limiter.
	hwebhook.Register(publicMux, deps.ingestor, deps.webhookRateLimiter, deps.logger)

	// Load pagination configuration
	paginationCfg := pagination.LoadFromEnv()

	privateMux := http.NewServeMux()
	hnotification.Register(privateMux, deps.notifySvc, deps.aggregator, paginationCfg, deps.logger)

	// User rate limiting runs inside authentication so the caller identity
	// is in context when the limiter looks it up.
	var protected http.Handler = privateMux
	if deps.userRateLimiter != nil {
		protected = deps.userRateLimiter.Middleware()(protected)
	}
	protected = hauth.Authz(protected)

	rootMux := http.NewServeMux()
	rootMux.Handle("/auth/token", publicMux)
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/webhooks/", publicMux)
	rootMux.Handle("/", protected)

	// Return auth rate limiter for cleanup management
	return rootMux, authRateLimiter
}

// applyMiddleware wraps the handler with middleware chain.
// Middleware order: CORS → Request ID → IP Rate Limit → Recovery → Logging → Tracing → Input Validation → Body Limit → CSP → Metrics → Timeout
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	// Load CORS configuration from environment variables
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	corsConfig.Logger = logger

	logger.Info("CORS enabled",
		slog.Int("allowed_origins_count", len(corsConfig.AllowedOrigins)),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Int("max_age", corsConfig.MaxAge))

	// Load CSP configuration
	cspConfig, err := config.LoadCSPConfig()
	if err != nil {
		logger.Error("failed to load CSP configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create CSP middleware
	var cspMiddleware func(http.Handler) http.Handler
	if cspConfig.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:       true,
			DefaultPolicy: csp.StrictPolicy(),
			ReportOnly:    cspConfig.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
		logger.Info("CSP enabled",
			slog.Bool("report_only", cspConfig.ReportOnly))
	} else {
		cspMiddleware = func(next http.Handler) http.Handler {
			return next
		}
		logger.Warn("CSP is disabled")
	}

	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = hhttp.Timeout(30 * time.Second)(middlewareChain)
	middlewareChain = hhttp.MetricsMiddleware(middlewareChain)
	middlewareChain = cspMiddleware(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.InputValidation()(middlewareChain)
	middlewareChain = tracing.Middleware(middlewareChain)
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = hhttp.Recover(logger)(middlewareChain)

	// Apply IP rate limiting if enabled
	if ipRateLimiter != nil {
		middlewareChain = ipRateLimiter.Middleware()(middlewareChain)
	}

	middlewareChain = requestid.Middleware(middlewareChain)
	middlewareChain = middleware.CORS(*corsConfig)(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	// Create a context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background cleanup goroutines for rate limit stores
	cleanupInterval := hhttp.CleanupInterval()
	if components.IPStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupInterval, components.IPWindow, "ip")
	}
	if components.UserStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.UserStore, cleanupInterval, components.UserWindow, "user")
	}
	if components.AuthLimiter != nil {
		go hhttp.StartRateLimitCleanupLegacy(ctx, components.AuthLimiter, cleanupInterval, "auth")
	}

	// Recompute SLO gauges from request metrics once a minute.
	sloUpdater := slo.NewUpdater(prometheus.DefaultGatherer, time.Minute, logger)
	go sloUpdater.Run(ctx)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Cancel background goroutines (rate limit cleanup, SLO updater)
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
