package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/platinummonkey/backoffice/pkg/access"
	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/api"
	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/config"
	"github.com/platinummonkey/backoffice/pkg/identity"
	"github.com/platinummonkey/backoffice/pkg/middleware"
	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

// rejectAllVerifier stands in when no identity provider is configured.
type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(context.Context, string) (auth.Principal, error) {
	return auth.Principal{}, errors.New("identity provider not configured")
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting backoffice service")

	ctx := context.Background()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.QueryTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}
	if err := tenancy.Migrate(ctx, db); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}
	logger.Info("Database ready")

	// Sidebar navigation templates
	templates := tenancy.DefaultSidebarTemplates()
	var stopWatch func()
	if cfg.Sidebar.TemplatePath != "" {
		templates, err = tenancy.LoadSidebarTemplates(cfg.Sidebar.TemplatePath)
		if err != nil {
			logger.WithError(err).Error("Failed to load sidebar templates")
			os.Exit(1)
		}
		stopWatch, err = templates.Watch(cfg.Sidebar.TemplatePath, func(err error) {
			logger.WithError(err).Warn("Sidebar template reload failed")
		})
		if err != nil {
			logger.WithError(err).Error("Failed to watch sidebar templates")
			os.Exit(1)
		}
	}

	// Redis (distributed rate limiting and readiness)
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup")
		}
	}

	// Identity provider boundary
	var verifier identity.Verifier
	if cfg.Identity.IssuerURL != "" {
		verifier, err = identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			IssuerURL:    cfg.Identity.IssuerURL,
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			RedirectURL:  cfg.Identity.RedirectURL,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to initialize OIDC verifier")
			os.Exit(1)
		}
	} else {
		logger.Warn("No OIDC issuer configured, all requests will be rejected")
		verifier = rejectAllVerifier{}
	}

	var metadata access.RoleSetter = identity.NopMetadataStore{}
	if cfg.Identity.MetadataURL != "" {
		metadata = identity.NewHTTPMetadataStore(cfg.Identity.MetadataURL, cfg.Identity.MetadataToken, nil)
	}

	// Observability
	metrics := observability.NewMetrics(nil)
	stopDBStats := metrics.CollectDBStats(db, 15*time.Second)

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize OpenTelemetry")
			os.Exit(1)
		}
	}

	// Core wiring
	store := tenancy.NewStore(db, templates)
	recorder := activity.NewRecorder(activity.NewStore(db))
	resolver := access.NewResolver(store)
	acceptor := access.NewAcceptor(store, recorder, metadata, nil)
	engine := access.NewEngine(store, recorder, nil)

	mws := []mux.MiddlewareFunc{
		middleware.RequestID,
		middleware.Tracing("backoffice"),
		middleware.Metrics(metrics),
		middleware.Principal(verifier, logger),
	}
	if cfg.RateLimit.Enabled {
		rlCfg := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Distributed {
			limiter := middleware.NewDistributedRateLimiter(redisClient, rlCfg, "backoffice")
			mws = append(mws, middleware.DistributedRateLimit(limiter, metrics, logger))
		} else {
			mws = append(mws, middleware.RateLimit(middleware.NewRateLimiter(rlCfg), metrics))
		}
	}

	server := api.NewServer(api.ServerConfig{
		Store:       store,
		Resolver:    resolver,
		Acceptor:    acceptor,
		Permissions: engine,
		Feed:        recorder,
		Logger:      logger,
		Metrics:     metrics,
		Middleware:  mws,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	health := observability.NewHealthChecker(db, redisClient)
	probeMux := http.NewServeMux()
	probeMux.HandleFunc("/healthz", health.Liveness)
	probeMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		probeMux.Handle("/metrics", metrics.Handler())
	}
	probeServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: probeMux,
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return probeServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		stopDBStats()
		if stopWatch != nil {
			stopWatch()
		}
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		return db.Close()
	})
	if providers != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	go func() {
		logger.Infof("Probe server listening on %s", probeServer.Addr)
		if err := probeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Probe server failed")
		}
	}()
	go func() {
		logger.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
