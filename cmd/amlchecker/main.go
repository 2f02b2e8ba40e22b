package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditmemory "amlchecker/internal/adapters/audit/memory"
	auditpostgres "amlchecker/internal/adapters/audit/postgres"
	healthhttp "amlchecker/internal/adapters/http/health"
	historyhttp "amlchecker/internal/adapters/http/history"
	screeninghttp "amlchecker/internal/adapters/http/screening"
	"amlchecker/internal/adapters/screening/opensanctions"
	"amlchecker/internal/adapters/screening/resilient"
	apphealth "amlchecker/internal/application/health"
	apphistory "amlchecker/internal/application/history"
	appscreening "amlchecker/internal/application/screening"
	"amlchecker/internal/core/audit"
	corehealth "amlchecker/internal/core/health"
	"amlchecker/internal/infrastructure/config"
	"amlchecker/internal/infrastructure/database"
	httpinfra "amlchecker/internal/infrastructure/http"
	"amlchecker/internal/infrastructure/http/middleware"
	"amlchecker/internal/infrastructure/http/server"
	"amlchecker/internal/infrastructure/logger"
	"amlchecker/internal/infrastructure/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	auditRepo, checkers, closeStore, err := openAuditStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	traced := httpinfra.NewTracedClient(httpinfra.TracedClientConfig{
		Timeout:         cfg.Screening.HTTPTimeout,
		MaxConnsPerHost: cfg.Screening.MaxConnsPerHost,
	}, log, "opensanctions")

	client := opensanctions.NewClient(opensanctions.Config{
		SearchURL:  cfg.Screening.SearchURL(),
		APIKey:     cfg.Screening.APIKey,
		MaxRetries: cfg.Screening.MaxRetries,
		BaseDelay:  cfg.Screening.RetryBaseDelay,
		MaxDelay:   cfg.Screening.RetryMaxDelay,
	}, traced, m, log)
	provider := resilient.NewProvider(client, resilient.Config{
		MaxConcurrent: cfg.Screening.MaxConcurrent,
		MaxFailures:   cfg.Screening.CircuitMaxFailures,
		Cooldown:      cfg.Screening.CircuitCooldown,
	}, log)

	log.Info("screening provider configured",
		"search_url", cfg.Screening.SearchURL(),
		"api_key_set", cfg.Screening.APIKey != "",
		"max_retries", cfg.Screening.MaxRetries,
		"request_timeout", cfg.Screening.RequestTimeout,
		"max_concurrent", cfg.Screening.MaxConcurrent,
		"circuit_max_failures", cfg.Screening.CircuitMaxFailures,
	)

	recorder := appscreening.NewAuditRecorder(auditRepo, cfg.Audit.WriteTimeout, m, log)
	screeningService := appscreening.NewService(provider, recorder, cfg.Screening.RequestTimeout, m, log)
	historyService := apphistory.NewService(auditRepo, log)
	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, checkers...)

	var authenticator *middleware.JWTAuthenticator
	if cfg.Auth.Enabled {
		authenticator, err = middleware.NewJWTAuthenticator(cfg.Auth, log)
		if err != nil {
			return fmt.Errorf("configure authentication: %w", err)
		}
		log.Info("JWT authentication enabled", "issuer", cfg.Auth.IssuerURI)
	} else {
		log.Info("JWT authentication disabled, identity is read from gateway headers")
	}

	srv, err := server.New(server.Options{
		Config:           cfg,
		Logger:           log,
		HealthHandler:    healthhttp.NewHandler(healthService, log),
		ScreeningHandler: screeninghttp.NewHandler(screeningService, log),
		HistoryHandler:   historyhttp.NewHandler(historyService, log),
		MetricsHandler:   promhttp.Handler(),
		Authenticator:    authenticator,
		OnShutdown:       []func(context.Context) error{recorder.Drain},
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	return srv.Run(ctx)
}

// openAuditStore returns the configured audit repository, the health checks
// it contributes and a close function.
func openAuditStore(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (audit.Repository, []corehealth.Checker, func(), error) {
	if cfg.Audit.Store == config.AuditStoreMemory {
		log.Warn("audit records are kept in memory and lost on restart")
		return auditmemory.NewRepository(), nil, func() {}, nil
	}

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connection established", "host", cfg.Database.Host, "database", cfg.Database.Database)

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return auditpostgres.NewRepository(pool, log), []corehealth.Checker{database.NewChecker(pool)}, pool.Close, nil
}
