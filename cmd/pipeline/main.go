package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/api"
	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/config"
	"github.com/notifyhub/signal-pipeline/internal/db"
	"github.com/notifyhub/signal-pipeline/internal/metrics"
	"github.com/notifyhub/signal-pipeline/internal/pipeline"
	"github.com/notifyhub/signal-pipeline/internal/provider"
	"github.com/notifyhub/signal-pipeline/internal/ratelimiter"
	"github.com/notifyhub/signal-pipeline/internal/repository"
	"github.com/notifyhub/signal-pipeline/internal/runtimecfg"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- stores ----
	signals := repository.NewPgSignalStore(pool)
	hooks := repository.NewPgHookStore(pool)
	templates := repository.NewPgTemplateStore(pool)
	jobs := repository.NewPgJobStore(pool)
	events := repository.NewPgEventStore(pool)

	// ---- delivery providers ----
	providers := provider.Providers{Push: provider.NewPushStub(logger)}
	if cfg.EmailEnabled {
		email, err := provider.NewSESProvider(ctx, cfg.AWSRegion, cfg.EmailFrom)
		if err != nil {
			logger.Fatal("failed to init email provider", zap.Error(err))
		}
		providers.Email = email
	}
	if cfg.SMSEnabled {
		sms, err := provider.NewSNSProvider(ctx, cfg.AWSRegion, cfg.SMSSenderID)
		if err != nil {
			// SMS is optional: dispatch skips the channel with a warning.
			logger.Warn("sms provider unavailable, sms channel disabled", zap.Error(err))
		} else {
			providers.SMS = sms
		}
	}

	// ---- configuration provider ----
	var store runtimecfg.Store
	if cfg.RedisAddr != "" {
		store = runtimecfg.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		logger.Info("no configuration provider configured, using environment defaults")
	}
	runtime := runtimecfg.NewClient(store, cfg.RuntimeConfigTTL, runtimecfg.DefaultsFrom(cfg), logger)

	// ---- pipeline ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	auditLog := audit.NewLogger(events, logger)
	limiter := ratelimiter.New(cfg.RateLimit)

	processor := pipeline.NewProcessor(signals, hooks, templates, jobs,
		runtime, auditLog, m, cfg.MaxRetries, logger)
	dispatcher := pipeline.NewDispatcher(jobs, templates, providers, limiter,
		runtime, auditLog, m, cfg.RetryBackoff, cfg.MaxRetries, logger)
	runner := pipeline.NewRunner(processor, dispatcher, cfg.PollInterval, cfg.RunOnce, logger)

	if cfg.RunOnce {
		logger.Info("run-once mode: executing a single pass")
		runner.Run(ctx)
		logger.Info("pass complete")
		return
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runDone := make(chan struct{})
	go func() {
		runner.Run(runCtx)
		close(runDone)
	}()

	// ---- HTTP server (operational surface) ----
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(reg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Cancel the scheduler and wait for the in-flight pass to finish.
	cancelRun()
	select {
	case <-runDone:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("pipeline pass did not finish before shutdown timeout")
	}

	logger.Info("server stopped cleanly")
}
