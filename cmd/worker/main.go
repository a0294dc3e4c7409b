package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

func setupHealthCheck(port int, checks map[string]health.Pinger, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := zerolog.New(zerolog.NewConsoleWriter())
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, "clinic-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.Connect(ctx, redis.Config{
		URL:              cfg.Redis.URL,
		MaxRetries:       cfg.Redis.MaxRetries,
		RetryBackoff:     cfg.Redis.RetryBackoff,
		PoolSize:         cfg.Redis.PoolSize,
		MinIdleConns:     cfg.Redis.MinIdleConns,
		FailureThreshold: cfg.Redis.FailureThreshold,
		OpenTimeout:      cfg.Redis.OpenTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New("clinic", registry)
	outboxRepo := postgres.NewRepositories(db).Outbox

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
		ChannelPrefix: cfg.Redis.ChannelPrefix,
	}, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox processor")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, log, m)
	notifier := event.NewNotifier(email.NewSender(cfg.SMTP), m)

	srv := setupHealthCheck(cfg.Outbox.HealthPort, map[string]health.Pinger{
		"database": db,
		"redis":    health.PingerFunc(broker.Ping),
	}, registry)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notifier.Subscribe(ctx, broker, cfg.Redis.ChannelPrefix); err != nil {
			log.Error().Err(err).Msg("notification subscriber stopped")
			stop()
		}
	}()

	log.Info().Int("health_port", cfg.Outbox.HealthPort).Msg("worker started")
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health check server forced to shutdown")
	}
	wg.Wait()
}
