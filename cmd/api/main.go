package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	catalogHandler "github.com/jwalitptl/clinic-api/internal/handler/catalog"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	staffHandler "github.com/jwalitptl/clinic-api/internal/handler/staff"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	catalogService "github.com/jwalitptl/clinic-api/internal/service/catalog"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	staffService "github.com/jwalitptl/clinic-api/internal/service/staff"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const metricsNamespace = "clinic"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, "clinic-api")

	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metricsNamespace, registry)

	// Repositories
	repos := postgres.NewRepositories(db)

	// Services
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL(),
		RefreshTTL:    cfg.JWT.RefreshTTL(),
	})
	authSvc := authService.NewService(repos.Users, repos.Staff, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost))
	patientSvc := patientService.NewService(repos.Patients, repos.Treatments, repos.Staff, cfg.Server.MaxPageSize)
	staffSvc := staffService.NewService(repos.Staff, cfg.Cache.AvailabilityTTL, cfg.Server.MaxPageSize)
	catalogSvc := catalogService.NewService(repos.Services)
	appointmentSvc := appointmentService.NewService(appointmentService.Repositories{
		Appointments: repos.Appointments,
		Patients:     repos.Patients,
		Staff:        repos.Staff,
		Services:     repos.Services,
	}, staffSvc, m, cfg.Server.MaxPageSize)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
	}

	routerConfig := router.RouterConfig{
		Mode:             cfg.Server.Mode,
		CORSConfig:       middleware.NewCORSConfig(cfg.CORS),
		MaxBodySize:      middleware.DefaultMaxBodySize,
		MetricsNamespace: metricsNamespace,
		Registry:         registry,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		health.NewHandler(map[string]health.Pinger{"database": db}),
		routerConfig,
		authHandler.NewHandler(authSvc),
		patientHandler.NewHandler(patientSvc, appointmentSvc),
		staffHandler.NewHandler(staffSvc),
		catalogHandler.NewHandler(catalogSvc),
		appointmentHandler.NewHandler(appointmentSvc),
	)
	r.Setup()
	go r.RunCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited properly")
}
