package main

import (
	"alcyxob/plan-tracker/internal/api"
	"alcyxob/plan-tracker/internal/app"
	"alcyxob/plan-tracker/internal/config"
	"alcyxob/plan-tracker/internal/logging"
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/plan"
	"alcyxob/plan-tracker/internal/service"
	"alcyxob/plan-tracker/internal/storage"
	"alcyxob/plan-tracker/internal/telemetry/tracing"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// @title Plan Tracker API
// @version 1.0
// @description Training plan progression and workout session logging.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	hostname, _ := os.Hostname()
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.Log.File,
		LogToStdout:      cfg.Log.Stdout,
		LogLevel:         cfg.Log.Level,
		LogFormatJSON:    cfg.Log.JSON,
		Environment:      cfg.Sentry.Environment,
		SentryEnabled:    cfg.Sentry.Enabled,
		SentryDSN:        cfg.Sentry.DSN,
		SentryServerName: hostname,
	})
	defer sentry.Flush(2 * time.Second)

	if err := run(cfg); err != nil {
		log.Fatalf("server: %s", err)
	}
	log.Println("server exiting")
}

func run(cfg config.Config) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(cfg.Tracing.Enabled, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, shutdownTracing(context.Background()))
	}()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsManager := metrics.NewManager("plan_tracker", "server", registry)

	// --- Plan templates ---
	templates, err := plan.Builtin()
	if err != nil {
		return err
	}
	if _, err := templates.Get(cfg.Plan.DefaultTemplate); err != nil {
		return err
	}
	log.Infof("plan templates loaded: %v", templates.IDs())

	// --- Repositories ---
	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("closing store...")
		err = multierr.Append(err, stores.Close())
	}()

	// --- Object storage (optional) ---
	var objectStorage storage.ObjectStorage
	if cfg.S3.BucketName != "" {
		objectStorage, err = storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return err
		}
	} else {
		log.Warn("s3 bucket not configured, session export disabled")
	}

	// --- Rate limiter (optional) ---
	var rateLimiter api.RequestRateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer func() {
			err = multierr.Append(err, rdb.Close())
		}()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			log.WithError(pingErr).Warn("redis ping failed, rate limiter will let requests through until it recovers")
		}
		rateLimiter = redis_rate.NewLimiter(rdb)
		log.Infof("auto-save rate limit: %d/min", cfg.Redis.AutoSavePerMinute)
	}

	// --- Services ---
	scheduleService := service.NewScheduleService(stores.PlanStates, templates, cfg.Plan.DefaultTemplate, metricsManager)
	advancement := service.NewPlanAdvancement(scheduleService, metricsManager)
	sessionService := service.NewSessionService(stores.Workouts, stores.Sessions, advancement, metricsManager)
	cloneService := service.NewCloneService(stores.Workouts, stores.Sessions, stores.Transactor, metricsManager)
	exportService := service.NewExportService(sessionService, objectStorage, cfg.S3.PresignExpiry, metricsManager)
	saver := service.NewAutoSaver(sessionService, service.AutoSaverParams{
		MaxRetries:     cfg.AutoSave.MaxRetries,
		InitialBackoff: cfg.AutoSave.InitialBackoff,
		MaxBackoff:     cfg.AutoSave.MaxBackoff,
	}, metricsManager)
	// Running snapshot writes finish before the store closes.
	defer saver.Close()

	// --- Router ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.RouterParams{
		JWTSecret:         cfg.JWT.Secret,
		AdminTokenHash:    cfg.Admin.TokenHash,
		ScheduleService:   scheduleService,
		SessionService:    sessionService,
		CloneService:      cloneService,
		ExportService:     exportService,
		Saver:             saver,
		Metrics:           metricsManager,
		MetricsGatherer:   registry,
		RateLimiter:       rateLimiter,
		AutoSavePerMinute: cfg.Redis.AutoSavePerMinute,
	})

	// Shutdown does not wait for event streams; cancelling the base context ends them.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.ClearStreamWriteDeadline(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelBase)

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("server starting on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down server...")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return server.Shutdown(ctxShutdown)
}
