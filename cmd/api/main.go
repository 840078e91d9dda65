package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/damp-platform/damp-api/api/swagger"
	"github.com/damp-platform/damp-api/internal/handler"
	internalmiddleware "github.com/damp-platform/damp-api/internal/middleware"
	"github.com/damp-platform/damp-api/internal/repository"
	"github.com/damp-platform/damp-api/internal/service"
	"github.com/damp-platform/damp-api/pkg/cache"
	"github.com/damp-platform/damp-api/pkg/config"
	"github.com/damp-platform/damp-api/pkg/database"
	"github.com/damp-platform/damp-api/pkg/jobs"
	"github.com/damp-platform/damp-api/pkg/logger"
	"github.com/damp-platform/damp-api/pkg/messaging"
	corsmiddleware "github.com/damp-platform/damp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/damp-platform/damp-api/pkg/middleware/requestid"
	"github.com/damp-platform/damp-api/pkg/storage"
	"github.com/damp-platform/damp-api/pkg/tracing"
)

// @title DAMP Analytics API
// @version 1.0.0
// @description Read-only metrics over the DAMP e-learning platform.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		migrator, err := database.NewMigrator(db, cfg.Migrations.Path, logr)
		if err != nil {
			logr.Fatal("failed to init migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		_ = migrator.Close()
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	telemetry := service.NewTelemetryService()
	cacheSvc := service.NewCacheService(cacheRepo, telemetry, cfg.Analytics.CacheTTL, logr, redisClient != nil)
	snapshots := repository.NewSnapshotRepository(db)
	courses := repository.NewCourseRepository(db)
	analyticsSvc := service.NewAnalyticsService(snapshots, cacheSvc, telemetry, cfg.Analytics, logr)
	tokens := service.NewTokenService(cfg.JWT)

	handlers := handler.Handlers{
		Analytics: handler.NewAnalyticsHandler(analyticsSvc, courses),
		Health: handler.NewHealthHandler(telemetry.Handler(), map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
	}

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		reportSvc, reportQueue, closeReports := buildReports(ctx, cfg, db, courses, analyticsSvc, telemetry, logr)
		defer closeReports()
		queue = reportQueue
		handlers.Reports = handler.NewReportHandler(reportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.CORS.MaxAge))
	r.Use(internalmiddleware.Metrics(telemetry))
	r.Use(internalmiddleware.WithResponseMeta())

	handler.RegisterRoutes(r, cfg.APIPrefix, tokens, logr, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Warn("tracing shutdown failed", zap.Error(err))
	}
}

// buildReports wires the export pipeline: storage, signer, queue, worker and service.
func buildReports(ctx context.Context, cfg *config.Config, db *sqlx.DB, courses *repository.CourseRepository, analyticsSvc *service.AnalyticsService, telemetry *service.TelemetryService, logr *zap.Logger) (*service.ReportService, *jobs.Queue, func()) {
	var store storage.Store
	switch cfg.Reports.StorageDriver {
	case config.StorageDriverMinIO:
		minioStore, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logr.Fatal("failed to init minio storage", zap.Error(err))
		}
		store = minioStore
	default:
		local, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		store = local
	}

	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(analyticsSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	closers := []func(){}
	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		pub, err := messaging.NewPublisher(cfg.RabbitMQ, logr)
		if err != nil {
			logr.Warn("rabbitmq unavailable, report events disabled", zap.Error(err))
		} else {
			publisher = pub
			closers = append(closers, func() { _ = pub.Close() })
		}
	}

	reportRepo := repository.NewReportRepository(db)
	worker := service.NewReportWorker(reportRepo, exporter, publisher, telemetry, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		BufferSize: cfg.Reports.QueueSize,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: 2 * time.Minute,
		Logger:     logr,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(reportRepo, courses, queue, exporter, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	return reportSvc, queue, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
