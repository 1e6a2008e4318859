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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/jobshop-api/api/swagger"
	"github.com/noah-isme/jobshop-api/internal/handler"
	"github.com/noah-isme/jobshop-api/internal/jobshop"
	internalmiddleware "github.com/noah-isme/jobshop-api/internal/middleware"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/repository"
	"github.com/noah-isme/jobshop-api/internal/service"
	"github.com/noah-isme/jobshop-api/pkg/cache"
	"github.com/noah-isme/jobshop-api/pkg/config"
	"github.com/noah-isme/jobshop-api/pkg/database"
	"github.com/noah-isme/jobshop-api/pkg/jobs"
	"github.com/noah-isme/jobshop-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/jobshop-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/jobshop-api/pkg/middleware/requestid"
	"github.com/noah-isme/jobshop-api/pkg/solver/disjunctive"
)

// @title Job Shop Scheduling API
// @version 1.0.0
// @description Builds, solves and interprets job-shop scheduling models.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	readiness := map[string]handler.Pinger{}

	var runStore repository.ScheduleRunStore
	if cfg.JobShop.PersistRuns {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		runStore = repository.NewScheduleRunRepository(db, metricsSvc)
		readiness["database"] = runStore
	} else {
		runStore = repository.NewMemoryScheduleRunRepository()
		logr.Info("schedule runs kept in memory; set JOBSHOP_PERSIST_RUNS to use postgres")
	}

	var redisClient redis.UniversalClient
	if cfg.JobShop.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result cache disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()
	if redisClient != nil {
		readiness["redis"] = cacheRepo
	}
	resultCache := service.NewResultCache(cacheRepo, metricsSvc, cfg.JobShop.CacheTTL, logr, redisClient != nil)

	solver := disjunctive.New(disjunctive.Config{
		MaxDuration: cfg.JobShop.MaxSolveTime,
		NodeLimit:   cfg.JobShop.NodeLimit,
		Logger:      logr.Named("solver"),
	})
	pipeline := jobshop.NewPipeline(solver, logr)

	var worker *service.ScheduleWorker
	queue := jobs.NewQueue("schedule-runs", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.JobShop.WorkerConcurrency,
		MaxRetries: cfg.JobShop.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnExhausted: func(ctx context.Context, job jobs.Job, err error) {
			worker.Abandon(ctx, job, err)
		},
		Logger: logr,
	})

	scheduleSvc := service.NewScheduleService(pipeline, runStore, queue, resultCache, metricsSvc, validate, logr, service.ScheduleServiceConfig{
		TardinessWeight: cfg.JobShop.TardinessWeight,
		MaxSolveTime:    cfg.JobShop.MaxSolveTime,
		MaxTasks:        cfg.JobShop.MaxTasks,
		SampleDataPath:  cfg.JobShop.SampleDataPath,
	})
	worker = service.NewScheduleWorker(runStore, scheduleSvc, metricsSvc, logr)

	queue.Start(ctx)
	defer queue.Stop()
	scheduleSvc.RecoverPendingRuns(ctx)

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Config{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	api := r.Group(cfg.APIPrefix)

	allRoles := []models.UserRole{models.RoleAdmin, models.RolePlanner, models.RoleViewer}
	writers := []models.UserRole{models.RoleAdmin, models.RolePlanner}
	secured := func(roles ...models.UserRole) []gin.HandlerFunc {
		if !cfg.JobShop.AuthEnabled {
			return nil
		}
		return []gin.HandlerFunc{internalmiddleware.JWT(authSvc), internalmiddleware.RBAC(roles...)}
	}
	with := func(roles []models.UserRole, h gin.HandlerFunc) []gin.HandlerFunc {
		return append(secured(roles...), h)
	}

	schedules := api.Group("/schedules")
	schedules.POST("/solve", with(writers, scheduleHandler.Solve)...)
	schedules.POST("/solve/upload", with(writers, scheduleHandler.SolveUpload)...)
	schedules.POST("/validate", with(allRoles, scheduleHandler.Validate)...)
	schedules.GET("/sample", with(allRoles, scheduleHandler.Sample)...)
	schedules.POST("/runs", with(writers, scheduleHandler.SubmitRun)...)
	schedules.GET("/runs", with(allRoles, scheduleHandler.ListRuns)...)
	schedules.GET("/runs/:id", with(allRoles, scheduleHandler.GetRun)...)
	schedules.GET("/runs/:id/export", with(allRoles, scheduleHandler.ExportRun)...)
	schedules.DELETE("/runs/:id", with([]models.UserRole{models.RoleAdmin}, scheduleHandler.DeleteRun)...)
	schedules.DELETE("/cache", with([]models.UserRole{models.RoleAdmin}, scheduleHandler.FlushCache)...)
	api.GET("/metrics/summary", with([]models.UserRole{models.RoleAdmin}, metricsHandler.Summary)...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auth", cfg.JobShop.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
