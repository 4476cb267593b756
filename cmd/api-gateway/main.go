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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/villa-intake-api/api/swagger"
	"github.com/noah-isme/villa-intake-api/internal/handler"
	"github.com/noah-isme/villa-intake-api/internal/middleware"
	"github.com/noah-isme/villa-intake-api/internal/repository"
	"github.com/noah-isme/villa-intake-api/internal/service"
	"github.com/noah-isme/villa-intake-api/pkg/cache"
	"github.com/noah-isme/villa-intake-api/pkg/config"
	"github.com/noah-isme/villa-intake-api/pkg/database"
	"github.com/noah-isme/villa-intake-api/pkg/jobs"
	"github.com/noah-isme/villa-intake-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/villa-intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/villa-intake-api/pkg/middleware/requestid"
	"github.com/noah-isme/villa-intake-api/pkg/tracekey"
)

// @title Villa Intake API
// @version 1.0.0
// @description Property availability and inquiry intake for luxury rentals
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey OpsSecret
// @in header
// @name X-Ops-Secret

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

	metrics := service.NewMetricsService()
	validate := validator.New()
	if err := service.RegisterStageValidation(validate); err != nil {
		logr.Fatal("register validators", zap.Error(err))
	}
	checks := map[string]handler.ReadinessCheck{}

	var store service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("redis unavailable", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		store = repository.NewCacheRepository(redisClient, logr)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logr.Info("redis disabled, using in-process cache")
		store = repository.NewMemoryCacheRepository()
	}

	calendars := cfg.Availability.Calendars
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("registry database unavailable", zap.Error(err))
	}
	if db != nil {
		defer db.Close() //nolint:errcheck
		checks["database"] = db.PingContext
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		calendars, err = repository.NewPropertyCalendarRepository(db).Registry(loadCtx, calendars)
		cancel()
		if err != nil {
			logr.Fatal("load property calendars", zap.Error(err))
		}
	}
	logr.Info("calendar registry loaded", zap.Int("properties", len(calendars)))

	resolver := service.NewIdentifierResolver(calendars)
	availabilityCache := service.NewAvailabilityCache(store, metrics, cfg.Availability.CacheTTL, cfg.Availability.Retention, logr)
	feeds := repository.NewFeedRepository(nil, cfg.Availability.UserAgent, cfg.Availability.FetchTimeout)
	availability := service.NewAvailabilityService(resolver, availabilityCache, feeds, metrics, cfg.Availability.FetchTimeout, logr)

	var crm service.CRMClient
	if cfg.CRM.Enabled() {
		crm = service.InstrumentCRM(repository.NewCRMRepository(cfg.CRM, nil, logr), metrics)
	} else {
		logr.Warn("crm not configured, inquiries will be accepted without sync")
	}

	leads := service.NewLeadService(crm, store, tracekey.NewGenerator(), metrics, validate, service.LeadOptions{
		DefaultCountryCode: cfg.Leads.DefaultCountryCode,
		DedupWindow:        cfg.Leads.DedupWindow,
		CRMTimeout:         cfg.CRM.Timeout,
		NewInquiryStageID:  cfg.CRM.Stages.NewInquiry,
	}, logr)

	if cfg.Leads.RetryEnabled && crm != nil {
		retryQueue := jobs.NewQueue("crm-retry", leads.HandleRetryJob, jobs.QueueConfig{
			Workers:    cfg.Leads.RetryWorkers,
			MaxRetries: cfg.Leads.RetryAttempts,
			RetryDelay: cfg.Leads.RetryDelay,
			Logger:     logr,
			OnGiveUp: func(job jobs.Job, err error) {
				logr.Error("crm sync abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
			},
		})
		retryQueue.Start(ctx)
		defer retryQueue.Stop()
		leads.UseRetryQueue(retryQueue)
	}

	operators := service.NewOperatorService(crm, store, cfg.CRM.Stages, cfg.Ops.IdempotencyTTL, validate, logr)
	if cfg.Ops.OpenMode() {
		logr.Warn("OPS_SECRET is empty, operator endpoints are unauthenticated")
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.Routes{
		Availability: handler.NewAvailabilityHandler(availability, validate),
		Inquiry:      handler.NewInquiryHandler(leads),
		Operator:     handler.NewOperatorHandler(operators, availability),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
		OpsSecret:    cfg.Ops.Secret,
		Logger:       logr,
	}.Register(r, cfg.APIPrefix)

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
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
