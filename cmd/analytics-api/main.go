package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mind-platform/mind-analytics-api/api/swagger"
	"github.com/mind-platform/mind-analytics-api/internal/handler"
	"github.com/mind-platform/mind-analytics-api/internal/middleware"
	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/repository"
	"github.com/mind-platform/mind-analytics-api/internal/service"
	"github.com/mind-platform/mind-analytics-api/pkg/cache"
	"github.com/mind-platform/mind-analytics-api/pkg/config"
	"github.com/mind-platform/mind-analytics-api/pkg/database"
	"github.com/mind-platform/mind-analytics-api/pkg/export"
	"github.com/mind-platform/mind-analytics-api/pkg/logger"
	corsmiddleware "github.com/mind-platform/mind-analytics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mind-platform/mind-analytics-api/pkg/middleware/requestid"
)

// @title MIND Analytics API
// @version 1.0.0
// @description Role-scoped metrics aggregation and caching engine
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to record store", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it the engine recomputes on every request.
	var redisClient *redis.Client
	if cfg.Engine.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("cache backend unavailable, running without cache", zap.Error(err))
			redisClient = nil
		}
	}

	metricsInstr := service.NewMetricsService()

	recordRepo := repository.NewRecordRepository(db)
	var cacheStore service.CacheStore
	if redisClient != nil {
		cacheStore = repository.NewCacheRepository(redisClient, logr)
	}

	cacheSvc := service.NewCacheService(cacheStore, metricsInstr, logr, cfg.Engine.CacheEnabled)
	registry := service.NewRegistry(cfg.Engine)
	scopeSvc := service.NewScopeService(cfg.Engine.AtRiskThreshold, logr)
	metricSvc := service.NewMetricService(registry, scopeSvc, cacheSvc, metricsInstr, recordRepo, cfg.Engine, logr)
	badgeSvc := service.NewBadgeService(recordRepo, logr)
	tokenSvc := service.NewTokenService(cfg.JWT, logr)

	metricHandler := handler.NewMetricHandler(metricSvc, badgeSvc, metricsInstr, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Exports.Enabled, logr)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", healthHandler.Live)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics-prom", gin.WrapH(metricsInstr.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWTAuth(tokenSvc))
	{
		api.GET("/metrics", metricHandler.Catalog)
		api.GET("/metrics/:id", metricHandler.Resolve)
		api.GET("/metrics/:id/export", metricHandler.Export)
		api.GET("/students/:id/badges", metricHandler.StudentBadges)

		api.GET("/system/metrics",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDeveloper),
			metricHandler.SystemMetrics)

		api.POST("/admin/cache/invalidate",
			middleware.RequireRoles(models.RoleAdmin),
			metricHandler.InvalidateCache)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
