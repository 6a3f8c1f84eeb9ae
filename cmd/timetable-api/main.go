package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univhub/timetable-engine/api/swagger"
	"github.com/univhub/timetable-engine/internal/handler"
	"github.com/univhub/timetable-engine/internal/middleware"
	"github.com/univhub/timetable-engine/internal/repository"
	"github.com/univhub/timetable-engine/internal/service"
	"github.com/univhub/timetable-engine/pkg/cache"
	"github.com/univhub/timetable-engine/pkg/config"
	"github.com/univhub/timetable-engine/pkg/database"
	"github.com/univhub/timetable-engine/pkg/logger"
	corsmiddleware "github.com/univhub/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/univhub/timetable-engine/pkg/middleware/requestid"
)

// @title Timetable Engine API
// @version 1.0.0
// @description Timetable and session lifecycle engine
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	metrics := service.NewMetricsService()

	catalogRepo := repository.NewCatalogRepository(db)
	catalog := repository.NewCachedCatalog(catalogRepo, redisClient, cfg.Catalog.CacheTTL, logr, metrics)
	sessions := repository.NewSessionRepository(db, catalog)

	sinks := []service.Sink{service.NewLogSink(logr)}
	if cfg.Events.RedisStreamEnabled {
		sinks = append(sinks, service.NewStreamSink(redisClient, cfg.Events.RedisStream, cfg.Events.RedisStreamMaxLen))
	}
	events := service.NewEventBridge(sinks, logr, metrics, 0)

	conflicts := service.NewConflictService(sessions, logr)
	authz := service.NewAuthzService(catalog)
	lifecycle := service.NewLifecycleService(sessions, catalog, conflicts, authz, events, metrics, logr, cfg.Engine)
	expander := service.NewExpanderService(lifecycle, conflicts, catalog, authz, metrics, logr, cfg.Engine)
	makeup := service.NewMakeupService(sessions, conflicts, lifecycle, logr, cfg.Engine)
	views := service.NewViewService(sessions, catalog, logr, cfg.Engine)

	sweeper := service.NewSweepService(sessions, lifecycle, metrics, logr, cfg.Sweep, cfg.Engine)
	if cfg.Sweep.Enabled {
		sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.Register(r, cfg.APIPrefix, handler.Deps{
		Sessions:  handler.NewSessionHandler(lifecycle, makeup, authz, sessions),
		Templates: handler.NewTemplateHandler(expander),
		Views:     handler.NewViewHandler(views, authz, cfg.Engine),
		Metrics:   metrics,
		JWTSecret: cfg.JWT.Secret,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "tz", cfg.Engine.TimeZone)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
