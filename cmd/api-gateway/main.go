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

	_ "github.com/noah-isme/sma-enroll-api/api/swagger"
	"github.com/noah-isme/sma-enroll-api/internal/handler"
	"github.com/noah-isme/sma-enroll-api/internal/middleware"
	"github.com/noah-isme/sma-enroll-api/internal/repository"
	"github.com/noah-isme/sma-enroll-api/internal/service"
	"github.com/noah-isme/sma-enroll-api/pkg/cache"
	"github.com/noah-isme/sma-enroll-api/pkg/config"
	"github.com/noah-isme/sma-enroll-api/pkg/database"
	"github.com/noah-isme/sma-enroll-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enroll-api/pkg/middleware/requestid"
)

// @title SMA Enroll API
// @version 0.1.0
// @description Enrollment cycle and section assignment engine
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cycle.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cycle cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cycle.CacheTTL, logr, cacheRepo != nil)

	broadcaster := service.NewBroadcastService(service.BroadcastConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	broadcaster.Register(service.NewLogSink(logr))
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	cycleRepo := repository.NewCycleRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	catalogRepo := repository.NewCourseOfferingRepository(db)

	cycleSvc := service.NewCycleService(cycleRepo, broadcaster, cacheSvc, metrics, validate, logr)
	allocator := service.NewRoomAllocator(meetingRepo, logr)
	scheduleSvc := service.NewScheduleService(meetingRepo, roomRepo, allocator, metrics, logr)
	assignmentSvc := service.NewAssignmentService(db, sectionRepo, enrollmentRepo, roomRepo, catalogRepo, scheduleSvc, metrics, service.AssignmentDefaults{
		RoomCount:       cfg.Scheduling.DefaultRoomCount,
		RoomCapacity:    cfg.Scheduling.DefaultRoomCapacity,
		SectionCapacity: cfg.Scheduling.DefaultSectionCapacity,
	}, validate, logr)
	timetableSvc := service.NewTimetableService(sectionRepo, meetingRepo, logr)

	cycleHandler := handler.NewCycleHandler(cycleSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	sectionHandler := handler.NewSectionHandler(sectionRepo, timetableSvc)
	roomHandler := handler.NewRoomHandler(db, roomRepo)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/cycle", cycleHandler.Current)
	api.GET("/sections", sectionHandler.List)
	api.GET("/sections/:id/timetable", sectionHandler.Timetable)
	api.GET("/sections/:id/timetable/export", sectionHandler.ExportTimetable)
	api.GET("/rooms", roomHandler.List)
	api.GET("/metrics/summary", metricsHandler.Summary)

	protected := api.Group("")
	protected.Use(middleware.JWT(cfg.JWT.Secret))
	protected.POST("/assignments", assignmentHandler.Assign)
	protected.POST("/rooms", roomHandler.Create)

	operator := protected.Group("/cycle")
	operator.Use(middleware.RequireCycleOperator())
	operator.POST("/open", cycleHandler.Open)
	operator.POST("/normalize", cycleHandler.Normalize)
	operator.POST("/reset", cycleHandler.Reset)

	go runCycleDriver(ctx, cycleSvc, cfg.Cycle.NormalizeInterval, logr)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown failed", zap.Error(err))
	}
}

// runCycleDriver invokes Normalize on a fixed interval. A single ticker keeps
// the state machine serialized; transitions are last-writer-wins otherwise.
func runCycleDriver(ctx context.Context, cycleSvc *service.CycleService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cycleSvc.Normalize(ctx); err != nil {
				logr.Warn("cycle normalize failed", zap.Error(err))
			}
		}
	}
}
