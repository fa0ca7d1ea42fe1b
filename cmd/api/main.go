package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edupulse/edupulse-api/api/swagger"
	"github.com/edupulse/edupulse-api/internal/handler"
	"github.com/edupulse/edupulse-api/internal/middleware"
	"github.com/edupulse/edupulse-api/internal/repository"
	"github.com/edupulse/edupulse-api/internal/service"
	"github.com/edupulse/edupulse-api/pkg/cache"
	"github.com/edupulse/edupulse-api/pkg/config"
	"github.com/edupulse/edupulse-api/pkg/database"
	"github.com/edupulse/edupulse-api/pkg/jobs"
	"github.com/edupulse/edupulse-api/pkg/logger"
	corsmiddleware "github.com/edupulse/edupulse-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupulse/edupulse-api/pkg/middleware/requestid"
	"github.com/edupulse/edupulse-api/pkg/storage"
)

// @title EduPulse API
// @version 1.0.0
// @description Evaluation lifecycle and cross-entity reporting engine
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
		logr.Sugar().Fatalw("database connect failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Reports.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis connect failed, report caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	evaluationRepo := repository.NewEvaluationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	financeRepo := repository.NewFinanceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	evaluationSvc := service.NewEvaluationService(evaluationRepo, enrollmentRepo, cacheSvc, nil, logr)
	performanceSvc := service.NewPerformanceService(evaluationRepo, enrollmentRepo, cacheSvc, metricsSvc, cfg.Reports.CacheTTL, logr)
	attendanceSvc := service.NewAttendanceReportService(attendanceRepo, cacheSvc, metricsSvc, cfg.Reports.CacheTTL, logr)
	financeSvc := service.NewFinanceReportService(financeRepo, cacheSvc, metricsSvc, cfg.Reports.CacheTTL, logr)
	dashboardSvc := service.NewDashboardService(enrollmentRepo, financeRepo, cacheSvc, metricsSvc, cfg.Reports.CacheTTL, logr)

	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc, performanceSvc)
	reportHandler := handler.NewReportHandler(dashboardSvc, attendanceSvc, financeSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	protected := api.Group("")
	protected.Use(middleware.Tenant(cfg.JWT.Secret))

	evaluations := protected.Group("/evaluations")
	{
		evaluations.GET("", evaluationHandler.List)
		evaluations.POST("", evaluationHandler.Create)
		evaluations.GET("/stats", evaluationHandler.Stats)
		evaluations.POST("/bulk", evaluationHandler.BulkCreate)
		evaluations.GET("/student/:studentId/report-card", evaluationHandler.ReportCard)
		evaluations.GET("/class/:classId/performance", evaluationHandler.ClassPerformance)
		evaluations.GET("/:id", evaluationHandler.Get)
		evaluations.PUT("/:id", evaluationHandler.Update)
		evaluations.DELETE("/:id", evaluationHandler.Delete)
		evaluations.POST("/:id/finalize", evaluationHandler.Finalize)
	}

	reports := protected.Group("/reports")
	{
		reports.GET("/dashboard", reportHandler.Dashboard)
		reports.GET("/attendance", reportHandler.Attendance)
		reports.GET("/finance", reportHandler.Finance)
		reports.GET("/class-strength", reportHandler.ClassStrength)
	}

	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("export storage init failed", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportJobRepository(db)
		exportSvc := service.NewExportService(exportRepo, performanceSvc, exportStorage, signer, metricsSvc, nil, logr)

		queue := jobs.NewQueue("report-card-exports", exportSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		queue.Start(ctx)
		defer queue.Stop()
		exportSvc.RequeuePending(ctx, queue, cfg.Exports.RequeueLimit)
		exportSvc.StartCleanup(ctx, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL)

		exportHandler := handler.NewExportHandler(exportSvc, queue)
		exports := protected.Group("/exports")
		{
			exports.POST("/report-card", exportHandler.Create)
			exports.GET("/:id", exportHandler.Status)
		}
		// Download is authenticated by the signed token itself.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
