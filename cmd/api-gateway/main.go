package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/plantcert/plantcert-api/api/swagger"
	"github.com/plantcert/plantcert-api/internal/handler"
	"github.com/plantcert/plantcert-api/internal/middleware"
	"github.com/plantcert/plantcert-api/internal/models"
	"github.com/plantcert/plantcert-api/internal/repository"
	"github.com/plantcert/plantcert-api/internal/service"
	"github.com/plantcert/plantcert-api/pkg/cache"
	"github.com/plantcert/plantcert-api/pkg/config"
	"github.com/plantcert/plantcert-api/pkg/database"
	"github.com/plantcert/plantcert-api/pkg/logger"
	corsmiddleware "github.com/plantcert/plantcert-api/pkg/middleware/cors"
	reqidmiddleware "github.com/plantcert/plantcert-api/pkg/middleware/requestid"
	"github.com/plantcert/plantcert-api/pkg/storage"
)

// @title PlantCert API
// @version 1.0.0
// @description Plant operator training and practical assessment platform
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	criteriaRepo := repository.NewCriteriaRepository(db)
	observationRepo := repository.NewObservationRepository(db)
	contentRepo := repository.NewContentRepository(db)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
	}

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	var criteriaService *service.CriteriaService
	if cacheRepo != nil {
		criteriaService = service.NewCriteriaService(criteriaRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	} else {
		criteriaService = service.NewCriteriaService(criteriaRepo, nil, cfg.Dashboard.CacheTTL, logr)
	}
	observationService := service.NewObservationService(observationRepo, userRepo, criteriaService, nil, logr, cfg.Observations.SessionTTL)
	metricsService := service.NewMetricsService(observationService.ActiveSessions)
	observationService.SetMetrics(metricsService)

	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	courseService := service.NewCourseService(courseRepo, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, nil, logr)
	contentService := service.NewContentService(contentRepo, userRepo, nil, logr, cfg.Content.ModelName)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Observations: observationRepo,
		Enrollments:  enrollmentRepo,
		Courses:      courseRepo,
		Sessions:     observationService,
		Cache:        cacheService,
		Logger:       logr,
		Config: service.DashboardServiceConfig{
			CacheTTL: cfg.Dashboard.CacheTTL,
		},
	})

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportService := service.NewReportService(observationRepo, criteriaService, reportStore, signer, logr, service.ReportServiceConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reportService.Start(ctx)
	defer reportService.Stop()

	authHandler := handler.NewAuthHandler(authService)
	observationHandler := handler.NewObservationHandler(observationService)
	criteriaHandler := handler.NewCriteriaHandler(criteriaService)
	courseHandler := handler.NewCourseHandler(courseService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	contentHandler := handler.NewContentHandler(contentService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, metricsService)
	reportHandler := handler.NewReportHandler(reportService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(cfg.APIPrefix)

	auth := v1.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	// download links carry their own signed token, no JWT required
	v1.GET("/reports/download/:token", reportHandler.Download)

	authed := v1.Group("")
	authed.Use(middleware.JWT(authService))

	observations := authed.Group("/observations")
	observations.Use(middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)))
	{
		observations.POST("", observationHandler.Start)
		observations.GET("", observationHandler.List)
		observations.GET("/:id", observationHandler.Snapshot)
		observations.PUT("/:id/scores/:criteriaId", observationHandler.SetScore)
		observations.POST("/:id/notes", observationHandler.AddNote)
		observations.POST("/:id/finalize", observationHandler.Finalize)
		observations.POST("/:id/reopen", observationHandler.Reopen)
		observations.GET("/:id/record", observationHandler.Get)
	}

	criteria := authed.Group("/criteria")
	{
		criteria.GET("", criteriaHandler.ListEquipmentTypes)
		criteria.GET("/:equipmentType", criteriaHandler.GetByEquipmentType)
	}

	courses := authed.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)

		writes := courses.Group("")
		writes.Use(middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)))
		writes.POST("", courseHandler.Create)
		writes.PUT("/:id", courseHandler.Update)
		writes.DELETE("/:id", courseHandler.Delete)
	}

	enrollments := authed.Group("/enrollments")
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.POST("", enrollmentHandler.Enroll)
		enrollments.PATCH("/:id/progress",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)),
			enrollmentHandler.UpdateProgress)
	}

	content := authed.Group("/content")
	{
		content.GET("", contentHandler.List)
		content.POST("/generate",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)),
			contentHandler.Generate)
		content.POST("/:id/approve",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)),
			contentHandler.Approve)
	}

	dashboards := authed.Group("/dashboards")
	{
		dashboards.GET("/instructor/:id",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)),
			dashboardHandler.Instructor)
		dashboards.GET("/student/:id", dashboardHandler.Student)
		dashboards.GET("/system",
			middleware.RBAC(string(models.RoleAdmin)),
			dashboardHandler.System)
	}

	reports := authed.Group("/reports")
	reports.Use(middleware.RBAC(string(models.RoleAdmin), string(models.RoleInstructor)))
	{
		reports.POST("", reportHandler.Enqueue)
		reports.GET("/:id", reportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
