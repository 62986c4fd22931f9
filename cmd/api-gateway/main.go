package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ohsansi/olimpiada-api/api/swagger"
	"github.com/ohsansi/olimpiada-api/internal/handler"
	"github.com/ohsansi/olimpiada-api/internal/middleware"
	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	"github.com/ohsansi/olimpiada-api/internal/service"
	"github.com/ohsansi/olimpiada-api/pkg/cache"
	"github.com/ohsansi/olimpiada-api/pkg/config"
	"github.com/ohsansi/olimpiada-api/pkg/database"
	"github.com/ohsansi/olimpiada-api/pkg/logger"
	corsmiddleware "github.com/ohsansi/olimpiada-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ohsansi/olimpiada-api/pkg/middleware/requestid"
)

// @title Olimpiada API
// @version 0.1.0
// @description Evaluation, change-approval and classification closeout service
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

	if cfg.Database.Migrate {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	changeLogRepo := repository.NewChangeLogRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db, changeLogRepo, changeRequestRepo)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	resultRepo := repository.NewResultRepository(db, enrollmentRepo)
	phaseRepo := repository.NewPhaseRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	tokenService := service.NewTokenService(cfg.JWT, logr)
	scoreService := service.NewScoreService(evaluationRepo, changeLogRepo, auditRepo, metricsService, validate, logr)
	changeRequestService := service.NewChangeRequestService(changeRequestRepo, evaluationRepo, scoreService, auditRepo, metricsService, logr)
	closureService := service.NewClosureService(enrollmentRepo, resultRepo, phaseRepo, cacheRepo, auditRepo, metricsService, cfg.Classification, logr)
	medalService := service.NewMedalService(resultRepo, enrollmentRepo, cacheRepo, auditRepo, metricsService, cfg.Medals, cfg.Standings, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, logr)
	auditService := service.NewAuditService(auditRepo, logr)

	scoreHandler := handler.NewScoreHandler(scoreService)
	changeRequestHandler := handler.NewChangeRequestHandler(changeRequestService)
	closureHandler := handler.NewClosureHandler(closureService)
	medalHandler := handler.NewMedalHandler(medalService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	auditHandler := handler.NewAuditHandler(auditService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenService))

	evaluador := middleware.RequireRoles(models.RoleEvaluator, models.RoleCoordinator, models.RoleAdmin)
	coordinador := middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin)

	scores := api.Group("/scores")
	{
		scores.POST("", evaluador, scoreHandler.Save)
		scores.GET("", evaluador, scoreHandler.List)
		scores.GET("/:id/history", evaluador, scoreHandler.History)
	}

	changeRequests := api.Group("/change-requests")
	{
		changeRequests.POST("", evaluador, changeRequestHandler.Submit)
		changeRequests.GET("", evaluador, changeRequestHandler.List)
		changeRequests.GET("/:id", evaluador, changeRequestHandler.Get)
		changeRequests.POST("/:id/resolve", coordinador, changeRequestHandler.Resolve)
	}

	classification := api.Group("/classification")
	{
		classification.POST("/close", coordinador, closureHandler.Close)
		classification.POST("/promote", coordinador, closureHandler.Promote)
		classification.GET("/status", evaluador, closureHandler.Status)
	}

	medals := api.Group("/medals")
	{
		medals.POST("/assign", coordinador, medalHandler.Assign)
	}

	api.GET("/standings", evaluador, medalHandler.Standings)

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", evaluador, enrollmentHandler.List)
		enrollments.GET("/:id", evaluador, enrollmentHandler.Get)
	}

	api.GET("/audit", middleware.RequireRoles(models.RoleAdmin), auditHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
