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

	_ "github.com/noah-isme/feedback-insights-api/api/swagger"
	"github.com/noah-isme/feedback-insights-api/internal/handler"
	"github.com/noah-isme/feedback-insights-api/internal/middleware"
	"github.com/noah-isme/feedback-insights-api/internal/repository"
	"github.com/noah-isme/feedback-insights-api/internal/service"
	"github.com/noah-isme/feedback-insights-api/pkg/cache"
	"github.com/noah-isme/feedback-insights-api/pkg/config"
	"github.com/noah-isme/feedback-insights-api/pkg/database"
	"github.com/noah-isme/feedback-insights-api/pkg/jobs"
	"github.com/noah-isme/feedback-insights-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/feedback-insights-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/feedback-insights-api/pkg/middleware/requestid"
	"github.com/noah-isme/feedback-insights-api/pkg/storage"
)

// @title Feedback Insights API
// @version 0.1.0
// @description Feedback aggregation and reporting service
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users := repository.NewUserRepository(db)
	departments := repository.NewDepartmentRepository(db)
	questions := repository.NewQuestionRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	reportJobs := repository.NewReportRepository(db)
	tokens := repository.NewTokenRepository(redisClient)

	validate := validator.New()
	metrics := service.NewMetricsService()

	authService := service.NewAuthService(users, tokens, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "feedback-insights-api",
	})
	statsService := service.NewStatsService(questions, departments, feedback, metrics, logr, cfg.Stats.DepartmentWorkers)
	roleReportService := service.NewRoleReportService(feedback, logr)
	feedbackService := service.NewFeedbackService(feedback, questions, users, validate, logr)

	var reportService *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService := service.NewExportService(statsService, roleReportService, feedback, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)

		reportQueue = jobs.NewQueue("reports", func(ctx context.Context, job jobs.Job) error {
			return reportService.ProcessJob(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportService = service.NewReportService(reportJobs, reportQueue, exportService, metrics, logr)

		reportQueue.Start(ctx)
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL)
	}

	authHandler := handler.NewAuthHandler(authService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	statsHandler := handler.NewStatsHandler(statsService, roleReportService)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	api.POST("/feedback",
		middleware.JWT(authService),
		middleware.RequirePolicy(service.CanSubmitFeedback),
		feedbackHandler.Submit)

	stats := api.Group("/stats", middleware.JWT(authService), middleware.RequirePolicy(service.CanViewAggregates))
	stats.GET("/questions/:id", statsHandler.QuestionStats)
	stats.GET("/departments/:id", statsHandler.DepartmentStats)
	stats.GET("/overall", statsHandler.OverallStats)

	api.GET("/reports/roles/:role",
		middleware.JWT(authService),
		middleware.RequirePolicy(service.CanViewIndividualReports),
		statsHandler.IndividualRoleReport)

	if cfg.Reports.Enabled {
		reportHandler := handler.NewReportHandler(reportService)
		reportsGroup := api.Group("/reports", middleware.JWT(authService), middleware.RequirePolicy(service.CanViewAggregates))
		reportsGroup.POST("", reportHandler.Create)
		reportsGroup.GET("/:id", reportHandler.Status)

		// Download is authorized by the signed token itself.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown incomplete", zap.Error(err))
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
