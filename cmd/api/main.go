package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/atelier-ops/atelier-api/api/swagger"
	"github.com/atelier-ops/atelier-api/internal/handler"
	"github.com/atelier-ops/atelier-api/internal/middleware"
	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/repository"
	"github.com/atelier-ops/atelier-api/internal/service"
	"github.com/atelier-ops/atelier-api/pkg/cache"
	"github.com/atelier-ops/atelier-api/pkg/config"
	"github.com/atelier-ops/atelier-api/pkg/database"
	"github.com/atelier-ops/atelier-api/pkg/export"
	"github.com/atelier-ops/atelier-api/pkg/fiscal"
	"github.com/atelier-ops/atelier-api/pkg/logger"
	"github.com/atelier-ops/atelier-api/pkg/mailer"
	corsmiddleware "github.com/atelier-ops/atelier-api/pkg/middleware/cors"
	reqidmiddleware "github.com/atelier-ops/atelier-api/pkg/middleware/requestid"
)

// @title Atelier API
// @version 1.0.0
// @description Enrollment and billing backend for an art workshop studio
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewEventRepository(db)

	metricsSvc := service.NewMetricsService()

	var sender mailer.Sender = mailer.NopSender{}
	if cfg.Mail.Enabled {
		sender = mailer.NewSendgridSender(cfg.Mail, logr)
	}
	mailDispatcher := service.NewMailDispatcher(sender, cfg.Jobs, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	mailDispatcher.Start(ctx)
	defer mailDispatcher.Stop()

	fiscalClient := fiscal.NewClient(cfg.Fiscal)
	receipts := export.NewReceiptRenderer(cfg.Mail.FromName)

	authSvc := service.NewAuthService(userRepo, cfg.JWT, nil, logr)
	workshopSvc := service.NewWorkshopService(workshopRepo, cacheRepo, cfg.Cache.AvailabilityTTL, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, workshopRepo, userRepo, workshopSvc, metricsSvc, nil, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, fiscalClient, mailDispatcher, receipts, metricsSvc, nil, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	eventSvc := service.NewEventService(eventRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	workshopHandler := handler.NewWorkshopHandler(workshopSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	eventHandler := handler.NewEventHandler(eventSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleStudent)

	workshops := protected.Group("/workshops")
	{
		workshops.GET("", anyRole, workshopHandler.List)
		workshops.GET("/:id", anyRole, workshopHandler.Get)
		workshops.GET("/:id/availability", anyRole, workshopHandler.Availability)
		workshops.POST("", adminOnly, workshopHandler.Create)
		workshops.PUT("/:id", adminOnly, workshopHandler.Update)
	}

	students := protected.Group("/students")
	{
		students.GET("", adminOnly, studentHandler.List)
		students.GET("/:id", adminOnly, studentHandler.Get)
		students.POST("", adminOnly, studentHandler.Create)
		students.PUT("/:id", adminOnly, studentHandler.Update)
		students.DELETE("/:id", adminOnly, studentHandler.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", adminOnly, enrollmentHandler.List)
		enrollments.GET("/:id", anyRole, enrollmentHandler.Get)
		enrollments.POST("", adminOnly, enrollmentHandler.Create)
		enrollments.POST("/:id/cancel", adminOnly, enrollmentHandler.Cancel)
	}

	payments := protected.Group("/payments")
	{
		payments.GET("", adminOnly, paymentHandler.List)
		payments.GET("/export", adminOnly, paymentHandler.Export)
		payments.GET("/:id", anyRole, paymentHandler.Get)
		payments.GET("/:id/receipt", anyRole, paymentHandler.Receipt)
		payments.POST("", adminOnly, paymentHandler.Create)
		payments.POST("/:id/notify-sent", anyRole, paymentHandler.NotifySent)
		payments.POST("/:id/confirm", adminOnly, paymentHandler.Confirm)
		payments.POST("/:id/reject", adminOnly, paymentHandler.Reject)
		payments.POST("/:id/fiscal", adminOnly, paymentHandler.RecordFiscal)
		payments.POST("/:id/invoice", adminOnly, paymentHandler.IssueInvoice)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", anyRole, notificationHandler.List)
		notifications.GET("/unread-count", anyRole, notificationHandler.UnreadCount)
		notifications.POST("/:id/read", anyRole, notificationHandler.MarkRead)
	}

	protected.GET("/events", adminOnly, eventHandler.List)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
