package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/reconciler/internal/bootstrap"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/scheduler"
	"github.com/erp/reconciler/internal/interfaces/http/handler"
	"github.com/erp/reconciler/internal/interfaces/http/middleware"
	"github.com/erp/reconciler/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting commission reconciler",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()
	components, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize reconciliation service", zap.Error(err))
	}
	defer components.Close(context.Background())

	defaults := bootstrap.DefaultRunRequest(cfg)

	// Daily scheduled run
	var trigger *scheduler.ReconciliationTrigger
	if cfg.Reconciliation.SchedulerEnabled {
		trigger, err = scheduler.NewReconciliationTrigger(scheduler.ReconciliationTriggerConfig{
			Hour:          cfg.Reconciliation.ScheduleHour,
			Minute:        cfg.Reconciliation.ScheduleMinute,
			DryRun:        cfg.Reconciliation.ScheduledDryRun,
			CheckInterval: cfg.Reconciliation.CheckInterval,
		}, func(ctx context.Context, dryRun bool) error {
			req := defaults
			req.DryRun = dryRun
			_, err := components.Service.Run(ctx, req)
			return err
		}, log.Named("scheduler"))
		if err != nil {
			log.Fatal("Failed to create reconciliation trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciliation trigger", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// Middleware order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Server span, marked failed on 4xx/5xx
	// 4. Logger - Log requests
	// 5. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Outside API versioning
	engine.GET("/health", handler.NewHealthHandler(components.Database).Health)
	engine.GET("/metrics", gin.WrapH(components.Recorder.Handler()))

	r := router.NewRouter(engine)
	r.Register(handler.NewReconciliationHandler(components.Service, defaults).Routes())
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping reconciliation trigger", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
