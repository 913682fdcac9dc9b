// Package bootstrap assembles the reconciliation service from configuration.
// Both the HTTP server and the one-shot CLI start from here.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	app "github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/erp"
	"github.com/erp/reconciler/internal/infrastructure/lock"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/metrics"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Components holds the wired service and the resources it owns
type Components struct {
	Config   *config.Config
	Database *persistence.Database
	Tracer   *telemetry.TracerProvider
	Recorder *metrics.Recorder
	Lock     reconciliation.RunLock
	Service  *app.Service
	logger   *zap.Logger
}

// New opens the database, the tracer provider and the run lock, and builds
// the reconciliation service on top of them. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, logger: log, Recorder: metrics.NewRecorder()}

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init tracer provider: %w", err)
	}
	c.Tracer = tp

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	c.Database = db
	log.Info("Database connected successfully")

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.App.Env == "development"
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("register database tracing: %w", err)
	}

	blingCfg := erp.BlingConfigFromERP(&cfg.ERP)
	tokens := erp.NewTokenManager(blingCfg, persistence.NewGormCredentialRepository(db.DB), log)
	client, err := erp.NewClient(blingCfg, tokens, log, erp.WithRequestObserver(c.Recorder))
	if err != nil {
		c.Close(ctx)
		return nil, err
	}

	c.Lock = lock.NewFactory(cfg.Redis, log).Create()
	c.Service = app.NewService(
		persistence.NewGormInstallmentRepository(db.DB),
		persistence.NewGormSalesOrderRepository(db.DB),
		client,
		c.Lock,
		log,
		app.WithRecorder(c.Recorder),
		app.WithLockTTL(cfg.Reconciliation.LockTTL),
	)
	return c, nil
}

// DefaultRunRequest returns the configured run defaults: a dry run with the
// configured tolerance.
func DefaultRunRequest(cfg *config.Config) app.RunRequest {
	req := app.DefaultRunRequest()
	req.Tolerance.Value = decimal.NewFromFloat(cfg.Reconciliation.ToleranceValue)
	req.Tolerance.Days = cfg.Reconciliation.ToleranceDays
	return req
}

// Close releases the lock backend, the database and the tracer provider
func (c *Components) Close(ctx context.Context) {
	if closer, ok := c.Lock.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Error("Error closing run lock", zap.Error(err))
		}
	}
	if c.Database != nil {
		if err := c.Database.Close(); err != nil {
			c.logger.Error("Error closing database", zap.Error(err))
		}
	}
	if c.Tracer != nil {
		_ = c.Tracer.Shutdown(ctx)
	}
}
