// Command reconcile runs one reconciliation and prints the JSON report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/reconciler/internal/bootstrap"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dryRun         bool
		toleranceValue string
		toleranceDays  int
		logLevel       string
	)

	flag.BoolVar(&dryRun, "dry-run", true, "Compute the report without writing to the database")
	flag.StringVar(&toleranceValue, "tolerance-value", "", "Accepted value difference (default from config, 1.00)")
	flag.IntVar(&toleranceDays, "tolerance-days", -1, "Accepted date difference in days (default from config, 7)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Logs go to stderr so stdout carries only the report
	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", zap.Error(err))
		return 1
	}

	req := bootstrap.DefaultRunRequest(cfg)
	req.DryRun = dryRun
	if toleranceValue != "" {
		v, err := decimal.NewFromString(toleranceValue)
		if err != nil {
			log.Error("Invalid -tolerance-value", zap.String("value", toleranceValue), zap.Error(err))
			return 2
		}
		req.Tolerance.Value = v
	}
	if toleranceDays >= 0 {
		req.Tolerance.Days = toleranceDays
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize reconciliation service", zap.Error(err))
		return 1
	}
	defer components.Close(context.Background())

	report, err := components.Service.Run(ctx, req)
	if err != nil {
		log.Error("Reconciliation run failed", zap.Error(err))
		writeJSON(dto.NewErrorResponse(dto.ErrCodeRunFailed, err.Error()))
		return 1
	}

	writeJSON(dto.NewRunReconciliationResponse(report))
	return 0
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
