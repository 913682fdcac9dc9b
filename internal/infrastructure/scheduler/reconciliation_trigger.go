// Package scheduler fires the daily reconciliation run.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunFunc starts one reconciliation run
type RunFunc func(ctx context.Context, dryRun bool) error

// ReconciliationTriggerConfig holds configuration for the daily trigger
type ReconciliationTriggerConfig struct {
	// Hour and Minute of the daily slot, in Location
	Hour   int
	Minute int
	// DryRun runs the scheduled job without writes
	DryRun bool
	// CheckInterval is how often the clock is checked
	CheckInterval time.Duration
	// Location defaults to time.Local
	Location *time.Location
}

// DefaultReconciliationTriggerConfig returns default configuration
func DefaultReconciliationTriggerConfig() ReconciliationTriggerConfig {
	return ReconciliationTriggerConfig{
		Hour:          6,
		Minute:        0,
		CheckInterval: time.Minute,
		Location:      time.Local,
	}
}

// Validate checks the slot and interval
func (c ReconciliationTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidConfig, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidConfig, c.Minute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// ReconciliationTrigger runs reconciliation once per day at the configured slot
type ReconciliationTrigger struct {
	config ReconciliationTriggerConfig
	run    RunFunc
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// lastRunDate holds the YYYY-MM-DD of the last triggered slot
	lastRunDate string
}

// NewReconciliationTrigger creates a new daily trigger
func NewReconciliationTrigger(config ReconciliationTriggerConfig, run RunFunc, logger *zap.Logger) (*ReconciliationTrigger, error) {
	if run == nil {
		return nil, ErrNoRunner
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationTrigger{
		config: config,
		run:    run,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (t *ReconciliationTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reconciliation trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.Bool("dry_run", t.config.DryRun),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight run, bounded by ctx
func (t *ReconciliationTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Reconciliation trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (t *ReconciliationTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

func (t *ReconciliationTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	t.tick(ctx, t.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx, t.now())
		}
	}
}

// tick fires the run when now is at or past today's slot and today has not run.
// It returns true when a run was started.
func (t *ReconciliationTrigger) tick(ctx context.Context, now time.Time) bool {
	local := now.In(t.config.Location)
	slot := time.Date(local.Year(), local.Month(), local.Day(), t.config.Hour, t.config.Minute, 0, 0, t.config.Location)
	if local.Before(slot) {
		return false
	}

	today := local.Format("2006-01-02")
	t.mu.Lock()
	if t.lastRunDate == today {
		t.mu.Unlock()
		return false
	}
	t.lastRunDate = today
	t.mu.Unlock()

	t.logger.Info("Scheduled reconciliation starting",
		zap.String("date", today),
		zap.Bool("dry_run", t.config.DryRun),
	)
	if err := t.run(ctx, t.config.DryRun); err != nil {
		t.logger.Error("Scheduled reconciliation failed", zap.String("date", today), zap.Error(err))
	}
	return true
}
