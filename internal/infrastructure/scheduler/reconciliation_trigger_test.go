package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReconciliationTriggerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReconciliationTriggerConfig)
		wantErr bool
	}{
		{"default", func(*ReconciliationTriggerConfig) {}, false},
		{"hour too large", func(c *ReconciliationTriggerConfig) { c.Hour = 24 }, true},
		{"negative minute", func(c *ReconciliationTriggerConfig) { c.Minute = -1 }, true},
		{"zero interval", func(c *ReconciliationTriggerConfig) { c.CheckInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultReconciliationTriggerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewReconciliationTrigger_RequiresRunner(t *testing.T) {
	_, err := NewReconciliationTrigger(DefaultReconciliationTriggerConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrNoRunner)
}

func TestReconciliationTrigger_Tick(t *testing.T) {
	var calls []bool
	run := func(_ context.Context, dryRun bool) error {
		calls = append(calls, dryRun)
		return nil
	}

	cfg := DefaultReconciliationTriggerConfig()
	cfg.Hour, cfg.Minute = 6, 30
	cfg.DryRun = true
	cfg.Location = time.UTC
	trig, err := NewReconciliationTrigger(cfg, run, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, trig.tick(ctx, day.Add(6*time.Hour+29*time.Minute)), "before the slot")
	assert.True(t, trig.tick(ctx, day.Add(6*time.Hour+30*time.Minute)), "at the slot")
	assert.False(t, trig.tick(ctx, day.Add(12*time.Hour)), "once per day")
	assert.True(t, trig.tick(ctx, day.Add(30*time.Hour+45*time.Minute)), "next day")

	assert.Equal(t, []bool{true, true}, calls)
}

func TestReconciliationTrigger_RunErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := DefaultReconciliationTriggerConfig()
	cfg.Location = time.UTC
	trig, err := NewReconciliationTrigger(cfg, func(context.Context, bool) error {
		return errors.New("token refresh failed")
	}, zap.New(core))
	require.NoError(t, err)

	assert.True(t, trig.tick(context.Background(), time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Scheduled reconciliation failed", logs.All()[0].Message)
}

func TestReconciliationTrigger_StartStop(t *testing.T) {
	var runs atomic.Int32
	cfg := DefaultReconciliationTriggerConfig()
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.Location = time.UTC

	trig, err := NewReconciliationTrigger(cfg, func(context.Context, bool) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())
	require.NoError(t, err)
	trig.now = func() time.Time { return time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC) }

	require.NoError(t, trig.Start(context.Background()))
	require.NoError(t, trig.Start(context.Background()))
	assert.True(t, trig.IsRunning())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trig.Stop(stopCtx))
	assert.False(t, trig.IsRunning())
	require.NoError(t, trig.Stop(stopCtx))
}
