package lock

import (
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Factory creates the run lock based on configuration
type Factory struct {
	redisConfig config.RedisConfig
	logger      *zap.Logger
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{redisConfig: cfg, logger: logger}
}

// Create returns a Redis lock when Redis is enabled and reachable, otherwise
// an in-memory lock.
func (f *Factory) Create() reconciliation.RunLock {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory run lock")
		return NewInMemoryRunLock()
	}

	l, err := NewRedisRunLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
			"Concurrent runs from other instances will not be blocked.",
			zap.Error(err),
		)
		return NewInMemoryRunLock()
	}

	f.logger.Info("using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
	return l
}
