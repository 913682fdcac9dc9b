package lock

import (
	"context"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/google/uuid"
)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock inside a single process.
// WARNING: it does not coordinate across instances.
type InMemoryRunLock struct {
	mu   sync.Mutex
	held map[string]heldLock
	now  func() time.Time
}

// NewInMemoryRunLock creates an in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		held: make(map[string]heldLock),
		now:  time.Now,
	}
}

// TryLock acquires key for ttl unless an unexpired holder exists
func (l *InMemoryRunLock) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = heldLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases key if token still owns it
func (l *InMemoryRunLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}

var _ reconciliation.RunLock = (*InMemoryRunLock)(nil)
