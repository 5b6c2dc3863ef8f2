package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

type lease struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock within one process.
// An expired lease may be taken over by the next caller.
type InMemoryRunLock struct {
	mu     sync.Mutex
	leases map[string]lease
	next   uint64
	now    func() time.Time
}

// NewInMemoryRunLock creates an in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// TryAcquire takes the lock for name or fails with ErrRunInProgress
func (l *InMemoryRunLock) TryAcquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[name]; ok && held.active(now) {
		return nil, notification.ErrRunInProgress
	}

	l.next++
	token := l.next
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	l.leases[name] = lease{token: token, expiresAt: expiresAt}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[name]; ok && held.token == token {
			delete(l.leases, name)
		}
		return nil
	}, nil
}

// Held reports whether name is currently locked
func (l *InMemoryRunLock) Held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[name]
	return ok && held.active(l.now())
}

// active reports whether the lease is unexpired; a zero expiry never expires
func (l lease) active(now time.Time) bool {
	return l.expiresAt.IsZero() || now.Before(l.expiresAt)
}

var _ notification.RunLock = (*InMemoryRunLock)(nil)
