package notification

import (
	"context"
	"time"
)

// RunLock serializes dispatcher runs across goroutines and processes.
// TryAcquire returns ErrRunInProgress when name is already held.
// The returned release function is safe to call more than once.
type RunLock interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}
