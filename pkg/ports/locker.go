package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across multiple process
// replicas. Within one process the session manager already serializes steps
// of a session; the locker extends that guarantee across instances.
type DistributedLocker interface {
	// Lock acquires a lock for the given key (a session ID). It blocks until
	// acquired, the context is canceled, or the attempt times out. The
	// returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
