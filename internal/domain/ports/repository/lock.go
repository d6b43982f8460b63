package repository

import (
	"context"
	"time"
)

// Locker is a distributed mutual-exclusion primitive keyed by string.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
