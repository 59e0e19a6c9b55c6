package lease

import (
	"context"
	"errors"
	"time"
)

var ErrNotHeld = errors.New("lease not held")

// Lease is a named, expiring mutual-exclusion token shared between replicas.
// Acquire returns false when another holder owns the name.
type Lease interface {
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}
