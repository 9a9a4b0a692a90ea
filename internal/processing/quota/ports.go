package quota

import (
	"context"
	"time"
)

// CounterStore is the quota namespace of the key-value store. A missing or
// expired key reports found=false.
type CounterStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// UsageSink receives every usage increment after it has been written.
// Implementations must not block the caller for long; delivery is best-effort.
type UsageSink interface {
	PublishUsage(ctx context.Context, usage Usage) error
}
