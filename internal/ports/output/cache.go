package output

import (
	"context"
	"time"
)

// Cache is a TTL key/value store. A miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// ValueCodec serialises cached values.
type ValueCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
