package domain

import (
	"context"
	"time"
)

// MetadataCache caches metadata records keyed by market id. Records are
// write-once, so entries carry no TTL and are never invalidated.
type MetadataCache interface {
	Set(ctx context.Context, md MarketMetadata) error
	Get(ctx context.Context, marketID uint64) (MarketMetadata, error)
}

// RateLimiter provides distributed rate limiting, used to throttle the
// expensive proposal submission endpoint.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for live subscribers and durable streams so a
// late-joining list view can replay recent creation events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
