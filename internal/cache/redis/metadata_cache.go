package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// MetadataCache implements domain.MetadataCache using JSON-serialized records.
// Metadata is write-once, so entries carry no TTL: a cached record can never
// go stale.
//
// Key schema:
//
//	metadata:{marketID} - string value containing JSON
type MetadataCache struct {
	rdb *redis.Client
}

// NewMetadataCache creates a MetadataCache backed by the given Client.
func NewMetadataCache(c *Client) *MetadataCache {
	return &MetadataCache{rdb: c.Raw()}
}

func metadataKey(marketID uint64) string {
	return "metadata:" + strconv.FormatUint(marketID, 10)
}

// Set stores a metadata record in the cache.
func (mc *MetadataCache) Set(ctx context.Context, md domain.MarketMetadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("redis: marshal metadata %d: %w", md.MarketID, err)
	}
	if err := mc.rdb.Set(ctx, metadataKey(md.MarketID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set metadata %d: %w", md.MarketID, err)
	}
	return nil
}

// Get retrieves a metadata record by market id. It returns domain.ErrNotFound
// when the key does not exist.
func (mc *MetadataCache) Get(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	data, err := mc.rdb.Get(ctx, metadataKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketMetadata{}, domain.ErrNotFound
		}
		return domain.MarketMetadata{}, fmt.Errorf("redis: get metadata %d: %w", marketID, err)
	}

	var md domain.MarketMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("redis: unmarshal metadata %d: %w", marketID, err)
	}
	return md, nil
}

// Compile-time interface check.
var _ domain.MetadataCache = (*MetadataCache)(nil)
