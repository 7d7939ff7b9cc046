package domain

import "context"

// MetadataStore persists the write-once off-chain metadata records.
type MetadataStore interface {
	// Insert saves a new metadata record. It returns ErrAlreadyExists when a
	// record for the same market id is already present; metadata is never
	// updated after creation.
	Insert(ctx context.Context, md MarketMetadata) (MarketMetadata, error)

	// GetByMarketID returns the record for a market, or ErrNotFound.
	GetByMarketID(ctx context.Context, marketID uint64) (MarketMetadata, error)

	// ListRecent returns up to limit records, most recent first.
	ListRecent(ctx context.Context, limit int) ([]MarketMetadata, error)

	// ListByTag returns up to limit records with the given tag, most recent
	// first.
	ListByTag(ctx context.Context, tag MarketTag, limit int) ([]MarketMetadata, error)
}
