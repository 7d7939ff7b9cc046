// Package service contains the application services: metadata CRUD with
// on-chain proposer verification, and the market watcher that turns chain
// polling into lifecycle events.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// MetadataService mediates metadata reads and writes. Writes are verified
// against the on-chain proposer before they are accepted; reads are
// cache-aside over the persistent store.
type MetadataService struct {
	store  domain.MetadataStore
	cache  domain.MetadataCache
	chain  domain.MarketReader
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewMetadataService creates a MetadataService with all required dependencies.
func NewMetadataService(
	store domain.MetadataStore,
	cache domain.MetadataCache,
	chain domain.MarketReader,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MetadataService {
	return &MetadataService{
		store:  store,
		cache:  cache,
		chain:  chain,
		bus:    bus,
		logger: logger,
	}
}

// Create validates and persists a metadata record. The proposer address must
// match the on-chain proposer for the market id (compared case-insensitively,
// since hex addresses have no canonical casing in transit); a mismatch
// returns domain.ErrUnauthorized and nothing is written.
func (s *MetadataService) Create(ctx context.Context, md domain.MarketMetadata) (domain.MarketMetadata, error) {
	if err := validateMetadata(md); err != nil {
		return domain.MarketMetadata{}, err
	}

	proposer, err := s.chain.ProposerOf(ctx, md.MarketID)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata_service: verify proposer of %d: %w", md.MarketID, fmt.Errorf("%w: %w", domain.ErrUpstreamRead, err))
	}
	if !strings.EqualFold(proposer, md.ProposerAddress) {
		return domain.MarketMetadata{}, fmt.Errorf("metadata_service: proposer mismatch for market %d: %w", md.MarketID, domain.ErrUnauthorized)
	}

	saved, err := s.store.Insert(ctx, md)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata_service: insert %d: %w", md.MarketID, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, saved); cacheErr != nil {
		s.logger.WarnContext(ctx, "metadata_service: cache set failed",
			slog.Uint64("market_id", saved.MarketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	return saved, nil
}

// GetByMarketID retrieves a metadata record, checking the cache first and
// falling back to the persistent store on a miss.
func (s *MetadataService) GetByMarketID(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	md, err := s.cache.Get(ctx, marketID)
	if err == nil {
		return md, nil
	}

	md, err = s.store.GetByMarketID(ctx, marketID)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata_service: get %d: %w", marketID, err)
	}

	if cacheErr := s.cache.Set(ctx, md); cacheErr != nil {
		s.logger.WarnContext(ctx, "metadata_service: cache set failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	return md, nil
}

// ListRecent returns the newest records, most recent first.
func (s *MetadataService) ListRecent(ctx context.Context, limit int) ([]domain.MarketMetadata, error) {
	out, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("metadata_service: list recent: %w", err)
	}
	return out, nil
}

// ListByTag returns records with the given tag, most recent first.
func (s *MetadataService) ListByTag(ctx context.Context, tag domain.MarketTag, limit int) ([]domain.MarketMetadata, error) {
	if !domain.IsValidTag(string(tag)) {
		return nil, fmt.Errorf("metadata_service: unknown tag %q: %w", tag, domain.ErrValidation)
	}
	out, err := s.store.ListByTag(ctx, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("metadata_service: list by tag %q: %w", tag, err)
	}
	return out, nil
}

func validateMetadata(md domain.MarketMetadata) error {
	var missing []string
	if md.MarketID == 0 {
		missing = append(missing, "market_id")
	}
	if strings.TrimSpace(md.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(md.ProposerAddress) == "" {
		missing = append(missing, "proposer_address")
	}
	if strings.TrimSpace(string(md.Tag)) == "" {
		missing = append(missing, "tag")
	}
	if len(missing) > 0 {
		return fmt.Errorf("metadata_service: missing fields %s: %w", strings.Join(missing, ", "), domain.ErrValidation)
	}
	if !domain.IsValidTag(string(md.Tag)) {
		return fmt.Errorf("metadata_service: unknown tag %q: %w", md.Tag, domain.ErrValidation)
	}
	return nil
}
