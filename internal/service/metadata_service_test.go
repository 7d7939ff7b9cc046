package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamori-labs/foresight/internal/domain"
)

type memStore struct {
	records map[uint64]domain.MarketMetadata
	fail    error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uint64]domain.MarketMetadata)}
}

func (s *memStore) Insert(ctx context.Context, md domain.MarketMetadata) (domain.MarketMetadata, error) {
	if s.fail != nil {
		return domain.MarketMetadata{}, s.fail
	}
	if _, ok := s.records[md.MarketID]; ok {
		return domain.MarketMetadata{}, domain.ErrAlreadyExists
	}
	s.records[md.MarketID] = md
	return md, nil
}

func (s *memStore) GetByMarketID(ctx context.Context, id uint64) (domain.MarketMetadata, error) {
	if s.fail != nil {
		return domain.MarketMetadata{}, s.fail
	}
	md, ok := s.records[id]
	if !ok {
		return domain.MarketMetadata{}, domain.ErrNotFound
	}
	return md, nil
}

func (s *memStore) ListRecent(ctx context.Context, limit int) ([]domain.MarketMetadata, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []domain.MarketMetadata
	for _, md := range s.records {
		out = append(out, md)
	}
	return out, nil
}

func (s *memStore) ListByTag(ctx context.Context, tag domain.MarketTag, limit int) ([]domain.MarketMetadata, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []domain.MarketMetadata
	for _, md := range s.records {
		if md.Tag == tag {
			out = append(out, md)
		}
	}
	return out, nil
}

type memCache struct {
	entries  map[uint64]domain.MarketMetadata
	getCalls int
	setCalls int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[uint64]domain.MarketMetadata)}
}

func (c *memCache) Set(ctx context.Context, md domain.MarketMetadata) error {
	c.setCalls++
	c.entries[md.MarketID] = md
	return nil
}

func (c *memCache) Get(ctx context.Context, id uint64) (domain.MarketMetadata, error) {
	c.getCalls++
	md, ok := c.entries[id]
	if !ok {
		return domain.MarketMetadata{}, domain.ErrNotFound
	}
	return md, nil
}

type stubChain struct {
	domain.MarketReader
	proposer    string
	proposerErr error
}

func (c *stubChain) ProposerOf(ctx context.Context, id uint64) (string, error) {
	if c.proposerErr != nil {
		return "", c.proposerErr
	}
	return c.proposer, nil
}

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (nopBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}
func (nopBus) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }
func (nopBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func validMetadata() domain.MarketMetadata {
	return domain.MarketMetadata{
		MarketID:        3,
		Description:     "a market",
		ProposerAddress: "0xAbCd000000000000000000000000000000000001",
		Tag:             domain.TagCrypto,
	}
}

func newTestService(store *memStore, cache *memCache, chain *stubChain) *MetadataService {
	return NewMetadataService(store, cache, chain, nopBus{}, slog.Default())
}

func TestCreateVerifiesProposerCaseInsensitive(t *testing.T) {
	store := newMemStore()
	// On-chain proposer differs only in hex casing.
	chain := &stubChain{proposer: "0xABCD000000000000000000000000000000000001"}
	svc := newTestService(store, newMemCache(), chain)

	saved, err := svc.Create(context.Background(), validMetadata())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), saved.MarketID)
	assert.Len(t, store.records, 1)
}

func TestCreateRejectsProposerMismatch(t *testing.T) {
	store := newMemStore()
	chain := &stubChain{proposer: "0x0000000000000000000000000000000000000099"}
	svc := newTestService(store, newMemCache(), chain)

	_, err := svc.Create(context.Background(), validMetadata())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, store.records)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemStore(), newMemCache(), &stubChain{})

	tests := []struct {
		name   string
		mutate func(*domain.MarketMetadata)
	}{
		{"missing description", func(md *domain.MarketMetadata) { md.Description = "" }},
		{"missing proposer", func(md *domain.MarketMetadata) { md.ProposerAddress = "" }},
		{"missing tag", func(md *domain.MarketMetadata) { md.Tag = "" }},
		{"unknown tag", func(md *domain.MarketMetadata) { md.Tag = "Cooking" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := validMetadata()
			tt.mutate(&md)
			_, err := svc.Create(context.Background(), md)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateWrapsUpstreamReadFailure(t *testing.T) {
	chain := &stubChain{proposerErr: errors.New("rpc timeout")}
	svc := newTestService(newMemStore(), newMemCache(), chain)

	_, err := svc.Create(context.Background(), validMetadata())
	assert.ErrorIs(t, err, domain.ErrUpstreamRead)
}

func TestGetByMarketIDCacheAside(t *testing.T) {
	store := newMemStore()
	cache := newMemCache()
	chain := &stubChain{proposer: "0xAbCd000000000000000000000000000000000001"}
	svc := newTestService(store, cache, chain)

	_, err := svc.Create(context.Background(), validMetadata())
	require.NoError(t, err)

	// Wipe the cache to force a store read plus back-fill.
	cache.entries = make(map[uint64]domain.MarketMetadata)
	setCallsBefore := cache.setCalls

	md, err := svc.GetByMarketID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "a market", md.Description)
	assert.Greater(t, cache.setCalls, setCallsBefore)

	// Second read is served from the cache.
	_, err = svc.GetByMarketID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, cache.setCalls, setCallsBefore+1)
}

func TestGetByMarketIDNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), newMemCache(), &stubChain{})

	_, err := svc.GetByMarketID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByTagRejectsUnknownTag(t *testing.T) {
	svc := newTestService(newMemStore(), newMemCache(), &stubChain{})

	_, err := svc.ListByTag(context.Background(), "NotATag", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// Interface conformance for the test doubles.
var (
	_ domain.MetadataStore = (*memStore)(nil)
	_ domain.MetadataCache = (*memCache)(nil)
	_ domain.SignalBus     = nopBus{}
)
