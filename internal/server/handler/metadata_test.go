package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamori-labs/foresight/internal/domain"
)

type stubMetadataService struct {
	byID      map[uint64]domain.MarketMetadata
	createErr error
	listErr   error
}

func (s *stubMetadataService) Create(ctx context.Context, md domain.MarketMetadata) (domain.MarketMetadata, error) {
	if s.createErr != nil {
		return domain.MarketMetadata{}, s.createErr
	}
	md.CreatedAt = time.Now().UTC()
	return md, nil
}

func (s *stubMetadataService) GetByMarketID(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	md, ok := s.byID[marketID]
	if !ok {
		return domain.MarketMetadata{}, domain.ErrNotFound
	}
	return md, nil
}

func (s *stubMetadataService) ListRecent(ctx context.Context, limit int) ([]domain.MarketMetadata, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.MarketMetadata
	for _, md := range s.byID {
		out = append(out, md)
	}
	return out, nil
}

func (s *stubMetadataService) ListByTag(ctx context.Context, tag domain.MarketTag, limit int) ([]domain.MarketMetadata, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.MarketMetadata
	for _, md := range s.byID {
		if md.Tag == tag {
			out = append(out, md)
		}
	}
	return out, nil
}

var _ MetadataService = (*stubMetadataService)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGetMarketsSingle(t *testing.T) {
	svc := &stubMetadataService{
		byID: map[uint64]domain.MarketMetadata{
			7: {MarketID: 7, Description: "BTC above 100k", Tag: domain.TagCrypto},
		},
	}
	h := NewMetadataHandler(svc, testLogger())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets?market_id=7", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var got domain.MarketMetadata
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, uint64(7), got.MarketID)
		assert.Equal(t, "BTC above 100k", got.Description)
	})

	t.Run("missing returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets?market_id=8", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets?market_id=abc", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetMarketsList(t *testing.T) {
	svc := &stubMetadataService{
		byID: map[uint64]domain.MarketMetadata{
			1: {MarketID: 1, Tag: domain.TagCrypto},
			2: {MarketID: 2, Tag: domain.TagSports},
		},
	}
	h := NewMetadataHandler(svc, testLogger())

	t.Run("recent list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var got listMetadataResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got.Markets, 2)
	})

	t.Run("tag filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets?tag=Sports", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var got listMetadataResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got.Markets, 1)
		assert.Equal(t, uint64(2), got.Markets[0].MarketID)
	})

	t.Run("unknown tag returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/markets?tag=Weather", nil)
		rec := httptest.NewRecorder()
		h.GetMarkets(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		empty := &stubMetadataService{byID: map[uint64]domain.MarketMetadata{}}
		hEmpty := NewMetadataHandler(empty, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		rec := httptest.NewRecorder()
		hEmpty.GetMarkets(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"markets":[]`)
	})
}

func TestCreateMetadata(t *testing.T) {
	valid := domain.MarketMetadata{
		MarketID:        3,
		Description:     "ETH flips BTC",
		ProposerAddress: "0x1111111111111111111111111111111111111111",
		Tag:             domain.TagCrypto,
	}

	tests := []struct {
		name       string
		body       any
		createErr  error
		wantStatus int
	}{
		{name: "created", body: valid, wantStatus: http.StatusCreated},
		{
			name:       "validation failure",
			body:       valid,
			createErr:  fmt.Errorf("missing description: %w", domain.ErrValidation),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "proposer mismatch",
			body:       valid,
			createErr:  fmt.Errorf("submitted proposer does not match: %w", domain.ErrUnauthorized),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "duplicate",
			body:       valid,
			createErr:  fmt.Errorf("postgres: %w", domain.ErrAlreadyExists),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "upstream failure",
			body:       valid,
			createErr:  fmt.Errorf("%w: rpc timeout", domain.ErrUpstreamRead),
			wantStatus: http.StatusInternalServerError,
		},
		{name: "malformed body", body: "{not json", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubMetadataService{createErr: tt.createErr}
			h := NewMetadataHandler(svc, testLogger())

			var buf bytes.Buffer
			if s, ok := tt.body.(string); ok {
				buf.WriteString(s)
			} else {
				require.NoError(t, json.NewEncoder(&buf).Encode(tt.body))
			}

			req := httptest.NewRequest(http.MethodPost, "/api/markets", &buf)
			rec := httptest.NewRecorder()
			h.CreateMetadata(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreateMetadataSetsCreatedAt(t *testing.T) {
	svc := &stubMetadataService{}
	h := NewMetadataHandler(svc, testLogger())

	body, err := json.Marshal(domain.MarketMetadata{
		MarketID:        9,
		Description:     "test",
		ProposerAddress: "0x2222222222222222222222222222222222222222",
		Tag:             domain.TagMisc,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/markets", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateMetadata(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.MarketMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.CreatedAt.IsZero())
}
