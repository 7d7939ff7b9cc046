package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// MetadataService defines the methods the markets handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MetadataService interface {
	Create(ctx context.Context, md domain.MarketMetadata) (domain.MarketMetadata, error)
	GetByMarketID(ctx context.Context, marketID uint64) (domain.MarketMetadata, error)
	ListRecent(ctx context.Context, limit int) ([]domain.MarketMetadata, error)
	ListByTag(ctx context.Context, tag domain.MarketTag, limit int) ([]domain.MarketMetadata, error)
}

// MetadataHandler serves the market metadata HTTP endpoints.
type MetadataHandler struct {
	metadata MetadataService
	logger   *slog.Logger
}

// NewMetadataHandler creates a MetadataHandler with the given service and logger.
func NewMetadataHandler(metadata MetadataService, logger *slog.Logger) *MetadataHandler {
	return &MetadataHandler{
		metadata: metadata,
		logger:   logger,
	}
}

// listMetadataResponse wraps the list endpoint output.
type listMetadataResponse struct {
	Markets []domain.MarketMetadata `json:"markets"`
	Limit   int                     `json:"limit"`
}

// GetMarkets dispatches on the query string: a market_id parameter selects a
// single record (404 when absent), a tag parameter selects a filtered list,
// and no parameter returns the most recent records.
// GET /api/markets?market_id=7 | ?tag=Crypto | ?limit=50
func (h *MetadataHandler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("market_id"); raw != "" {
		id, err := parseMarketID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid market_id")
			return
		}
		md, err := h.metadata.GetByMarketID(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no metadata for market")
				return
			}
			h.logger.ErrorContext(r.Context(), "handler: get metadata failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get metadata")
			return
		}
		writeJSON(w, http.StatusOK, md)
		return
	}

	limit := parseLimit(r)

	var (
		records []domain.MarketMetadata
		err     error
	)
	if tag := q.Get("tag"); tag != "" {
		if !domain.IsValidTag(tag) {
			writeError(w, http.StatusBadRequest, "unknown tag")
			return
		}
		records, err = h.metadata.ListByTag(r.Context(), domain.MarketTag(tag), limit)
	} else {
		records, err = h.metadata.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list metadata failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list metadata")
		return
	}

	if records == nil {
		records = []domain.MarketMetadata{}
	}
	writeJSON(w, http.StatusOK, listMetadataResponse{
		Markets: records,
		Limit:   limit,
	})
}

// CreateMetadata stores a new metadata record after verifying the submitted
// proposer against the market's on-chain proposer.
// POST /api/markets
func (h *MetadataHandler) CreateMetadata(w http.ResponseWriter, r *http.Request) {
	var md domain.MarketMetadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.metadata.Create(r.Context(), md)
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrUnauthorized) {
			h.logger.ErrorContext(r.Context(), "handler: create metadata failed",
				slog.Uint64("market_id", md.MarketID),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}
