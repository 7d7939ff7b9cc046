package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// AdminDispatcher is the subset of contract write operations the admin
// endpoints need.
type AdminDispatcher interface {
	ResolveMarket(ctx context.Context, marketID uint64, outcome domain.Outcome) (string, error)
	SetCreationStakeAmount(ctx context.Context, amount *big.Int) (string, error)
}

// AdminHandler serves owner-only contract operations.
type AdminHandler struct {
	dispatcher AdminDispatcher
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(dispatcher AdminDispatcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type resolveRequest struct {
	MarketID uint64 `json:"market_id"`
	Outcome  uint8  `json:"outcome"`
}

type txResponse struct {
	TxHash string `json:"tx_hash"`
}

// ResolveMarket submits the resolution transaction for a market.
// POST /api/admin/resolve
func (h *AdminHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MarketID == 0 {
		writeError(w, http.StatusBadRequest, "missing market_id")
		return
	}

	outcome := domain.Outcome(req.Outcome)
	switch outcome {
	case domain.OutcomeOptionA, domain.OutcomeOptionB, domain.OutcomeInvalid:
	default:
		writeError(w, http.StatusBadRequest, "outcome must be 1 (option A), 2 (option B), or 3 (invalid)")
		return
	}

	txHash, err := h.dispatcher.ResolveMarket(r.Context(), req.MarketID, outcome)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
			slog.Uint64("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "resolve transaction failed")
		return
	}

	writeJSON(w, http.StatusOK, txResponse{TxHash: txHash})
}

type stakeRequest struct {
	Amount string `json:"amount"`
}

// SetStake updates the stake required to propose a market. The amount is a
// decimal string in the token's smallest unit.
// POST /api/admin/stake
func (h *AdminHandler) SetStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal string")
		return
	}

	txHash, err := h.dispatcher.SetCreationStakeAmount(r.Context(), amount)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set stake failed",
			slog.String("amount", amount.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "stake transaction failed")
		return
	}

	writeJSON(w, http.StatusOK, txResponse{TxHash: txHash})
}
