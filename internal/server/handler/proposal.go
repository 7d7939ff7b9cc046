package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nakamori-labs/foresight/internal/proposal"
)

// maxProposalForm caps the multipart form size, dominated by the image.
const maxProposalForm = 10 << 20 // 10 MiB

// ProposalRunner executes proposal submissions. The proposal flow
// satisfies it.
type ProposalRunner interface {
	Run(ctx context.Context, req proposal.Request) (proposal.Result, error)
}

// ProposalHandler serves the market proposal endpoint.
type ProposalHandler struct {
	flow   ProposalRunner
	logger *slog.Logger
}

// NewProposalHandler creates a ProposalHandler.
func NewProposalHandler(flow ProposalRunner, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		flow:   flow,
		logger: logger,
	}
}

// proposalResponse reports a successful submission.
type proposalResponse struct {
	MarketID uint64 `json:"market_id"`
	ImageURL string `json:"image_url"`
	TxHash   string `json:"tx_hash"`
}

// proposalErrorResponse reports a failed submission with the step that
// failed, plus any partial result (a market may exist on-chain even when a
// later step failed).
type proposalErrorResponse struct {
	Error    string `json:"error"`
	Step     string `json:"step"`
	MarketID uint64 `json:"market_id,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
}

// SubmitProposal accepts a multipart form describing a new market and runs
// the full submission flow with the service wallet.
// POST /api/proposals
func (h *ProposalHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxProposalForm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	resolutionTime, err := parseResolutionTime(r.FormValue("resolution_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution_time")
		return
	}

	req := proposal.Request{
		Question:       r.FormValue("question"),
		OptionA:        r.FormValue("option_a"),
		OptionB:        r.FormValue("option_b"),
		Description:    r.FormValue("description"),
		Tag:            r.FormValue("tag"),
		ResolutionTime: resolutionTime,
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		req.Image = file
		req.ImageExt = filepath.Ext(header.Filename)
	}

	result, err := h.flow.Run(r.Context(), req)
	if err != nil {
		h.writeFlowError(w, r, result, err)
		return
	}

	writeJSON(w, http.StatusCreated, proposalResponse{
		MarketID: result.MarketID,
		ImageURL: result.ImageURL,
		TxHash:   result.TxHash,
	})
}

func (h *ProposalHandler) writeFlowError(w http.ResponseWriter, r *http.Request, result proposal.Result, err error) {
	var stepErr *proposal.StepError
	if !errors.As(err, &stepErr) {
		h.logger.ErrorContext(r.Context(), "handler: proposal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "proposal failed")
		return
	}

	status := http.StatusBadGateway
	if stepErr.Step == proposal.StepIdle {
		status = http.StatusBadRequest
	}

	if status != http.StatusBadRequest {
		h.logger.ErrorContext(r.Context(), "handler: proposal step failed",
			slog.String("step", string(stepErr.Step)),
			slog.String("error", stepErr.Err.Error()),
		)
	}

	writeJSON(w, status, proposalErrorResponse{
		Error:    stepErr.Err.Error(),
		Step:     string(stepErr.Step),
		MarketID: result.MarketID,
		TxHash:   result.TxHash,
	})
}

// parseResolutionTime accepts RFC 3339 timestamps or unix seconds.
func parseResolutionTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}
