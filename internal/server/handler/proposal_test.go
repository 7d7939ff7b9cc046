package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamori-labs/foresight/internal/domain"
	"github.com/nakamori-labs/foresight/internal/proposal"
)

type stubRunner struct {
	gotReq proposal.Request
	result proposal.Result
	err    error
}

func (s *stubRunner) Run(ctx context.Context, req proposal.Request) (proposal.Result, error) {
	s.gotReq = req
	return s.result, s.err
}

func buildProposalForm(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withImage {
		fw, err := mw.CreateFormFile("image", "banner.png")
		require.NoError(t, err)
		_, err = io.WriteString(fw, "fake png bytes")
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func proposalFields() map[string]string {
	return map[string]string{
		"question":        "Will it rain tomorrow?",
		"option_a":        "Yes",
		"option_b":        "No",
		"description":     "Resolves by official forecast",
		"tag":             "Misc",
		"resolution_time": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}
}

func TestSubmitProposalSuccess(t *testing.T) {
	runner := &stubRunner{
		result: proposal.Result{MarketID: 42, ImageURL: "https://cdn.example/markets/x.png", TxHash: "0xabc"},
	}
	h := NewProposalHandler(runner, testLogger())

	body, contentType := buildProposalForm(t, proposalFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.SubmitProposal(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got proposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(42), got.MarketID)
	assert.Equal(t, "0xabc", got.TxHash)

	assert.Equal(t, "Will it rain tomorrow?", runner.gotReq.Question)
	assert.Equal(t, ".png", runner.gotReq.ImageExt)
	assert.NotNil(t, runner.gotReq.Image)
}

func TestSubmitProposalValidationFailure(t *testing.T) {
	runner := &stubRunner{
		err: &proposal.StepError{
			Step: proposal.StepIdle,
			Err:  errors.New("missing fields question"),
		},
	}
	h := NewProposalHandler(runner, testLogger())

	fields := proposalFields()
	delete(fields, "question")
	body, contentType := buildProposalForm(t, fields, true)
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.SubmitProposal(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var got proposalErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "idle", got.Step)
}

func TestSubmitProposalStepFailureCarriesPartialResult(t *testing.T) {
	runner := &stubRunner{
		result: proposal.Result{MarketID: 42, TxHash: "0xabc"},
		err: &proposal.StepError{
			Step: proposal.StepPersistingMetadata,
			Err:  domain.ErrTxFailed,
		},
	}
	h := NewProposalHandler(runner, testLogger())

	body, contentType := buildProposalForm(t, proposalFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.SubmitProposal(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var got proposalErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "persisting_metadata", got.Step)
	assert.Equal(t, uint64(42), got.MarketID)
	assert.Equal(t, "0xabc", got.TxHash)
}

func TestSubmitProposalBadResolutionTime(t *testing.T) {
	h := NewProposalHandler(&stubRunner{}, testLogger())

	fields := proposalFields()
	fields["resolution_time"] = "next tuesday"
	body, contentType := buildProposalForm(t, fields, true)
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.SubmitProposal(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseResolutionTime(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		got, err := parseResolutionTime("2026-09-10T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2026, got.Year())
	})

	t.Run("unix seconds", func(t *testing.T) {
		got, err := parseResolutionTime("1790000000")
		require.NoError(t, err)
		assert.Equal(t, int64(1790000000), got.Unix())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseResolutionTime("soon")
		assert.Error(t, err)
	})
}
