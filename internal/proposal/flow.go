// Package proposal implements the market proposal submission flow as an
// explicit state machine. Each run walks
// Idle, UploadingImage, ApprovingAllowance, SubmittingProposal,
// AwaitingConfirmation, PersistingMetadata, Done; any step's failure moves to
// the terminal Failed step with the originating step recorded. The flow never
// auto-retries from Failed; the caller resubmits from scratch.
package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// Step identifies one stage of the proposal flow.
type Step string

const (
	StepIdle                 Step = "idle"
	StepUploadingImage       Step = "uploading_image"
	StepApprovingAllowance   Step = "approving_allowance"
	StepSubmittingProposal   Step = "submitting_proposal"
	StepAwaitingConfirmation Step = "awaiting_confirmation"
	StepPersistingMetadata   Step = "persisting_metadata"
	StepDone                 Step = "done"
	StepFailed               Step = "failed"
)

// Resolution-time bounds for a new market, measured from submission time.
const (
	MinResolutionLead = time.Hour
	MaxResolutionLead = 30 * 24 * time.Hour
)

// Retry schedule for extracting the market id from the receipt. Event logs
// may not be immediately queryable after the receipt lands.
var extractBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// StepError records which step a failed flow was in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("proposal: step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Request carries everything the user supplies for a new market.
type Request struct {
	Question       string
	OptionA        string
	OptionB        string
	Description    string
	Tag            string
	ResolutionTime time.Time
	Image          io.Reader
	ImageExt       string
}

// Result is the outcome of a completed flow.
type Result struct {
	MarketID uint64
	ImageURL string
	TxHash   string
}

// Notifier is the outbound alert surface for failed submissions.
type Notifier interface {
	Notify(ctx context.Context, event string, message string) error
}

// Flow executes proposal submissions with the service wallet. It is safe for
// concurrent use; each Run is independent.
type Flow struct {
	dispatcher domain.MarketDispatcher
	reader     domain.MarketReader
	images     domain.ImageUploader
	store      domain.MetadataStore
	bus        domain.SignalBus
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
	backoff    []time.Duration
}

// FlowConfig wires the flow's collaborators. Notifier is optional.
type FlowConfig struct {
	Dispatcher domain.MarketDispatcher
	Reader     domain.MarketReader
	Images     domain.ImageUploader
	Store      domain.MetadataStore
	Bus        domain.SignalBus
	Notifier   Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewFlow creates a Flow.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Flow{
		dispatcher: cfg.Dispatcher,
		reader:     cfg.Reader,
		images:     cfg.Images,
		store:      cfg.Store,
		bus:        cfg.Bus,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		now:        cfg.Now,
		backoff:    extractBackoff,
	}
}

// Validate checks the request without touching the network. Every field must
// be present and the resolution time must fall strictly inside
// (now+1h, now+30d).
func (f *Flow) Validate(req Request) error {
	now := f.now()

	var missing []string
	if strings.TrimSpace(req.Question) == "" {
		missing = append(missing, "question")
	}
	if strings.TrimSpace(req.OptionA) == "" {
		missing = append(missing, "option_a")
	}
	if strings.TrimSpace(req.OptionB) == "" {
		missing = append(missing, "option_b")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if req.Image == nil {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields %s: %w", strings.Join(missing, ", "), domain.ErrValidation)
	}

	if !domain.IsValidTag(req.Tag) {
		return fmt.Errorf("unknown tag %q: %w", req.Tag, domain.ErrValidation)
	}

	if !req.ResolutionTime.After(now.Add(MinResolutionLead)) {
		return fmt.Errorf("resolution time must be more than 1 hour out: %w", domain.ErrValidation)
	}
	if !req.ResolutionTime.Before(now.Add(MaxResolutionLead)) {
		return fmt.Errorf("resolution time must be less than 30 days out: %w", domain.ErrValidation)
	}
	return nil
}

// Run executes the full flow. On success it broadcasts an optimistic
// MarketCreatedEvent so open list views show the market before their next
// poll. The on-chain steps and the metadata save are non-atomic: when the
// metadata save fails after the proposal confirmed, the market exists with
// placeholder metadata and the flow reports the persisting step as failed.
func (f *Flow) Run(ctx context.Context, req Request) (Result, error) {
	if err := f.Validate(req); err != nil {
		return Result{}, &StepError{Step: StepIdle, Err: err}
	}

	log := f.logger.With("question", req.Question)

	imageURL, err := f.images.Upload(ctx, req.Image, req.ImageExt, f.dispatcher.Sender())
	if err != nil {
		return f.fail(ctx, req, Result{}, StepUploadingImage, err)
	}
	log.Info("image uploaded", "url", imageURL)

	if err := f.approveStake(ctx); err != nil {
		return f.fail(ctx, req, Result{}, StepApprovingAllowance, err)
	}

	txHash, err := f.dispatcher.ProposeMarket(ctx, req.Question, req.OptionA, req.OptionB, req.ResolutionTime)
	if err != nil {
		return f.fail(ctx, req, Result{}, StepSubmittingProposal, err)
	}
	log.Info("proposal submitted", "tx", txHash)

	receipt, err := f.dispatcher.WaitMined(ctx, txHash)
	if err != nil {
		return f.fail(ctx, req, Result{}, StepAwaitingConfirmation, err)
	}
	if !receipt.Succeeded {
		return f.fail(ctx, req, Result{}, StepAwaitingConfirmation, fmt.Errorf("tx %s reverted: %w", txHash, domain.ErrTxFailed))
	}

	marketID, err := f.extractMarketID(ctx, receipt)
	if err != nil {
		return f.fail(ctx, req, Result{}, StepAwaitingConfirmation, err)
	}
	log.Info("market created", "market_id", marketID)

	md := domain.MarketMetadata{
		MarketID:        marketID,
		Description:     req.Description,
		ImageURL:        imageURL,
		ProposerAddress: f.dispatcher.Sender(),
		Tag:             domain.MarketTag(req.Tag),
	}
	saved, err := f.store.Insert(ctx, md)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		// The market exists on-chain; surfacing the failed step is all the
		// cleanup there is.
		return f.fail(ctx, req, Result{MarketID: marketID, TxHash: txHash}, StepPersistingMetadata, err)
	}
	if err == nil {
		md = saved
	}

	f.broadcastCreated(ctx, req, md)

	return Result{MarketID: marketID, ImageURL: imageURL, TxHash: txHash}, nil
}

// fail wraps err with the originating step and alerts operators. Validation
// rejections never reach here; a bad request is the submitter's problem, not
// an operational one.
func (f *Flow) fail(ctx context.Context, req Request, partial Result, step Step, err error) (Result, error) {
	if f.notifier != nil {
		msg := fmt.Sprintf("Proposal %q failed at %s: %v", req.Question, step, err)
		if nerr := f.notifier.Notify(ctx, "proposal_failed", msg); nerr != nil {
			f.logger.Warn("notify proposal failure", "error", nerr)
		}
	}
	return partial, &StepError{Step: step, Err: err}
}

// approveStake reads the current stake requirement, approves that allowance
// on the collateral token, and waits for the approval to confirm.
func (f *Flow) approveStake(ctx context.Context) error {
	stake, err := f.reader.CreationStakeAmount(ctx)
	if err != nil {
		return fmt.Errorf("read stake amount: %w", err)
	}

	txHash, err := f.dispatcher.ApproveStake(ctx, stake)
	if err != nil {
		return err
	}
	receipt, err := f.dispatcher.WaitMined(ctx, txHash)
	if err != nil {
		return err
	}
	if !receipt.Succeeded {
		return fmt.Errorf("approval tx %s reverted: %w", txHash, domain.ErrTxFailed)
	}
	return nil
}

// extractMarketID pulls the new market id from the receipt's MarketCreated
// event, retrying on failure with increasing backoff.
func (f *Flow) extractMarketID(ctx context.Context, receipt domain.TxReceipt) (uint64, error) {
	var lastErr error
	for attempt := 0; attempt <= len(f.backoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(f.backoff[attempt-1]):
			}
		}

		id, err := f.dispatcher.MarketIDFromReceipt(ctx, receipt)
		if err == nil {
			return id, nil
		}
		lastErr = err
		f.logger.Warn("market id extraction failed", "attempt", attempt+1, "error", err)
	}
	return 0, fmt.Errorf("extract market id after %d attempts: %w", len(f.backoff)+1, lastErr)
}

// broadcastCreated publishes the optimistic creation event. Broadcast is
// fire-and-forget: a publish failure is logged, never surfaced.
func (f *Flow) broadcastCreated(ctx context.Context, req Request, md domain.MarketMetadata) {
	ev := domain.MarketCreatedEvent{
		MarketID:  md.MarketID,
		Question:  req.Question,
		OptionA:   req.OptionA,
		OptionB:   req.OptionB,
		EndTime:   req.ResolutionTime,
		Proposer:  md.ProposerAddress,
		Tag:       md.Tag,
		ImageURL:  md.ImageURL,
		CreatedAt: f.now(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		f.logger.Warn("marshal created event", "error", err)
		return
	}
	if err := f.bus.Publish(ctx, domain.ChannelMarketCreated, payload); err != nil {
		f.logger.Warn("publish created event", "error", err)
	}
	if err := f.bus.StreamAppend(ctx, domain.ChannelMarketCreated, payload); err != nil {
		f.logger.Warn("append created event", "error", err)
	}
}
