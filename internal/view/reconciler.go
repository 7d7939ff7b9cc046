package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// DefaultPollInterval matches the refresh cadence of the market and position
// sources.
const DefaultPollInterval = 5 * time.Second

// MetadataSource is the narrow read surface the reconciler needs from the
// metadata layer.
type MetadataSource interface {
	GetByMarketID(ctx context.Context, marketID uint64) (domain.MarketMetadata, error)
}

// Reconciler keeps one market's Snapshot refreshed. It polls the chain reader
// for market state (and, when a wallet is set, the wallet's position) on a
// fixed interval, fetches metadata exactly once, and recomputes the derived
// fields on every applied update.
//
// Poll responses can arrive out of order. Each issued request carries a
// monotonic sequence number per source, and a response is discarded when a
// higher-numbered response has already been applied.
type Reconciler struct {
	marketID uint64
	wallet   string

	markets  domain.MarketReader
	metadata MetadataSource

	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	snap    Snapshot
	stopped bool

	marketSeq     uint64 // last issued market poll
	marketApplied uint64 // highest applied market poll
	posSeq        uint64
	posApplied    uint64
}

// ReconcilerConfig configures a Reconciler. Zero-value Interval, Now, and
// Logger fall back to defaults.
type ReconcilerConfig struct {
	MarketID uint64
	Wallet   string
	Markets  domain.MarketReader
	Metadata MetadataSource
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewReconciler creates a Reconciler in the loading state.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		marketID: cfg.MarketID,
		wallet:   cfg.Wallet,
		markets:  cfg.Markets,
		metadata: cfg.Metadata,
		interval: cfg.Interval,
		now:      cfg.Now,
		logger:   cfg.Logger.With("market_id", cfg.MarketID),
		snap: Snapshot{
			Loading:  true,
			Metadata: domain.MarketMetadata{MarketID: cfg.MarketID, ImageURL: domain.DefaultImageURL},
		},
	}
}

// Snapshot returns a copy of the current reconciled view.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Run polls until ctx is cancelled. Metadata is fetched once up front; a miss
// or error falls back to the placeholder image with no further retry. After
// ctx is cancelled the reconciler is inert: late responses are ignored and
// the snapshot no longer changes.
func (r *Reconciler) Run(ctx context.Context) {
	r.fetchMetadataOnce(ctx)
	r.pollOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.stop()
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// Refresh forces an immediate poll outside the ticker cadence, used after a
// dispatcher action confirms.
func (r *Reconciler) Refresh(ctx context.Context) {
	r.pollOnce(ctx)
}

func (r *Reconciler) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// fetchMetadataOnce performs the single metadata fetch. Metadata is
// write-once upstream, so a hit is cached for the reconciler's lifetime and
// a miss is a valid terminal state rendered with the placeholder image.
func (r *Reconciler) fetchMetadataOnce(ctx context.Context) {
	md, err := r.metadata.GetByMarketID(ctx, r.marketID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("metadata fetch failed, using placeholder", "error", err)
		}
		md = domain.MarketMetadata{
			MarketID: r.marketID,
			ImageURL: domain.DefaultImageURL,
		}
	}
	if md.ImageURL == "" {
		md.ImageURL = domain.DefaultImageURL
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.snap.Metadata = md
	if !r.snap.Loading {
		r.snap.derive(r.now())
	}
}

func (r *Reconciler) pollOnce(ctx context.Context) {
	marketSeq := r.issueMarketSeq()
	m, err := r.markets.MarketInfo(ctx, r.marketID)
	r.applyMarket(marketSeq, m, err)

	if r.wallet == "" {
		return
	}
	posSeq := r.issuePosSeq()
	pos, err := r.markets.SharesBalance(ctx, r.marketID, r.wallet)
	r.applyPosition(posSeq, pos, err)
}

func (r *Reconciler) issueMarketSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marketSeq++
	return r.marketSeq
}

func (r *Reconciler) issuePosSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posSeq++
	return r.posSeq
}

// applyMarket folds one market poll response into the snapshot. Errors keep
// the previous state: while still loading that means remaining in the
// explicit loading state and continuing to poll, never reporting an error.
func (r *Reconciler) applyMarket(seq uint64, m domain.Market, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || seq <= r.marketApplied {
		return
	}
	r.marketApplied = seq

	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("market poll failed", "error", err)
		}
		return
	}

	r.snap.Loading = false
	r.snap.Market = m
	r.snap.derive(r.now())
}

// applyPosition folds one position poll response into the snapshot. A read
// failure leaves the previous position in place.
func (r *Reconciler) applyPosition(seq uint64, pos domain.UserPosition, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || seq <= r.posApplied {
		return
	}
	r.posApplied = seq

	if err != nil {
		r.logger.Warn("position poll failed", "error", err)
		return
	}

	r.snap.Position = &pos
	if !r.snap.Loading {
		r.snap.derive(r.now())
	}
}
