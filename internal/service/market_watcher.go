package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// Notifier is the outbound alert surface the watcher reports events to.
type Notifier interface {
	Notify(ctx context.Context, event string, message string) error
}

// MarketWatcher polls the contract for the market count and per-market state,
// detects newly created and newly resolved markets, and publishes lifecycle
// events on the signal bus. It is the server-side counterpart of the
// optimistic client broadcast: the bus event a poll produces supersedes any
// optimistic entry for the same id.
type MarketWatcher struct {
	chain    domain.MarketReader
	bus      domain.SignalBus
	notifier Notifier
	pollDur  time.Duration
	logger   *slog.Logger

	// seen is the market count as of the last scan; ids in [seen, count)
	// are new. resolved tracks ids whose resolution has been announced.
	seen     uint64
	resolved map[uint64]bool
	primed   bool
}

// NewMarketWatcher creates a MarketWatcher. pollInterval is how often the
// contract is scanned.
func NewMarketWatcher(
	chain domain.MarketReader,
	bus domain.SignalBus,
	notifier Notifier,
	pollInterval time.Duration,
	logger *slog.Logger,
) *MarketWatcher {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &MarketWatcher{
		chain:    chain,
		bus:      bus,
		notifier: notifier,
		pollDur:  pollInterval,
		logger:   logger.With(slog.String("component", "market_watcher")),
		resolved: make(map[uint64]bool),
	}
}

// Run scans the contract until ctx is cancelled. Call in a goroutine.
func (w *MarketWatcher) Run(ctx context.Context) error {
	// Prime immediately so a restart does not wait a full interval.
	if err := w.scan(ctx); err != nil {
		w.logger.ErrorContext(ctx, "initial market scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(w.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				w.logger.ErrorContext(ctx, "market scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *MarketWatcher) scan(ctx context.Context) error {
	count, err := w.chain.MarketCount(ctx)
	if err != nil {
		return fmt.Errorf("market_watcher: market count: %w", err)
	}

	// The very first scan establishes the baseline without announcing the
	// whole history as new, but still checks resolution state.
	if !w.primed {
		w.primed = true
		w.seen = count
		for id := uint64(0); id < count; id++ {
			m, err := w.chain.MarketInfo(ctx, id)
			if err != nil {
				continue
			}
			if m.Resolved {
				w.resolved[id] = true
			}
		}
		w.logger.InfoContext(ctx, "market watcher primed", slog.Uint64("count", count))
		return nil
	}

	// Market ids are sequential from zero, so a count of N means ids 0..N-1
	// exist and anything in [seen, count) is new since the last scan.
	for id := w.seen; id < count; id++ {
		m, err := w.chain.MarketInfo(ctx, id)
		if err != nil {
			w.logger.WarnContext(ctx, "new market read failed",
				slog.Uint64("market_id", id), slog.String("error", err.Error()))
			continue
		}
		w.announceCreated(ctx, m)
	}
	w.seen = count

	for id := uint64(0); id < count; id++ {
		if w.resolved[id] {
			continue
		}
		m, err := w.chain.MarketInfo(ctx, id)
		if err != nil {
			continue
		}
		if m.Resolved {
			w.resolved[id] = true
			w.announceResolved(ctx, m)
		}
	}

	return nil
}

func (w *MarketWatcher) announceCreated(ctx context.Context, m domain.Market) {
	proposer, err := w.chain.ProposerOf(ctx, m.ID)
	if err != nil {
		w.logger.WarnContext(ctx, "proposer read failed",
			slog.Uint64("market_id", m.ID), slog.String("error", err.Error()))
	}

	ev := domain.MarketCreatedEvent{
		MarketID:  m.ID,
		Question:  m.Question,
		OptionA:   m.OptionA,
		OptionB:   m.OptionB,
		EndTime:   m.EndTime,
		Proposer:  proposer,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		w.logger.ErrorContext(ctx, "marshal created event", slog.String("error", err.Error()))
		return
	}

	if err := w.bus.Publish(ctx, domain.ChannelMarketCreated, payload); err != nil {
		w.logger.WarnContext(ctx, "publish created event", slog.String("error", err.Error()))
	}
	if err := w.bus.StreamAppend(ctx, domain.ChannelMarketCreated, payload); err != nil {
		w.logger.WarnContext(ctx, "append created event", slog.String("error", err.Error()))
	}

	w.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", m.ID), slog.String("question", m.Question))

	if w.notifier != nil {
		msg := fmt.Sprintf("New market #%d: %s (ends %s)", m.ID, m.Question, m.EndTime.Format(time.RFC3339))
		if err := w.notifier.Notify(ctx, "market_created", msg); err != nil {
			w.logger.WarnContext(ctx, "notify created failed", slog.String("error", err.Error()))
		}
	}
}

func (w *MarketWatcher) announceResolved(ctx context.Context, m domain.Market) {
	ev := domain.MarketResolvedEvent{
		MarketID:   m.ID,
		Outcome:    m.Outcome,
		ObservedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		w.logger.ErrorContext(ctx, "marshal resolved event", slog.String("error", err.Error()))
		return
	}

	if err := w.bus.Publish(ctx, domain.ChannelMarketResolved, payload); err != nil {
		w.logger.WarnContext(ctx, "publish resolved event", slog.String("error", err.Error()))
	}
	if err := w.bus.StreamAppend(ctx, domain.ChannelMarketResolved, payload); err != nil {
		w.logger.WarnContext(ctx, "append resolved event", slog.String("error", err.Error()))
	}

	w.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("market_id", m.ID), slog.String("outcome", m.Outcome.String()))

	if w.notifier != nil {
		msg := fmt.Sprintf("Market #%d resolved: %s (%s)", m.ID, m.Question, m.Outcome)
		if err := w.notifier.Notify(ctx, "market_resolved", msg); err != nil {
			w.logger.WarnContext(ctx, "notify resolved failed", slog.String("error", err.Error()))
		}
	}
}
