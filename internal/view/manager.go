package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// Manager owns the live reconcilers and the shared list view. It subscribes
// to the signal bus so optimistic creation events reach the list immediately
// and resolution events trigger an out-of-band refresh of the affected
// reconciler.
type Manager struct {
	markets  domain.MarketReader
	metadata MetadataSource
	bus      domain.SignalBus
	interval time.Duration
	hold     time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	baseCtx     context.Context
	reconcilers map[string]*managedReconciler
	list        *ListView
}

type managedReconciler struct {
	rec    *Reconciler
	cancel context.CancelFunc
	refs   int
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Markets  domain.MarketReader
	Metadata MetadataSource
	Bus      domain.SignalBus
	Interval time.Duration

	// Hold is how long SnapshotFor keeps a reconciler alive after a request
	// before releasing its reference.
	Hold   time.Duration
	Logger *slog.Logger

	// BaseCtx parents reconciler lifetimes until Run installs its own
	// context, so a reconciler acquired before Run starts still stops with
	// the application.
	BaseCtx context.Context
}

// DefaultSnapshotHold keeps a request-started reconciler polling long enough
// to serve follow-up requests without a cold start.
const DefaultSnapshotHold = 2 * time.Minute

// listPageSize bounds how many of the newest markets each list poll fetches.
const listPageSize = 50

// NewManager creates a Manager with an empty list view.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultSnapshotHold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
	return &Manager{
		markets:     cfg.Markets,
		metadata:    cfg.Metadata,
		bus:         cfg.Bus,
		interval:    cfg.Interval,
		hold:        cfg.Hold,
		logger:      cfg.Logger,
		baseCtx:     cfg.BaseCtx,
		reconcilers: make(map[string]*managedReconciler),
		list:        NewListView(),
	}
}

// List returns the shared list view.
func (mg *Manager) List() *ListView {
	return mg.list
}

func reconcilerKey(marketID uint64, wallet string) string {
	return fmt.Sprintf("%d/%s", marketID, wallet)
}

// Acquire returns the reconciler for a (market, wallet) pair, starting one if
// none is running. Reconciler lifetimes are scoped to the manager, not to any
// request. Each Acquire must be paired with a Release; the reconciler stops
// when its last holder releases it.
func (mg *Manager) Acquire(marketID uint64, wallet string) *Reconciler {
	key := reconcilerKey(marketID, wallet)

	mg.mu.Lock()
	defer mg.mu.Unlock()

	if mr, ok := mg.reconcilers[key]; ok {
		mr.refs++
		return mr.rec
	}

	rec := NewReconciler(ReconcilerConfig{
		MarketID: marketID,
		Wallet:   wallet,
		Markets:  mg.markets,
		Metadata: mg.metadata,
		Interval: mg.interval,
		Logger:   mg.logger,
	})
	runCtx, cancel := context.WithCancel(mg.baseCtx)
	mg.reconcilers[key] = &managedReconciler{rec: rec, cancel: cancel, refs: 1}

	go rec.Run(runCtx)
	return rec
}

// SnapshotFor serves one request: it acquires the reconciler for the pair,
// forces a poll when no data has landed yet, and schedules the release so the
// reconciler keeps polling for a short hold window after the request.
func (mg *Manager) SnapshotFor(ctx context.Context, marketID uint64, wallet string) Snapshot {
	rec := mg.Acquire(marketID, wallet)
	time.AfterFunc(mg.hold, func() { mg.Release(marketID, wallet) })

	snap := rec.Snapshot()
	if snap.Loading {
		rec.Refresh(ctx)
		snap = rec.Snapshot()
	}
	return snap
}

// Release drops one reference to a reconciler, stopping it when no holders
// remain.
func (mg *Manager) Release(marketID uint64, wallet string) {
	key := reconcilerKey(marketID, wallet)

	mg.mu.Lock()
	defer mg.mu.Unlock()

	mr, ok := mg.reconcilers[key]
	if !ok {
		return
	}
	mr.refs--
	if mr.refs > 0 {
		return
	}
	mr.cancel()
	delete(mg.reconcilers, key)
}

// Run consumes bus events and polls the market list until ctx is cancelled,
// then tears down every reconciler.
func (mg *Manager) Run(ctx context.Context) error {
	mg.mu.Lock()
	mg.baseCtx = ctx
	mg.mu.Unlock()
	defer mg.stopAll()

	created, err := mg.bus.Subscribe(ctx, domain.ChannelMarketCreated)
	if err != nil {
		return fmt.Errorf("view: subscribe %s: %w", domain.ChannelMarketCreated, err)
	}
	resolved, err := mg.bus.Subscribe(ctx, domain.ChannelMarketResolved)
	if err != nil {
		return fmt.Errorf("view: subscribe %s: %w", domain.ChannelMarketResolved, err)
	}

	ticker := time.NewTicker(mg.interval)
	defer ticker.Stop()
	mg.pollList(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-created:
			if !ok {
				return nil
			}
			mg.handleCreated(payload)
		case payload, ok := <-resolved:
			if !ok {
				return nil
			}
			mg.handleResolved(ctx, payload)
		case <-ticker.C:
			mg.pollList(ctx)
		}
	}
}

// pollList fetches the newest page of markets and their metadata and folds it
// into the list view. A polled market supersedes any optimistic entry with the
// same id.
func (mg *Manager) pollList(ctx context.Context) {
	count, err := mg.markets.MarketCount(ctx)
	if err != nil {
		mg.logger.Warn("list poll: market count", "error", err)
		return
	}
	if count == 0 {
		return
	}

	first := uint64(0)
	if count > listPageSize {
		first = count - listPageSize
	}

	markets := make([]domain.Market, 0, count-first)
	metadata := make(map[uint64]domain.MarketMetadata, count-first)
	for id := first; id < count; id++ {
		m, err := mg.markets.MarketInfo(ctx, id)
		if err != nil {
			mg.logger.Warn("list poll: market info", "market_id", id, "error", err)
			continue
		}
		markets = append(markets, m)

		md, err := mg.metadata.GetByMarketID(ctx, id)
		if err == nil {
			metadata[id] = md
		} else if !errors.Is(err, domain.ErrNotFound) {
			mg.logger.Warn("list poll: metadata", "market_id", id, "error", err)
		}
	}
	mg.list.ApplyPoll(markets, metadata)
}

func (mg *Manager) handleCreated(payload []byte) {
	var ev domain.MarketCreatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		mg.logger.Warn("bad market_created payload", "error", err)
		return
	}
	mg.list.ApplyOptimistic(ev)
	mg.logger.Info("optimistic market injected", "market_id", ev.MarketID)
}

func (mg *Manager) handleResolved(ctx context.Context, payload []byte) {
	var ev domain.MarketResolvedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		mg.logger.Warn("bad market_resolved payload", "error", err)
		return
	}
	mg.list.Resolve(ev.MarketID, ev.Outcome)

	// Refresh any live reconcilers for this market so the action panel flips
	// without waiting for the next tick.
	mg.mu.Lock()
	var toRefresh []*Reconciler
	for _, mr := range mg.reconcilers {
		if mr.rec.marketID == ev.MarketID {
			toRefresh = append(toRefresh, mr.rec)
		}
	}
	mg.mu.Unlock()

	for _, rec := range toRefresh {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		rec.Refresh(refreshCtx)
		cancel()
	}
}

func (mg *Manager) stopAll() {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	for key, mr := range mg.reconcilers {
		mr.cancel()
		delete(mg.reconcilers, key)
	}
}
