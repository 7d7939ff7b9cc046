package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nakamori-labs/foresight/internal/proposal"
	"github.com/nakamori-labs/foresight/internal/server"
	"github.com/nakamori-labs/foresight/internal/server/handler"
	"github.com/nakamori-labs/foresight/internal/server/ws"
	"github.com/nakamori-labs/foresight/internal/service"
	"github.com/nakamori-labs/foresight/internal/view"
)

// shutdownGrace is how long in-flight HTTP requests get to finish after the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServerMode runs the REST API, the proposal flow, the view manager, and the
// WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startViewManager(ctx, g, deps, true)

	return g.Wait()
}

// WatchMode runs the market watcher and the view manager without the HTTP
// surface. It is the deployment shape for a headless event announcer.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startWatcher(ctx, g, deps)
	a.startViewManager(ctx, g, deps, false)

	return g.Wait()
}

// FullMode runs everything: watcher, view manager, REST API, and hub.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startWatcher(ctx, g, deps)
	a.startViewManager(ctx, g, deps, true)

	return g.Wait()
}

// startWatcher adds the contract-polling market watcher to the errgroup.
func (a *App) startWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	watcher := service.NewMarketWatcher(
		deps.MarketReader,
		deps.SignalBus,
		deps.Notifier,
		a.cfg.Watcher.PollInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
}

// startViewManager builds the metadata service and the view manager, and,
// when withHTTP is set, the full HTTP + WebSocket surface on top of them.
func (a *App) startViewManager(ctx context.Context, g *errgroup.Group, deps *Dependencies, withHTTP bool) {
	metadataSvc := service.NewMetadataService(
		deps.MetadataStore,
		deps.MetadataCache,
		deps.MarketReader,
		deps.SignalBus,
		a.logger,
	)

	manager := view.NewManager(view.ManagerConfig{
		Markets:  deps.MarketReader,
		Metadata: metadataSvc,
		Bus:      deps.SignalBus,
		Interval: a.cfg.View.PollInterval.Duration,
		Hold:     a.cfg.View.SnapshotHold.Duration,
		Logger:   a.logger,
		BaseCtx:  ctx,
	})
	g.Go(func() error {
		return manager.Run(ctx)
	})

	if !withHTTP {
		return
	}

	flow := proposal.NewFlow(proposal.FlowConfig{
		Dispatcher: deps.MarketDispatcher,
		Reader:     deps.MarketReader,
		Images:     deps.Images,
		Store:      deps.MetadataStore,
		Bus:        deps.SignalBus,
		Notifier:   deps.Notifier,
		Logger:     a.logger,
	})

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:           a.cfg.Server.Port,
			CORSOrigins:    a.cfg.Server.CORSOrigins,
			APIKey:         a.cfg.Server.APIKey,
			ProposalLimit:  a.cfg.Server.ProposalRateLimit,
			ProposalWindow: a.cfg.Server.ProposalRateWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(),
			Metadata: handler.NewMetadataHandler(metadataSvc, a.logger),
			View:     handler.NewViewHandler(manager, manager, a.logger),
			Proposal: handler.NewProposalHandler(flow, a.logger),
			Admin:    handler.NewAdminHandler(deps.MarketDispatcher, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
