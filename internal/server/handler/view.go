package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nakamori-labs/foresight/internal/view"
)

// SnapshotProvider yields reconciled market snapshots. The view manager
// satisfies it.
type SnapshotProvider interface {
	SnapshotFor(ctx context.Context, marketID uint64, wallet string) view.Snapshot
}

// ListProvider exposes the shared market list view.
type ListProvider interface {
	List() *view.ListView
}

// ViewHandler serves reconciled per-market view state and the merged market
// list.
type ViewHandler struct {
	views  SnapshotProvider
	lists  ListProvider
	logger *slog.Logger
}

// NewViewHandler creates a ViewHandler.
func NewViewHandler(views SnapshotProvider, lists ListProvider, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{
		views:  views,
		lists:  lists,
		logger: logger,
	}
}

type listViewResponse struct {
	Markets []view.ListEntry `json:"markets"`
	Limit   int              `json:"limit"`
}

// ListMarketViews returns the merged list view, newest market first. Entries
// injected optimistically and not yet confirmed by a poll are flagged.
// GET /api/view/markets?limit=50
func (h *ViewHandler) ListMarketViews(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	entries := h.lists.List().Entries()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, listViewResponse{Markets: entries, Limit: limit})
}

// GetMarketView returns the current reconciled snapshot for one market,
// personalized for the optional wallet query parameter.
// GET /api/view/markets/{id}?wallet=0x...
func (h *ViewHandler) GetMarketView(w http.ResponseWriter, r *http.Request) {
	raw := pathParam(r, "id")
	id, err := parseMarketID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	wallet := r.URL.Query().Get("wallet")

	snap := h.views.SnapshotFor(r.Context(), id, wallet)
	writeJSON(w, http.StatusOK, snap)
}
