package view

import (
	"sort"
	"sync"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// ListEntry is one market in a list view, paired with whatever metadata is
// known for it. Optimistic entries come from a MarketCreatedEvent and have
// not yet been confirmed by a poll.
type ListEntry struct {
	Market     domain.Market         `json:"market"`
	Metadata   domain.MarketMetadata `json:"metadata"`
	Optimistic bool                  `json:"optimistic"`
}

// ListView merges polled market pages with optimistic creation events, keyed
// by market id. When a polled result carries an id that an optimistic entry
// already holds, the optimistic entry is discarded in favor of the polled
// one.
type ListView struct {
	mu      sync.Mutex
	entries map[uint64]ListEntry
}

// NewListView returns an empty ListView.
func NewListView() *ListView {
	return &ListView{entries: make(map[uint64]ListEntry)}
}

// ApplyPoll folds a page of polled markets into the view. Polled entries
// always win over optimistic ones with the same id.
func (lv *ListView) ApplyPoll(markets []domain.Market, metadata map[uint64]domain.MarketMetadata) {
	lv.mu.Lock()
	defer lv.mu.Unlock()

	for _, m := range markets {
		entry := ListEntry{Market: m}
		if md, ok := metadata[m.ID]; ok {
			entry.Metadata = md
		} else if prev, ok := lv.entries[m.ID]; ok {
			// Keep previously known metadata when the poll carries none.
			entry.Metadata = prev.Metadata
		}
		if entry.Metadata.ImageURL == "" {
			entry.Metadata.ImageURL = domain.DefaultImageURL
		}
		lv.entries[m.ID] = entry
	}
}

// ApplyOptimistic injects a freshly created market ahead of the next poll.
// If the id is already present (the poll got there first), the event is
// dropped.
func (lv *ListView) ApplyOptimistic(ev domain.MarketCreatedEvent) {
	lv.mu.Lock()
	defer lv.mu.Unlock()

	if _, ok := lv.entries[ev.MarketID]; ok {
		return
	}

	imageURL := ev.ImageURL
	if imageURL == "" {
		imageURL = domain.DefaultImageURL
	}
	lv.entries[ev.MarketID] = ListEntry{
		Market: domain.Market{
			ID:       ev.MarketID,
			Question: ev.Question,
			OptionA:  ev.OptionA,
			OptionB:  ev.OptionB,
			EndTime:  ev.EndTime,
		},
		Metadata: domain.MarketMetadata{
			MarketID:        ev.MarketID,
			ProposerAddress: ev.Proposer,
			Tag:             ev.Tag,
			ImageURL:        imageURL,
			CreatedAt:       ev.CreatedAt,
		},
		Optimistic: true,
	}
}

// Resolve marks a market resolved in place, if present.
func (lv *ListView) Resolve(marketID uint64, outcome domain.Outcome) {
	lv.mu.Lock()
	defer lv.mu.Unlock()

	entry, ok := lv.entries[marketID]
	if !ok {
		return
	}
	entry.Market.Resolved = true
	entry.Market.Outcome = outcome
	lv.entries[marketID] = entry
}

// Entries returns the current merged list, newest market first. Market ids
// are assigned sequentially on-chain, so descending id order is creation
// order.
func (lv *ListView) Entries() []ListEntry {
	lv.mu.Lock()
	defer lv.mu.Unlock()

	out := make([]ListEntry, 0, len(lv.entries))
	for _, e := range lv.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Market.ID > out[j].Market.ID
	})
	return out
}

// Len returns the number of entries currently in the view.
func (lv *ListView) Len() int {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return len(lv.entries)
}
