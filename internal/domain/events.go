package domain

import "time"

// Signal bus channels for market lifecycle events.
const (
	ChannelMarketCreated  = "market_created"
	ChannelMarketResolved = "market_resolved"
)

// MarketCreatedEvent is the optimistic broadcast emitted when a proposal flow
// completes, before the next poll confirms the market on-chain. List views
// de-duplicate by MarketID against polled results; the polled entry wins.
type MarketCreatedEvent struct {
	MarketID  uint64    `json:"market_id"`
	Question  string    `json:"question"`
	OptionA   string    `json:"option_a"`
	OptionB   string    `json:"option_b"`
	EndTime   time.Time `json:"end_time"`
	Proposer  string    `json:"proposer"`
	Tag       MarketTag `json:"tag"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketResolvedEvent is broadcast when the watcher observes a market's
// resolved flag flip.
type MarketResolvedEvent struct {
	MarketID   uint64    `json:"market_id"`
	Outcome    Outcome   `json:"outcome"`
	ObservedAt time.Time `json:"observed_at"`
}
