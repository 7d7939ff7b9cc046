// Package view derives presentation state for markets. A Reconciler merges
// three independently updating sources (on-chain market state, off-chain
// metadata, per-wallet positions) plus an optimistic local event stream into
// one snapshot per market, and classifies it into exactly one of five
// mutually exclusive states that decide which action a caller should offer.
package view

import (
	"fmt"
	"math"
	"time"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// PresentationState selects which action panel a market should show.
type PresentationState string

const (
	// StateAwaitingResolution: past its end time but not yet resolved. No
	// user action is possible.
	StateAwaitingResolution PresentationState = "awaiting_resolution"

	// StateOpen: trading is live; offer the buy-shares action.
	StateOpen PresentationState = "open"

	// StateRefundable: resolved as invalid; any holder of either option's
	// shares can claim a refund.
	StateRefundable PresentationState = "refundable"

	// StateClaimable: resolved with a winner and the wallet holds winning
	// shares; offer the claim-winnings action.
	StateClaimable PresentationState = "claimable"

	// StateSettled: resolved with a winner but nothing to claim, either
	// because the wallet lost, holds no shares, or is not connected. Shows
	// the resolution summary only.
	StateSettled PresentationState = "settled"
)

// Classify maps a market and an optional position to a presentation state.
// pos is nil when no wallet is connected; in that case the position-dependent
// states degrade to StateSettled so rendering never blocks on a wallet.
// Classify is a pure function of its inputs.
func Classify(m domain.Market, pos *domain.UserPosition, now time.Time) PresentationState {
	if !m.Resolved {
		if m.IsExpired(now) {
			return StateAwaitingResolution
		}
		return StateOpen
	}

	if m.Outcome == domain.OutcomeInvalid {
		return StateRefundable
	}

	if pos != nil && pos.WinningShares(m.Outcome) > 0 {
		return StateClaimable
	}
	return StateSettled
}

// OptionAPercent returns the rounded percentage of total shares held on
// option A, or 50 when both totals are zero. The complement is used for
// option B; after independent rounding the two may not sum to exactly 100,
// which is accepted as a display artifact.
func OptionAPercent(optionA, optionB uint64) int {
	total := optionA + optionB
	if total == 0 {
		return 50
	}
	return int(math.Round(float64(optionA) / float64(total) * 100))
}

// FormatVolume renders total share volume in display units (the on-chain
// fixed-point scale is 10^6). Values below one thousand print plainly, below
// one million with a one-decimal K suffix, and beyond with a one-decimal M
// suffix.
func FormatVolume(optionA, optionB uint64) string {
	units := float64(optionA+optionB) / float64(domain.ShareScale)
	switch {
	case units >= 1_000_000:
		return fmt.Sprintf("%.1fM", units/1_000_000)
	case units >= 1_000:
		return fmt.Sprintf("%.1fK", units/1_000)
	default:
		return fmt.Sprintf("%.0f", units)
	}
}

// FormatTimeRemaining renders the time until endTime using at most the two
// coarsest non-zero units in the order days, hours, minutes ("2d 5h",
// "3h 12m", "9m"). Past end times render as "Ended".
func FormatTimeRemaining(endTime, now time.Time) string {
	diff := endTime.Sub(now)
	if diff <= 0 {
		return "Ended"
	}

	days := int(diff.Hours()) / 24
	hours := int(diff.Hours()) % 24
	minutes := int(diff.Minutes()) % 60

	switch {
	case days > 0:
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	case hours > 0:
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	default:
		if minutes == 0 {
			minutes = 1
		}
		return fmt.Sprintf("%dm", minutes)
	}
}

// Snapshot is the reconciled view of one market at a point in time. It is
// derived state: recomputed from scratch on every source update, never
// persisted, safe to discard and rebuild.
type Snapshot struct {
	// Loading is true until the market source has answered at least once.
	// The zero-value Market fields are meaningless while Loading is set.
	Loading bool `json:"loading"`

	Market   domain.Market         `json:"market"`
	Metadata domain.MarketMetadata `json:"metadata"`
	Position *domain.UserPosition  `json:"position,omitempty"`

	State          PresentationState `json:"state"`
	OptionAPercent int               `json:"option_a_percent"`
	OptionBPercent int               `json:"option_b_percent"`
	Volume         string            `json:"volume"`
	TimeRemaining  string            `json:"time_remaining"`
	IsExpired      bool              `json:"is_expired"`
	IsResolved     bool              `json:"is_resolved"`

	UpdatedAt time.Time `json:"updated_at"`
}

// derive recomputes every derived field of the snapshot from its sources.
func (s *Snapshot) derive(now time.Time) {
	s.State = Classify(s.Market, s.Position, now)
	s.OptionAPercent = OptionAPercent(s.Market.TotalOptionAShares, s.Market.TotalOptionBShares)
	s.OptionBPercent = 100 - s.OptionAPercent
	s.Volume = FormatVolume(s.Market.TotalOptionAShares, s.Market.TotalOptionBShares)
	s.TimeRemaining = FormatTimeRemaining(s.Market.EndTime, now)
	s.IsExpired = s.Market.IsExpired(now)
	s.IsResolved = s.Market.Resolved
	s.UpdatedAt = now
}
