// Package domain defines the core types shared across the foresight backend:
// on-chain market state, off-chain metadata, user positions, and the
// store/cache/blob interfaces implemented by the infrastructure packages.
package domain

import "time"

// Outcome is the resolution outcome of a market, using the contract's uint8
// encoding.
type Outcome uint8

const (
	OutcomeUnresolved Outcome = 0
	OutcomeOptionA    Outcome = 1
	OutcomeOptionB    Outcome = 2
	OutcomeInvalid    Outcome = 3
)

// String returns a human-readable label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeOptionA:
		return "option_a"
	case OutcomeOptionB:
		return "option_b"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Market is the authoritative on-chain state of a prediction market. The
// contract is the source of truth; this struct is only ever populated from a
// read call, never mutated locally.
type Market struct {
	ID                 uint64    `json:"id"`
	Question           string    `json:"question"`
	OptionA            string    `json:"option_a"`
	OptionB            string    `json:"option_b"`
	EndTime            time.Time `json:"end_time"`
	Outcome            Outcome   `json:"outcome"`
	TotalOptionAShares uint64    `json:"total_option_a_shares"`
	TotalOptionBShares uint64    `json:"total_option_b_shares"`
	Resolved           bool      `json:"resolved"`
	FeesForCreator     uint64    `json:"fees_for_creator"`
}

// TotalShares returns the combined share volume of both options.
func (m Market) TotalShares() uint64 {
	return m.TotalOptionAShares + m.TotalOptionBShares
}

// IsExpired reports whether the market's trading window has closed at the
// given instant.
func (m Market) IsExpired(now time.Time) bool {
	return now.After(m.EndTime)
}

// ShareScale is the fixed-point scale of the contract's share accounting
// (6 decimals, matching the USDC collateral token).
const ShareScale = 1_000_000
