package domain

// UserPosition is a wallet's share balance in one market. Absence of a
// position (wallet not connected, or no shares bought) is represented by a
// nil *UserPosition, not an error.
type UserPosition struct {
	MarketID      uint64 `json:"market_id"`
	Wallet        string `json:"wallet"`
	OptionAShares uint64 `json:"option_a_shares"`
	OptionBShares uint64 `json:"option_b_shares"`
}

// WinningShares returns the share count on the resolved side, or zero for an
// unresolved or invalid outcome.
func (p UserPosition) WinningShares(outcome Outcome) uint64 {
	switch outcome {
	case OutcomeOptionA:
		return p.OptionAShares
	case OutcomeOptionB:
		return p.OptionBShares
	default:
		return 0
	}
}

// HasShares reports whether the position holds any shares on either side.
func (p UserPosition) HasShares() bool {
	return p.OptionAShares > 0 || p.OptionBShares > 0
}
