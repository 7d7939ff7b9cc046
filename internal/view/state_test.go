package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nakamori-labs/foresight/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openMarket(end time.Time) domain.Market {
	return domain.Market{ID: 1, Question: "q", EndTime: end}
}

func resolvedMarket(outcome domain.Outcome) domain.Market {
	return domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(-time.Hour), Resolved: true, Outcome: outcome}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		market domain.Market
		pos    *domain.UserPosition
		want   PresentationState
	}{
		{
			name:   "open market",
			market: openMarket(testNow.Add(time.Hour)),
			want:   StateOpen,
		},
		{
			name:   "expired but unresolved",
			market: openMarket(testNow.Add(-10 * time.Second)),
			want:   StateAwaitingResolution,
		},
		{
			name:   "unresolved never classifies as resolved regardless of position",
			market: openMarket(testNow.Add(time.Hour)),
			pos:    &domain.UserPosition{OptionAShares: 100},
			want:   StateOpen,
		},
		{
			name:   "invalid outcome is refundable regardless of position",
			market: resolvedMarket(domain.OutcomeInvalid),
			want:   StateRefundable,
		},
		{
			name:   "invalid outcome refundable with shares",
			market: resolvedMarket(domain.OutcomeInvalid),
			pos:    &domain.UserPosition{OptionBShares: 3},
			want:   StateRefundable,
		},
		{
			name:   "winner holds winning shares",
			market: resolvedMarket(domain.OutcomeOptionA),
			pos:    &domain.UserPosition{OptionAShares: 5},
			want:   StateClaimable,
		},
		{
			name:   "loser holds only losing shares",
			market: resolvedMarket(domain.OutcomeOptionB),
			pos:    &domain.UserPosition{OptionAShares: 5},
			want:   StateSettled,
		},
		{
			name:   "no position on resolved market",
			market: resolvedMarket(domain.OutcomeOptionA),
			pos:    &domain.UserPosition{},
			want:   StateSettled,
		},
		{
			name:   "nil position degrades claimable to settled",
			market: resolvedMarket(domain.OutcomeOptionA),
			pos:    nil,
			want:   StateSettled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.market, tt.pos, testNow)
			assert.Equal(t, tt.want, got)

			// Pure function: same inputs, same output.
			assert.Equal(t, got, Classify(tt.market, tt.pos, testNow))
		})
	}
}

func TestOptionAPercent(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"both zero yields even split", 0, 0, 50},
		{"all a", 100, 0, 100},
		{"all b", 0, 100, 0},
		{"two thirds rounds up", 2, 1, 67},
		{"one third rounds down", 1, 2, 33},
		{"even", 5, 5, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OptionAPercent(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 100-tt.want, 100-got)
		})
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want string
	}{
		{"zero", 0, 0, "0"},
		{"plain", 500 * domain.ShareScale, 0, "500"},
		{"thousands", 1_500 * domain.ShareScale, 0, "1.5K"},
		{"just under a million", 999_900 * domain.ShareScale, 0, "999.9K"},
		{"millions", 2_500_000 * domain.ShareScale, 0, "2.5M"},
		{"sums both sides", 700 * domain.ShareScale, 800 * domain.ShareScale, "1.5K"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVolume(tt.a, tt.b))
		})
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		name string
		end  time.Time
		want string
	}{
		{"ended exactly now", testNow, "Ended"},
		{"ended in the past", testNow.Add(-time.Minute), "Ended"},
		{"days and hours", testNow.Add(2*24*time.Hour + 5*time.Hour + 30*time.Minute), "2d 5h"},
		{"exact days", testNow.Add(3 * 24 * time.Hour), "3d"},
		{"hours and minutes", testNow.Add(3*time.Hour + 12*time.Minute), "3h 12m"},
		{"exact hours", testNow.Add(2 * time.Hour), "2h"},
		{"minutes only", testNow.Add(9 * time.Minute), "9m"},
		{"under a minute rounds to one", testNow.Add(30 * time.Second), "1m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeRemaining(tt.end, testNow))
		})
	}
}

func TestOpenMarketScenario(t *testing.T) {
	m := domain.Market{
		ID:       9,
		Question: "will it rain",
		EndTime:  testNow.Add(time.Hour),
	}

	assert.Equal(t, StateOpen, Classify(m, nil, testNow))
	assert.Equal(t, 50, OptionAPercent(m.TotalOptionAShares, m.TotalOptionBShares))
	assert.Equal(t, "1h", FormatTimeRemaining(m.EndTime, testNow))
}
