package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketABIParses(t *testing.T) {
	contractABI := MarketABI()

	for _, method := range []string{
		"marketCount", "getMarketInfo", "getSharesBalance", "marketProposers",
		"creationStakeAmount", "owner", "proposeMarket", "buyShares",
		"claimWinnings", "claimRefund", "resolveMarket", "setCreationStakeAmount",
	} {
		_, ok := contractABI.Methods[method]
		assert.True(t, ok, "missing method %s", method)
	}
}

func TestMarketCreatedTopicMatchesABI(t *testing.T) {
	event, ok := MarketABI().Events["MarketCreated"]
	require.True(t, ok)
	assert.Equal(t, event.ID, marketCreatedTopic)
}

func TestPackGetMarketInfo(t *testing.T) {
	data, err := MarketABI().Pack("getMarketInfo", big.NewInt(7))
	require.NoError(t, err)
	// 4-byte selector plus one uint256 argument.
	assert.Len(t, data, 36)
}

func TestERC20ABIParses(t *testing.T) {
	contractABI := ERC20ABI()
	for _, method := range []string{"approve", "allowance", "balanceOf"} {
		_, ok := contractABI.Methods[method]
		assert.True(t, ok, "missing method %s", method)
	}
}
