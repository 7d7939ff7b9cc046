package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// marketABIJSON is the subset of the prediction-market contract ABI this
// backend calls.
const marketABIJSON = `[
  {"type":"function","name":"marketCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMarketInfo","stateMutability":"view","inputs":[{"name":"_marketId","type":"uint256"}],"outputs":[{"name":"question","type":"string"},{"name":"optionA","type":"string"},{"name":"optionB","type":"string"},{"name":"endTime","type":"uint256"},{"name":"outcome","type":"uint8"},{"name":"totalOptionAShares","type":"uint256"},{"name":"totalOptionBShares","type":"uint256"},{"name":"resolved","type":"bool"},{"name":"feesForCreator","type":"uint256"}]},
  {"type":"function","name":"getSharesBalance","stateMutability":"view","inputs":[{"name":"_marketId","type":"uint256"},{"name":"_user","type":"address"}],"outputs":[{"name":"optionAShares","type":"uint256"},{"name":"optionBShares","type":"uint256"}]},
  {"type":"function","name":"marketProposers","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"creationStakeAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"proposeMarket","stateMutability":"nonpayable","inputs":[{"name":"_question","type":"string"},{"name":"_optionA","type":"string"},{"name":"_optionB","type":"string"},{"name":"_resolutionTimestamp","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"buyShares","stateMutability":"nonpayable","inputs":[{"name":"_marketId","type":"uint256"},{"name":"_isOptionA","type":"bool"},{"name":"_amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimWinnings","stateMutability":"nonpayable","inputs":[{"name":"_marketId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimRefund","stateMutability":"nonpayable","inputs":[{"name":"_marketId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"resolveMarket","stateMutability":"nonpayable","inputs":[{"name":"_marketId","type":"uint256"},{"name":"_outcome","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"setCreationStakeAmount","stateMutability":"nonpayable","inputs":[{"name":"_newAmount","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"MarketCreated","inputs":[{"name":"marketId","type":"uint256","indexed":true},{"name":"proposer","type":"address","indexed":true},{"name":"question","type":"string","indexed":false},{"name":"endTime","type":"uint256","indexed":false}],"anonymous":false}
]`

// erc20ABIJSON covers the collateral-token calls the dispatcher needs.
const erc20ABIJSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	abiOnce   sync.Once
	marketABI abi.ABI
	erc20ABI  abi.ABI

	// marketCreatedTopic is keccak256("MarketCreated(uint256,address,string,uint256)").
	marketCreatedTopic = crypto.Keccak256Hash(
		[]byte("MarketCreated(uint256,address,string,uint256)"),
	)
)

func parseABIs() {
	abiOnce.Do(func() {
		var err error
		marketABI, err = abi.JSON(strings.NewReader(marketABIJSON))
		if err != nil {
			panic("chain: parse market abi: " + err.Error())
		}
		erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
		if err != nil {
			panic("chain: parse erc20 abi: " + err.Error())
		}
	})
}

// MarketABI returns the parsed prediction-market contract ABI.
func MarketABI() abi.ABI {
	parseABIs()
	return marketABI
}

// ERC20ABI returns the parsed collateral-token ABI.
func ERC20ABI() abi.ABI {
	parseABIs()
	return erc20ABI
}
