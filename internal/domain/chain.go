package domain

import (
	"context"
	"math/big"
	"time"
)

// MarketReader is the read-only view of the prediction-market contract.
// Addresses cross this boundary as hex strings; the chain package owns the
// typed representation.
type MarketReader interface {
	// MarketCount returns the number of markets ever created.
	MarketCount(ctx context.Context) (uint64, error)

	// MarketInfo returns the authoritative state of one market. It returns
	// ErrNotFound for an id at or beyond MarketCount.
	MarketInfo(ctx context.Context, marketID uint64) (Market, error)

	// SharesBalance returns the wallet's share counts for a market.
	SharesBalance(ctx context.Context, marketID uint64, wallet string) (UserPosition, error)

	// ProposerOf returns the wallet address that proposed the market.
	ProposerOf(ctx context.Context, marketID uint64) (string, error)

	// CreationStakeAmount returns the collateral currently required to
	// propose a market, in token base units.
	CreationStakeAmount(ctx context.Context) (*big.Int, error)

	// Owner returns the contract owner's address.
	Owner(ctx context.Context) (string, error)
}

// TxReceipt is the subset of a transaction receipt the proposal flow needs.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	Succeeded   bool
}

// MarketDispatcher issues state-changing transactions against the contract
// and its collateral token. Each call returns once the transaction has been
// accepted by the network; confirmation is a separate WaitMined step.
type MarketDispatcher interface {
	ApproveStake(ctx context.Context, amount *big.Int) (txHash string, err error)
	ProposeMarket(ctx context.Context, question, optionA, optionB string, endTime time.Time) (txHash string, err error)
	BuyShares(ctx context.Context, marketID uint64, optionA bool, amount *big.Int) (txHash string, err error)
	ClaimWinnings(ctx context.Context, marketID uint64) (txHash string, err error)
	ClaimRefund(ctx context.Context, marketID uint64) (txHash string, err error)
	ResolveMarket(ctx context.Context, marketID uint64, outcome Outcome) (txHash string, err error)
	SetCreationStakeAmount(ctx context.Context, amount *big.Int) (txHash string, err error)

	// WaitMined blocks until the transaction is mined or ctx expires.
	WaitMined(ctx context.Context, txHash string) (TxReceipt, error)

	// MarketIDFromReceipt extracts the new market id from the MarketCreated
	// event emitted by a proposeMarket transaction.
	MarketIDFromReceipt(ctx context.Context, receipt TxReceipt) (uint64, error)

	// Sender returns the dispatcher wallet's address.
	Sender() string
}
