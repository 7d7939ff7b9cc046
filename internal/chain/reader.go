package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// Reader implements domain.MarketReader against the live contract.
type Reader struct {
	client *Client
}

// NewReader creates a Reader backed by the given client.
func NewReader(client *Client) *Reader {
	return &Reader{client: client}
}

// call packs a method call, executes it via eth_call, and returns the raw
// result bytes.
func (r *Reader) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := MarketABI().Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	result, err := r.client.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &r.client.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}
	return result, nil
}

// MarketCount returns the total number of markets ever created.
func (r *Reader) MarketCount(ctx context.Context) (uint64, error) {
	result, err := r.call(ctx, "marketCount")
	if err != nil {
		return 0, err
	}
	var count *big.Int
	if err := MarketABI().UnpackIntoInterface(&count, "marketCount", result); err != nil {
		return 0, fmt.Errorf("chain: unpack marketCount: %w", err)
	}
	return count.Uint64(), nil
}

// MarketInfo returns the authoritative state of one market. The contract
// returns a zero tuple for unknown ids, which is mapped to domain.ErrNotFound
// by checking for an empty question.
func (r *Reader) MarketInfo(ctx context.Context, marketID uint64) (domain.Market, error) {
	result, err := r.call(ctx, "getMarketInfo", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.Market{}, err
	}

	vals, err := MarketABI().Unpack("getMarketInfo", result)
	if err != nil {
		return domain.Market{}, fmt.Errorf("chain: unpack getMarketInfo: %w", err)
	}
	if len(vals) != 9 {
		return domain.Market{}, fmt.Errorf("chain: getMarketInfo returned %d values, want 9", len(vals))
	}

	question, _ := vals[0].(string)
	if question == "" {
		return domain.Market{}, domain.ErrNotFound
	}

	optionA, _ := vals[1].(string)
	optionB, _ := vals[2].(string)
	endTime, _ := vals[3].(*big.Int)
	outcome, _ := vals[4].(uint8)
	totalA, _ := vals[5].(*big.Int)
	totalB, _ := vals[6].(*big.Int)
	resolved, _ := vals[7].(bool)
	fees, _ := vals[8].(*big.Int)

	m := domain.Market{
		ID:       marketID,
		Question: question,
		OptionA:  optionA,
		OptionB:  optionB,
		Outcome:  domain.Outcome(outcome),
		Resolved: resolved,
	}
	if endTime != nil {
		m.EndTime = time.Unix(endTime.Int64(), 0).UTC()
	}
	if totalA != nil {
		m.TotalOptionAShares = totalA.Uint64()
	}
	if totalB != nil {
		m.TotalOptionBShares = totalB.Uint64()
	}
	if fees != nil {
		m.FeesForCreator = fees.Uint64()
	}
	return m, nil
}

// SharesBalance returns the wallet's share counts for a market.
func (r *Reader) SharesBalance(ctx context.Context, marketID uint64, wallet string) (domain.UserPosition, error) {
	if !common.IsHexAddress(wallet) {
		return domain.UserPosition{}, fmt.Errorf("chain: invalid wallet address %q: %w", wallet, domain.ErrValidation)
	}

	result, err := r.call(ctx, "getSharesBalance",
		new(big.Int).SetUint64(marketID), common.HexToAddress(wallet))
	if err != nil {
		return domain.UserPosition{}, err
	}

	vals, err := MarketABI().Unpack("getSharesBalance", result)
	if err != nil {
		return domain.UserPosition{}, fmt.Errorf("chain: unpack getSharesBalance: %w", err)
	}
	if len(vals) != 2 {
		return domain.UserPosition{}, fmt.Errorf("chain: getSharesBalance returned %d values, want 2", len(vals))
	}

	pos := domain.UserPosition{MarketID: marketID, Wallet: wallet}
	if a, ok := vals[0].(*big.Int); ok {
		pos.OptionAShares = a.Uint64()
	}
	if b, ok := vals[1].(*big.Int); ok {
		pos.OptionBShares = b.Uint64()
	}
	return pos, nil
}

// ProposerOf returns the wallet that proposed the market.
func (r *Reader) ProposerOf(ctx context.Context, marketID uint64) (string, error) {
	result, err := r.call(ctx, "marketProposers", new(big.Int).SetUint64(marketID))
	if err != nil {
		return "", err
	}
	var proposer common.Address
	if err := MarketABI().UnpackIntoInterface(&proposer, "marketProposers", result); err != nil {
		return "", fmt.Errorf("chain: unpack marketProposers: %w", err)
	}
	if proposer == (common.Address{}) {
		return "", domain.ErrNotFound
	}
	return proposer.Hex(), nil
}

// CreationStakeAmount returns the collateral required to propose a market.
func (r *Reader) CreationStakeAmount(ctx context.Context) (*big.Int, error) {
	result, err := r.call(ctx, "creationStakeAmount")
	if err != nil {
		return nil, err
	}
	var amount *big.Int
	if err := MarketABI().UnpackIntoInterface(&amount, "creationStakeAmount", result); err != nil {
		return nil, fmt.Errorf("chain: unpack creationStakeAmount: %w", err)
	}
	return amount, nil
}

// Owner returns the contract owner's address.
func (r *Reader) Owner(ctx context.Context) (string, error) {
	result, err := r.call(ctx, "owner")
	if err != nil {
		return "", err
	}
	var owner common.Address
	if err := MarketABI().UnpackIntoInterface(&owner, "owner", result); err != nil {
		return "", fmt.Errorf("chain: unpack owner: %w", err)
	}
	return owner.Hex(), nil
}

// Compile-time interface check.
var _ domain.MarketReader = (*Reader)(nil)
