package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nakamori-labs/foresight/internal/domain"
)

const receiptPollInterval = 2 * time.Second

// Dispatcher signs and sends contract transactions with the service wallet.
// A mutex serializes nonce assignment so concurrent callers cannot race on
// the same pending nonce.
type Dispatcher struct {
	client  *Client
	priv    *ecdsa.PrivateKey
	address common.Address

	mu sync.Mutex
}

// NewDispatcher wraps the client with a signing key. privateKeyHex is the
// service wallet's key without the 0x prefix.
func NewDispatcher(client *Client, privateKeyHex string) (*Dispatcher, error) {
	priv, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}
	return &Dispatcher{
		client:  client,
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Sender returns the service wallet's address.
func (d *Dispatcher) Sender() string {
	return d.address.Hex()
}

// send packs, signs, and broadcasts one transaction to the target address.
func (d *Dispatcher) send(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) (string, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("chain: pack %s: %w", method, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nonce, err := d.client.eth.PendingNonceAt(ctx, d.address)
	if err != nil {
		return "", fmt.Errorf("chain: nonce: %w", err)
	}
	gasPrice, err := d.client.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: gas price: %w", err)
	}
	gasLimit, err := d.client.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: d.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("chain: estimate gas for %s: %w", method, err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(d.client.chainID)), d.priv)
	if err != nil {
		return "", fmt.Errorf("chain: sign %s: %w", method, err)
	}
	if err := d.client.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send %s: %w", method, err)
	}
	return signed.Hash().Hex(), nil
}

// ApproveStake grants the market contract an allowance on the collateral
// token.
func (d *Dispatcher) ApproveStake(ctx context.Context, amount *big.Int) (string, error) {
	return d.send(ctx, d.client.token, ERC20ABI(), "approve", d.client.contract, amount)
}

// ProposeMarket submits a new market proposal.
func (d *Dispatcher) ProposeMarket(ctx context.Context, question, optionA, optionB string, endTime time.Time) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "proposeMarket",
		question, optionA, optionB, big.NewInt(endTime.Unix()))
}

// BuyShares buys shares of one option in a market.
func (d *Dispatcher) BuyShares(ctx context.Context, marketID uint64, optionA bool, amount *big.Int) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "buyShares",
		new(big.Int).SetUint64(marketID), optionA, amount)
}

// ClaimWinnings claims the wallet's payout on a resolved market.
func (d *Dispatcher) ClaimWinnings(ctx context.Context, marketID uint64) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "claimWinnings",
		new(big.Int).SetUint64(marketID))
}

// ClaimRefund refunds the wallet's stake on an invalidated market.
func (d *Dispatcher) ClaimRefund(ctx context.Context, marketID uint64) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "claimRefund",
		new(big.Int).SetUint64(marketID))
}

// ResolveMarket records an outcome. Only the contract owner may call this.
func (d *Dispatcher) ResolveMarket(ctx context.Context, marketID uint64, outcome domain.Outcome) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "resolveMarket",
		new(big.Int).SetUint64(marketID), uint8(outcome))
}

// SetCreationStakeAmount changes the required proposal stake. Owner only.
func (d *Dispatcher) SetCreationStakeAmount(ctx context.Context, amount *big.Int) (string, error) {
	return d.send(ctx, d.client.contract, MarketABI(), "setCreationStakeAmount", amount)
}

// WaitMined polls for the transaction receipt until it lands or ctx expires.
func (d *Dispatcher) WaitMined(ctx context.Context, txHash string) (domain.TxReceipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.client.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return domain.TxReceipt{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return domain.TxReceipt{}, fmt.Errorf("chain: receipt %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return domain.TxReceipt{}, fmt.Errorf("chain: wait mined %s: %w", txHash, domain.ErrContextDone)
		case <-ticker.C:
		}
	}
}

// MarketIDFromReceipt scans the receipt logs for the MarketCreated event and
// returns the indexed market id.
func (d *Dispatcher) MarketIDFromReceipt(ctx context.Context, receipt domain.TxReceipt) (uint64, error) {
	full, err := d.client.eth.TransactionReceipt(ctx, common.HexToHash(receipt.TxHash))
	if err != nil {
		return 0, fmt.Errorf("chain: receipt %s: %w", receipt.TxHash, err)
	}
	for _, lg := range full.Logs {
		if lg.Address != d.client.contract {
			continue
		}
		if len(lg.Topics) < 2 || lg.Topics[0] != marketCreatedTopic {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(), nil
	}
	return 0, fmt.Errorf("chain: no MarketCreated event in receipt %s: %w", receipt.TxHash, domain.ErrNotFound)
}

// Compile-time interface check.
var _ domain.MarketDispatcher = (*Dispatcher)(nil)
