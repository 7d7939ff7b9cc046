// Package chain implements the read and write surface of the external
// prediction-market contract using go-ethereum. Reads are ABI-packed eth_call
// requests; writes are locally signed legacy transactions.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ClientConfig holds the RPC endpoint and contract addresses.
type ClientConfig struct {
	// RPCURL is the JSON-RPC endpoint of the target chain.
	RPCURL string

	// ContractAddress is the prediction-market contract.
	ContractAddress string

	// TokenAddress is the ERC-20 collateral token used for stakes and share
	// purchases.
	TokenAddress string

	// ChainID is used for EIP-155 transaction signing.
	ChainID int64
}

// Client wraps an ethclient connection together with the contract addresses.
// Reader and Dispatcher are built on top of it.
type Client struct {
	eth      *ethclient.Client
	contract common.Address
	token    common.Address
	chainID  int64
}

// NewClient dials the RPC endpoint and returns a connected Client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: rpc url is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("chain: invalid token address %q", cfg.TokenAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	return &Client{
		eth:      eth,
		contract: common.HexToAddress(cfg.ContractAddress),
		token:    common.HexToAddress(cfg.TokenAddress),
		chainID:  cfg.ChainID,
	}, nil
}

// Eth returns the underlying ethclient for this package's reader and
// dispatcher types.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Close shuts down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
