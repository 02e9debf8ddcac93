// Package chain reads transactions and ENS records from an Ethereum node.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Transaction is the part of a mined transaction needed to price its gas.
type Transaction struct {
	Hash     common.Hash
	From     common.Address
	Gas      uint64
	GasPrice *big.Int
}

// Cost returns gas * gasPrice in wei.
func (t Transaction) Cost() *big.Int {
	return GasCost(t.Gas, t.GasPrice)
}

// GasCost multiplies a gas amount by a price in wei.
func GasCost(gas uint64, price *big.Int) *big.Int {
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gas), price)
}

type Client struct {
	rpc      *rpc.Client
	eth      *ethclient.Client
	registry common.Address
}

func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, errors.New("rpc url is required")
	}
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(rc), nil
}

func NewClient(rc *rpc.Client) *Client {
	return &Client{
		rpc:      rc,
		eth:      ethclient.NewClient(rc),
		registry: ENSRegistry,
	}
}

func (c *Client) Close() {
	c.rpc.Close()
}

type rpcTransaction struct {
	Hash     common.Hash    `json:"hash"`
	From     common.Address `json:"from"`
	Gas      hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice"`
}

// Transaction fetches a transaction by hash. The sender is taken from the
// node's response instead of being recovered from the signature.
func (c *Client) Transaction(ctx context.Context, hash common.Hash) (Transaction, error) {
	var raw *rpcTransaction
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return Transaction{}, fmt.Errorf("eth_getTransactionByHash %s: %w", hash.Hex(), err)
	}
	if raw == nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", hash.Hex(), ethereum.NotFound)
	}
	if raw.GasPrice == nil {
		return Transaction{}, fmt.Errorf("transaction %s has no gasPrice", hash.Hex())
	}
	return Transaction{
		Hash:     hash,
		From:     raw.From,
		Gas:      uint64(raw.Gas),
		GasPrice: raw.GasPrice.ToInt(),
	}, nil
}

// ReceiptCost returns gasUsed * effectiveGasPrice for a mined transaction.
func (c *Client) ReceiptCost(ctx context.Context, hash common.Hash) (*big.Int, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}
	return GasCost(receipt.GasUsed, receipt.EffectiveGasPrice), nil
}
