// Package chain reads contracts, sends wallet transactions and waits for receipts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/GoPolymarket/polymarket-arb/pkg/retry"
)

const (
	DefaultCallTimeout    = 15 * time.Second
	DefaultReceiptTimeout = 60 * time.Second
	receiptPollInterval   = time.Second
)

// Backend is the RPC surface used here. *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// Reader performs read-only contract calls and receipt lookups.
type Reader interface {
	ReadContract(ctx context.Context, to common.Address, parsed *abi.ABI, method string, args ...any) ([]any, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Client is the default Reader over a Backend.
type Client struct {
	backend        Backend
	policy         retry.Policy
	callTimeout    time.Duration
	receiptTimeout time.Duration
}

// NewClient wraps backend with the default read retry policy.
func NewClient(backend Backend) *Client {
	return &Client{
		backend:        backend,
		policy:         retry.DefaultPolicy(),
		callTimeout:    DefaultCallTimeout,
		receiptTimeout: DefaultReceiptTimeout,
	}
}

// WithRetryPolicy replaces the policy used for reads.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// WithReceiptTimeout bounds WaitForReceipt.
func (c *Client) WithReceiptTimeout(d time.Duration) *Client {
	if d > 0 {
		c.receiptTimeout = d
	}
	return c
}

func (c *Client) Backend() Backend { return c.backend }

// ReadContract packs method(args), calls it at the latest block and unpacks the outputs.
func (c *Client) ReadContract(ctx context.Context, to common.Address, parsed *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	label := fmt.Sprintf("read %s.%s", to.Hex(), method)
	out, err := retry.Value(ctx, c.policy, label, func(ctx context.Context) ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// WaitForReceipt polls until the transaction is mined or the receipt timeout elapses.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return retry.Value(ctx, c.policy, "suggest gas price", func(ctx context.Context) (*big.Int, error) {
		ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.backend.SuggestGasPrice(ctx)
	})
}

// Uint256 extracts a *big.Int output.
func Uint256(values []any, idx int) (*big.Int, error) {
	if idx >= len(values) {
		return nil, fmt.Errorf("missing output %d", idx)
	}
	v, ok := values[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is %T, not uint256", idx, values[idx])
	}
	return v, nil
}

// Bool extracts a bool output.
func Bool(values []any, idx int) (bool, error) {
	if idx >= len(values) {
		return false, fmt.Errorf("missing output %d", idx)
	}
	v, ok := values[idx].(bool)
	if !ok {
		return false, fmt.Errorf("output %d is %T, not bool", idx, values[idx])
	}
	return v, nil
}

// Succeeded reports whether a receipt indicates successful execution.
func Succeeded(r *ethtypes.Receipt) bool {
	return r != nil && r.Status == ethtypes.ReceiptStatusSuccessful
}
