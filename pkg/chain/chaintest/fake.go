// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type response struct {
	out []byte
	err error
}

// Backend answers contract calls from canned responses and records sent transactions.
type Backend struct {
	mu        sync.Mutex
	responses map[string]response
	calls     map[string]int

	Sent []*ethtypes.Transaction
	// ReceiptStatus is applied to every sent transaction. Defaults to success.
	ReceiptStatus uint64
	// ReceiptLogs are attached to every receipt.
	ReceiptLogs []*ethtypes.Log

	GasPrice    *big.Int
	GasPriceErr error
	SendErr     error
}

// New returns an empty backend with a 30 gwei gas price.
func New() *Backend {
	return &Backend{
		responses:     map[string]response{},
		calls:         map[string]int{},
		ReceiptStatus: ethtypes.ReceiptStatusSuccessful,
		GasPrice:      big.NewInt(30_000_000_000),
	}
}

func key(to common.Address, selector []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(selector)
}

// On registers the outputs returned for method on contract to.
func (b *Backend) On(to common.Address, parsed *abi.ABI, method string, outputs ...any) {
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(outputs...)
	if err != nil {
		panic(fmt.Sprintf("pack %s outputs: %v", method, err))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[key(to, m.ID)] = response{out: out}
}

// OnError makes method on contract to fail.
func (b *Backend) OnError(to common.Address, parsed *abi.ABI, method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[key(to, parsed.Methods[method].ID)] = response{err: err}
}

// Calls reports how many times method on contract to was called.
func (b *Backend) Calls(to common.Address, parsed *abi.ABI, method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key(to, parsed.Methods[method].ID)]
}

func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if call.To == nil || len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}
	k := key(*call.To, call.Data[:4])
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[k]++
	resp, ok := b.responses[k]
	if !ok {
		return nil, fmt.Errorf("unexpected call %s", k)
	}
	return resp.out, resp.err
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.Sent {
		if tx.Hash() == hash {
			return &ethtypes.Receipt{Status: b.ReceiptStatus, TxHash: hash, Logs: b.ReceiptLogs}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if b.GasPriceErr != nil {
		return nil, b.GasPriceErr
	}
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: big.NewInt(1), BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.Sent)), nil
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sent = append(b.Sent, tx)
	return nil
}
