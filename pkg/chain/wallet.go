package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
)

// Writer submits state-changing transactions from one account.
type Writer interface {
	From() common.Address
	Transact(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// Wallet signs EIP-1559 transactions with a TxSigner and broadcasts them.
type Wallet struct {
	backend Backend
	signer  auth.TxSigner
	// GasMarginPct is added on top of the node's gas estimate.
	GasMarginPct uint64

	mu sync.Mutex
}

// NewWallet returns a Wallet. A nil signer yields ErrNoSigningAccount on use.
func NewWallet(backend Backend, signer auth.TxSigner) *Wallet {
	return &Wallet{backend: backend, signer: signer, GasMarginPct: 20}
}

func (w *Wallet) From() common.Address {
	if w.signer == nil {
		return common.Address{}
	}
	return w.signer.Address()
}

// Transact sends data to the contract and returns the transaction hash without waiting.
func (w *Wallet) Transact(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if w.signer == nil {
		return common.Hash{}, sdkerrors.ErrNoSigningAccount
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, DefaultCallTimeout)
	defer cancel()

	from := w.signer.Address()
	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * w.GasMarginPct / 100

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   w.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := w.signer.SignTx(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash(), nil
}
