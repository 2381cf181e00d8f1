// Package clob builds, signs and routes order-book orders through venue adapters.
package clob

import (
	"context"
	"math/big"
	"sync"

	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
)

// Venue is the capability every order-book adapter exposes.
//
// PlaceOrder never returns an error: rejections and transport failures are
// reported in OrderResult so one venue cannot abort the caller's bookkeeping.
// Placement is never retried; status and open-order reads may be.
type Venue interface {
	Name() string
	Authenticate(ctx context.Context) error
	PlaceOrder(ctx context.Context, req clobtypes.PlaceOrderRequest) clobtypes.OrderResult
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	OpenOrders(ctx context.Context) ([]clobtypes.OpenOrder, error)
	OrderStatus(ctx context.Context, orderID string) (clobtypes.OrderStatusResult, error)
	// EnsureApprovals grants the exchange spending rights. Reverts are logged, not returned.
	EnsureApprovals(ctx context.Context, reader chain.Reader, threshold *big.Int) error
	Nonce() uint64
	SetNonce(n uint64)
	// AdvanceNonce atomically increments the nonce and returns the new value.
	AdvanceNonce() uint64
}

// NonceTracker is a per-(venue, signer) order nonce. It advances exactly once
// per successful submission.
type NonceTracker struct {
	mu    sync.Mutex
	value uint64
}

// Current returns the nonce to sign the next order with.
func (n *NonceTracker) Current() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

func (n *NonceTracker) Set(v uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value = v
}

// Advance increments the nonce and returns the new value.
func (n *NonceTracker) Advance() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value++
	return n.value
}
