package clob

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
)

const dryRunPrefix = "dry-run-"

// Simulated is the dry-run variant of a Venue. It synthesizes fills without
// any network call but advances the wrapped venue's nonce exactly as a real
// submission would.
type Simulated struct {
	inner Venue
	name  string

	mu     sync.Mutex
	orders map[string]clobtypes.PlaceOrderRequest
}

// NewSimulated wraps inner. inner supplies the name and nonce storage.
func NewSimulated(inner Venue) *Simulated {
	return &Simulated{inner: inner, name: inner.Name(), orders: map[string]clobtypes.PlaceOrderRequest{}}
}

func (s *Simulated) Name() string { return s.name }

func (s *Simulated) Authenticate(context.Context) error { return nil }

func (s *Simulated) PlaceOrder(_ context.Context, req clobtypes.PlaceOrderRequest) clobtypes.OrderResult {
	if err := req.Validate(); err != nil {
		return clobtypes.Failed("%v", err)
	}
	id := dryRunPrefix + uuid.NewString()
	s.mu.Lock()
	s.orders[id] = req
	s.mu.Unlock()
	s.inner.AdvanceNonce()
	logger.Info("[dry-run] %s %s %s token=%s price=%s size=%s", s.name, req.StrategyOrDefault(), req.Side, req.TokenID, req.Price, req.Size)
	return clobtypes.OrderResult{
		Success: true,
		OrderID: id,
		Status:  clobtypes.PlacementDryRun,
		Filled:  req.Size,
	}
}

func (s *Simulated) CancelOrder(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
	return true, nil
}

func (s *Simulated) OpenOrders(context.Context) ([]clobtypes.OpenOrder, error) {
	return nil, nil
}

func (s *Simulated) OrderStatus(_ context.Context, orderID string) (clobtypes.OrderStatusResult, error) {
	s.mu.Lock()
	req, ok := s.orders[orderID]
	s.mu.Unlock()
	if !ok {
		status := clobtypes.StatusUnknown
		if strings.HasPrefix(orderID, dryRunPrefix) {
			status = clobtypes.StatusCancelled
		}
		return clobtypes.OrderStatusResult{OrderID: orderID, Status: status}, nil
	}
	return clobtypes.OrderStatusResult{OrderID: orderID, Status: clobtypes.StatusFilled, Filled: req.Size}, nil
}

func (s *Simulated) EnsureApprovals(context.Context, chain.Reader, *big.Int) error {
	logger.Info("[dry-run] %s: skipping approvals", s.name)
	return nil
}

func (s *Simulated) Nonce() uint64 { return s.inner.Nonce() }

func (s *Simulated) SetNonce(n uint64) { s.inner.SetNonce(n) }

func (s *Simulated) AdvanceNonce() uint64 { return s.inner.AdvanceNonce() }
