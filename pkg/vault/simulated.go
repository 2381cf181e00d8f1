package vault

import (
	"context"
	"math/big"
	"sync"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// Simulated is the dry-run vault. Writes are logged and recorded in memory;
// the balance comes from the wrapped vault when there is one.
type Simulated struct {
	inner   Client
	balance types.USDC

	mu        sync.Mutex
	nextID    int64
	positions []settlement.Position
}

var _ Client = (*Simulated)(nil)

// NewSimulated wraps inner, which may be nil. Without inner, balance is reported as-is.
func NewSimulated(inner Client, balance types.USDC) *Simulated {
	return &Simulated{inner: inner, balance: balance}
}

// Restore loads previously recorded positions so new ids continue after the
// highest one instead of colliding with it.
func (s *Simulated) Restore(positions []settlement.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range positions {
		if p.ID.Int == nil {
			continue
		}
		s.positions = append(s.positions, p)
		if id := p.ID.Big(); id.IsInt64() && id.Int64() >= s.nextID {
			s.nextID = id.Int64() + 1
		}
	}
}

func (s *Simulated) OpenPosition(_ context.Context, p OpenParams) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := big.NewInt(s.nextID)
	s.nextID++
	s.positions = append(s.positions, settlement.Position{
		ID:        types.NewU256(id),
		AdapterA:  p.AdapterA,
		AdapterB:  p.AdapterB,
		MarketIDA: p.MarketIDA,
		MarketIDB: p.MarketIDB,
		BuyYesOnA: p.BuyYesOnA,
		SharesA:   types.NewU256(p.MinSharesA),
		SharesB:   types.NewU256(p.MinSharesB),
		CostA:     p.AmountA,
		CostB:     p.AmountB,
	})
	logger.Info("[dry-run] vault openPosition id=%s amountA=%s amountB=%s minShares=%s/%s",
		id, p.AmountA, p.AmountB, orZero(p.MinSharesA), orZero(p.MinSharesB))
	return new(big.Int).Set(id), nil
}

func (s *Simulated) ClosePosition(_ context.Context, id *big.Int, minReturn *big.Int) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.positions {
		if s.positions[i].ID.Big().Cmp(id) == 0 {
			s.positions[i].Closed = true
		}
	}
	logger.Info("[dry-run] vault closePosition id=%s minReturn=%s", id, orZero(minReturn))
	return new(big.Int).Set(orZero(minReturn)), nil
}

func (s *Simulated) VaultBalance(ctx context.Context) (types.USDC, error) {
	if s.inner != nil {
		return s.inner.VaultBalance(ctx)
	}
	return s.balance, nil
}

// AllPositions returns only the simulated positions.
func (s *Simulated) AllPositions(context.Context) ([]settlement.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]settlement.Position(nil), s.positions...), nil
}
