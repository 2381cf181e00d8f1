// Package settlement tracks open two-leg positions and closes them once both
// underlying markets have resolved.
package settlement

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// Position is one arbitrage pair. Only Closed ever changes after it is recorded.
type Position struct {
	ID        types.U256     `json:"id"`
	AdapterA  common.Address `json:"adapterA"`
	AdapterB  common.Address `json:"adapterB"`
	MarketIDA common.Hash    `json:"marketIdA"`
	MarketIDB common.Hash    `json:"marketIdB"`
	BuyYesOnA bool           `json:"buyYesOnA"`
	SharesA   types.U256     `json:"sharesA"`
	SharesB   types.U256     `json:"sharesB"`
	CostA     types.USDC     `json:"costA"`
	CostB     types.USDC     `json:"costB"`
	OpenedAt  time.Time      `json:"openedAt"`
	Closed    bool           `json:"closed"`
}

// Key identifies the position in the book.
func (p Position) Key() string {
	if p.ID.Int == nil {
		return ""
	}
	return p.ID.String()
}

// ResolutionChecker reports whether the market behind one leg has resolved.
type ResolutionChecker interface {
	IsResolved(ctx context.Context, adapter common.Address, marketID common.Hash) (bool, error)
}

// Closer merges or redeems a position and returns the proceeds.
type Closer interface {
	ClosePosition(ctx context.Context, id *big.Int, minReturn *big.Int) (*big.Int, error)
}

// Lister returns every position known to the execution venue.
type Lister interface {
	AllPositions(ctx context.Context) ([]Position, error)
}

// CloseHook observes successful closes.
type CloseHook func(p Position, proceeds *big.Int)

// Option configures a Tracker.
type Option func(*Tracker)

// WithMinReturnBps sets the close slippage floor as a share of the smaller leg.
func WithMinReturnBps(bps int64) Option {
	return func(t *Tracker) { t.minReturnBps = bps }
}

// WithCloseHook registers a hook called after each successful close.
func WithCloseHook(h CloseHook) Option {
	return func(t *Tracker) { t.hooks = append(t.hooks, h) }
}

// Tracker owns the position book and the closed flag.
type Tracker struct {
	checker      ResolutionChecker
	closer       Closer
	minReturnBps int64
	hooks        []CloseHook

	mu        sync.RWMutex
	positions []Position
}

func NewTracker(checker ResolutionChecker, closer Closer, opts ...Option) *Tracker {
	t := &Tracker{checker: checker, closer: closer}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add appends p and reports whether it was new. A position whose id is
// already recorded is dropped with a warning.
func (t *Tracker) Add(p Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if k := p.Key(); k != "" {
		for _, existing := range t.positions {
			if existing.Key() == k {
				logger.Warn("position %s already tracked, dropping duplicate", k)
				return false
			}
		}
	}
	t.positions = append(t.positions, p)
	return true
}

// Positions returns a copy of the book.
func (t *Tracker) Positions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, len(t.positions))
	copy(out, t.positions)
	return out
}

// OpenPositions returns positions not yet closed.
func (t *Tracker) OpenPositions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Position
	for _, p := range t.positions {
		if !p.Closed {
			out = append(out, p)
		}
	}
	return out
}

// Restore replaces the book, e.g. from persisted state.
func (t *Tracker) Restore(positions []Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions = append([]Position(nil), positions...)
}

// Sync merges the venue's position list into the book. Closed flags only move forward.
func (t *Tracker) Sync(ctx context.Context, l Lister) error {
	remote, err := l.AllPositions(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	index := make(map[string]int, len(t.positions))
	for i, p := range t.positions {
		index[p.Key()] = i
	}
	for _, p := range remote {
		if i, ok := index[p.Key()]; ok {
			if p.Closed {
				t.positions[i].Closed = true
			}
			continue
		}
		t.positions = append(t.positions, p)
	}
	return nil
}

func (t *Tracker) markClosed(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.positions {
		if t.positions[i].Key() == key {
			t.positions[i].Closed = true
		}
	}
}

// CloseResolved closes every open position whose two legs have both resolved
// and returns how many were closed. Failures are logged per position.
func (t *Tracker) CloseResolved(ctx context.Context, positions []Position) int {
	closed := 0
	for i := range positions {
		p := positions[i]
		if p.Closed {
			continue
		}
		if ok := t.closeIfResolved(ctx, p); ok {
			positions[i].Closed = true
			closed++
		}
	}
	if closed > 0 {
		logger.Info("settlement: closed %d position(s)", closed)
	}
	return closed
}

func (t *Tracker) closeIfResolved(ctx context.Context, p Position) bool {
	resolvedA, errA := t.checker.IsResolved(ctx, p.AdapterA, p.MarketIDA)
	resolvedB, errB := t.checker.IsResolved(ctx, p.AdapterB, p.MarketIDB)
	if errA != nil || errB != nil {
		logger.Warn("settlement: resolution check for position %s failed: a=%v b=%v", p.Key(), errA, errB)
		return false
	}
	if !resolvedA || !resolvedB {
		logger.Debug("settlement: position %s not ready (a=%v b=%v)", p.Key(), resolvedA, resolvedB)
		return false
	}
	if p.ID.Int == nil {
		logger.Warn("settlement: position without id cannot be closed")
		return false
	}

	minReturn := t.minReturn(p)
	proceeds, err := t.closer.ClosePosition(ctx, p.ID.Big(), minReturn)
	if err != nil {
		logger.Error("settlement: close position %s failed: %v", p.Key(), err)
		return false
	}
	t.markClosed(p.Key())
	p.Closed = true
	logger.Info("settlement: closed position %s, proceeds %s", p.Key(), types.USDCFromBig(proceeds))
	for _, h := range t.hooks {
		h(p, proceeds)
	}
	return true
}

func (t *Tracker) minReturn(p Position) *big.Int {
	if t.minReturnBps <= 0 {
		return new(big.Int)
	}
	smaller := p.SharesA.Big()
	if b := p.SharesB.Big(); b.Cmp(smaller) < 0 {
		smaller = b
	}
	out := new(big.Int).Mul(smaller, big.NewInt(t.minReturnBps))
	return out.Quo(out, big.NewInt(10_000))
}
