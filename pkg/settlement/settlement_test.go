package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

var (
	adapterA = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	adapterB = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
)

type fakeChecker struct {
	mu       sync.Mutex
	resolved map[common.Hash]bool
	failing  map[common.Hash]bool
	queried  map[common.Hash]int
}

func newChecker() *fakeChecker {
	return &fakeChecker{resolved: map[common.Hash]bool{}, failing: map[common.Hash]bool{}, queried: map[common.Hash]int{}}
}

func (c *fakeChecker) IsResolved(_ context.Context, _ common.Address, id common.Hash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried[id]++
	if c.failing[id] {
		return false, errors.New("rpc unavailable")
	}
	return c.resolved[id], nil
}

type fakeCloser struct {
	closed    []string
	minReturn []*big.Int
	err       error
}

func (c *fakeCloser) ClosePosition(_ context.Context, id, minReturn *big.Int) (*big.Int, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.closed = append(c.closed, id.String())
	c.minReturn = append(c.minReturn, minReturn)
	return big.NewInt(1_000_000), nil
}

func position(id int64, closed bool) Position {
	return Position{
		ID:        types.NewU256(big.NewInt(id)),
		AdapterA:  adapterA,
		AdapterB:  adapterB,
		MarketIDA: common.BigToHash(big.NewInt(id*10 + 1)),
		MarketIDB: common.BigToHash(big.NewInt(id*10 + 2)),
		SharesA:   types.NewU256(big.NewInt(2_000_000)),
		SharesB:   types.NewU256(big.NewInt(1_500_000)),
		Closed:    closed,
	}
}

func TestCloseResolvedCounting(t *testing.T) {
	checker := newChecker()
	closer := &fakeCloser{}
	tracker := NewTracker(checker, closer)

	both := position(1, false)
	oneLeg := position(2, false)
	failing := position(3, false)
	already := position(4, true)
	alsoBoth := position(5, false)

	checker.resolved[both.MarketIDA] = true
	checker.resolved[both.MarketIDB] = true
	checker.resolved[oneLeg.MarketIDA] = true
	checker.failing[failing.MarketIDA] = true
	checker.resolved[failing.MarketIDB] = true
	checker.resolved[alsoBoth.MarketIDA] = true
	checker.resolved[alsoBoth.MarketIDB] = true

	batch := []Position{both, oneLeg, failing, already, alsoBoth}
	for _, p := range batch {
		tracker.Add(p)
	}

	if got := tracker.CloseResolved(context.Background(), batch); got != 2 {
		t.Fatalf("closed %d, want 2", got)
	}
	if len(closer.closed) != 2 || closer.closed[0] != "1" || closer.closed[1] != "5" {
		t.Errorf("unexpected closes %v", closer.closed)
	}
	if checker.queried[already.MarketIDA] != 0 || checker.queried[already.MarketIDB] != 0 {
		t.Errorf("closed position must never be queried")
	}
	if !batch[0].Closed || batch[1].Closed || batch[2].Closed {
		t.Errorf("closed flags not updated on the batch")
	}
	if open := tracker.OpenPositions(); len(open) != 2 {
		t.Errorf("expected 2 open positions in the book, got %d", len(open))
	}
}

func TestCloseResolvedAllClosed(t *testing.T) {
	checker := newChecker()
	tracker := NewTracker(checker, &fakeCloser{})
	if got := tracker.CloseResolved(context.Background(), []Position{position(1, true), position(2, true)}); got != 0 {
		t.Errorf("closed %d, want 0", got)
	}
	if len(checker.queried) != 0 {
		t.Errorf("no resolution reads expected")
	}
}

func TestCloseFailureDoesNotAbortBatch(t *testing.T) {
	checker := newChecker()
	p1, p2 := position(1, false), position(2, false)
	for _, p := range []Position{p1, p2} {
		checker.resolved[p.MarketIDA] = true
		checker.resolved[p.MarketIDB] = true
	}
	closer := &fakeCloser{err: errors.New("reverted")}
	tracker := NewTracker(checker, closer)
	if got := tracker.CloseResolved(context.Background(), []Position{p1, p2}); got != 0 {
		t.Errorf("closed %d, want 0", got)
	}
	if checker.queried[p2.MarketIDA] != 1 {
		t.Errorf("second position should still be checked")
	}
}

func TestMinReturnAndHook(t *testing.T) {
	checker := newChecker()
	p := position(7, false)
	checker.resolved[p.MarketIDA] = true
	checker.resolved[p.MarketIDB] = true
	closer := &fakeCloser{}
	var hooked []string
	tracker := NewTracker(checker, closer, WithMinReturnBps(9_900), WithCloseHook(func(p Position, proceeds *big.Int) {
		hooked = append(hooked, p.Key()+":"+proceeds.String())
	}))
	if got := tracker.CloseResolved(context.Background(), []Position{p}); got != 1 {
		t.Fatalf("closed %d", got)
	}
	if closer.minReturn[0].Int64() != 1_485_000 {
		t.Errorf("min return %s, want 1485000", closer.minReturn[0])
	}
	if len(hooked) != 1 || hooked[0] != "7:1000000" {
		t.Errorf("hook calls %v", hooked)
	}
}

type staticLister []Position

func (l staticLister) AllPositions(context.Context) ([]Position, error) { return l, nil }

func TestSyncMergesBook(t *testing.T) {
	tracker := NewTracker(newChecker(), &fakeCloser{})
	if !tracker.Add(position(1, false)) {
		t.Fatalf("first add must be accepted")
	}
	if tracker.Add(position(1, false)) {
		t.Errorf("duplicate add must be reported")
	}
	if len(tracker.Positions()) != 1 {
		t.Fatalf("duplicate ids must not be added twice")
	}
	if err := tracker.Sync(context.Background(), staticLister{position(1, true), position(2, false)}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	book := tracker.Positions()
	if len(book) != 2 || !book[0].Closed || book[1].Closed {
		t.Errorf("unexpected book %+v", book)
	}
}
