package bot

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
	"github.com/GoPolymarket/polymarket-arb/pkg/vault"
)

const (
	venueAlpha = "alpha"
	venueBeta  = "beta"
	marketID   = "btc-100k-2026"
)

func price(s string) types.Price {
	return types.PriceFromDecimal(decimal.RequireFromString(s))
}

func testOpportunity() Opportunity {
	return Opportunity{
		MarketID:         marketID,
		VenueA:           venueAlpha,
		VenueB:           venueBeta,
		SideA:            Yes,
		YesPriceA:        price("0.40"),
		NoPriceB:         price("0.55"),
		TotalCost:        price("0.95"),
		GuaranteedPayout: price("1"),
		SpreadBps:        500,
		NetSpreadBps:     300,
		EstimatedProfit:  types.NewUSDC(50_000_000),
		LiquidityA:       types.NewUSDC(500_000_000),
		LiquidityB:       types.NewUSDC(500_000_000),
	}
}

var (
	adapterA = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	adapterB = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
)

func testRegistry() *Registry {
	return NewRegistry(MarketPair{
		ID: marketID,
		Legs: map[string]Leg{
			venueAlpha: {Adapter: adapterA, MarketID: common.HexToHash("0x0a"), VenueMarketID: "1201", YesTokenID: "101", NoTokenID: "102"},
			venueBeta:  {Adapter: adapterB, MarketID: common.HexToHash("0x0b"), YesTokenID: "201", NoTokenID: "202"},
		},
	})
}

func testConfig(mode Mode) Config {
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.MaxPositionUSDC = decimal.NewFromInt(1000)
	cfg.CooldownDuration = time.Minute
	return cfg
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeVault struct {
	mu         sync.Mutex
	opens      []vault.OpenParams
	openErr    error
	nextID     int64
	balance    types.USDC
	balanceErr error
	remote     []settlement.Position
}

func newFakeVault() *fakeVault {
	return &fakeVault{balance: types.NewUSDC(10_000_000_000), nextID: 7}
}

func (v *fakeVault) OpenPosition(_ context.Context, p vault.OpenParams) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opens = append(v.opens, p)
	if v.openErr != nil {
		return nil, v.openErr
	}
	id := big.NewInt(v.nextID)
	v.nextID++
	return id, nil
}

func (v *fakeVault) VaultBalance(context.Context) (types.USDC, error) {
	return v.balance, v.balanceErr
}

func (v *fakeVault) AllPositions(context.Context) ([]settlement.Position, error) {
	return v.remote, nil
}

func (v *fakeVault) openCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.opens)
}

type fakeGas struct {
	price *big.Int
	err   error
}

func (g fakeGas) SuggestGasPrice(context.Context) (*big.Int, error) {
	return g.price, g.err
}

type fakeBalance struct {
	value types.USDC
	err   error
}

func (b fakeBalance) Balance(context.Context) (types.USDC, error) { return b.value, b.err }

type fakeVenue struct {
	name   string
	result clobtypes.OrderResult

	mu    sync.Mutex
	reqs  []clobtypes.PlaceOrderRequest
	nonce uint64
}

func filledVenue(name string) *fakeVenue {
	return &fakeVenue{name: name, result: clobtypes.OrderResult{Success: true, OrderID: name + "-1", Status: clobtypes.PlacementFilled}}
}

func (v *fakeVenue) Name() string                       { return v.name }
func (v *fakeVenue) Authenticate(context.Context) error { return nil }

func (v *fakeVenue) PlaceOrder(_ context.Context, req clobtypes.PlaceOrderRequest) clobtypes.OrderResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reqs = append(v.reqs, req)
	if v.result.Success {
		v.nonce++
	}
	return v.result
}

func (v *fakeVenue) CancelOrder(context.Context, string) (bool, error) { return true, nil }

func (v *fakeVenue) OpenOrders(context.Context) ([]clobtypes.OpenOrder, error) { return nil, nil }

func (v *fakeVenue) OrderStatus(_ context.Context, id string) (clobtypes.OrderStatusResult, error) {
	return clobtypes.OrderStatusResult{OrderID: id, Status: clobtypes.StatusFilled}, nil
}

func (v *fakeVenue) EnsureApprovals(context.Context, chain.Reader, *big.Int) error { return nil }

func (v *fakeVenue) Nonce() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nonce
}

func (v *fakeVenue) SetNonce(n uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nonce = n
}

func (v *fakeVenue) AdvanceNonce() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nonce++
	return v.nonce
}

func (v *fakeVenue) requests() []clobtypes.PlaceOrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]clobtypes.PlaceOrderRequest(nil), v.reqs...)
}

type resolvedAll struct{ calls int }

func (r *resolvedAll) IsResolved(context.Context, common.Address, common.Hash) (bool, error) {
	r.calls++
	return true, nil
}

type fixedCloser struct{ closed []string }

func (c *fixedCloser) ClosePosition(_ context.Context, id, _ *big.Int) (*big.Int, error) {
	c.closed = append(c.closed, id.String())
	return big.NewInt(1_000_000), nil
}

func mustEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, testRegistry(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}
