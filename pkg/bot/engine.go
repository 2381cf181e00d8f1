// Package bot decides whether to act on an arbitrage opportunity, sizes it
// and dispatches both legs through the vault or the venues' order books.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoPolymarket/polymarket-arb/pkg/clob"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/events"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
	"github.com/GoPolymarket/polymarket-arb/pkg/vault"
)

// ErrLegFailed reports that at least one order-book leg was rejected.
var ErrLegFailed = errors.New("order leg failed")

// VaultClient is the part of the vault the engine trades through.
type VaultClient interface {
	OpenPosition(ctx context.Context, p vault.OpenParams) (*big.Int, error)
	VaultBalance(ctx context.Context) (types.USDC, error)
}

// BalanceSource reports the wallet collateral used in order-book mode.
type BalanceSource interface {
	Balance(ctx context.Context) (types.USDC, error)
}

// GasOracle quotes the current gas price in wei.
type GasOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type Option func(*Engine)

// WithVenue registers an order-book venue under its Name.
func WithVenue(v clob.Venue) Option {
	return func(e *Engine) { e.venues[v.Name()] = v }
}

func WithVault(v VaultClient) Option {
	return func(e *Engine) { e.vault = v }
}

func WithBalance(b BalanceSource) Option {
	return func(e *Engine) { e.balance = b }
}

func WithGasOracle(g GasOracle) Option {
	return func(e *Engine) { e.gas = g }
}

func WithTracker(t *settlement.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the execution decision gate. It is active until paused.
type Engine struct {
	registry  *Registry
	venues    map[string]clob.Venue
	vault     VaultClient
	balance   BalanceSource
	gas       GasOracle
	tracker   *settlement.Tracker
	publisher events.Publisher
	now       func() time.Time

	paused atomic.Bool

	mu        sync.RWMutex
	cfg       Config
	cooldowns map[string]time.Time
	trades    uint64
	failures  uint64
	skips     uint64
	lastScan  time.Time
	lastErr   string
}

// NewEngine validates cfg as given; environment overlays belong to the caller (see Config.MergeEnv).
func NewEngine(cfg Config, registry *Registry, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		registry:  registry,
		venues:    map[string]clob.Venue{},
		publisher: events.Nop{},
		now:       time.Now,
		cfg:       cfg,
		cooldowns: map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		logger.Info("engine paused")
	}
}

func (e *Engine) Unpause() {
	if e.paused.Swap(false) {
		logger.Info("engine resumed")
	}
}

func (e *Engine) IsPaused() bool { return e.paused.Load() }

func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig applies u after validating the result. The old config stays on error.
func (e *Engine) UpdateConfig(u ConfigUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.cfg.apply(u)
	if err := next.Validate(); err != nil {
		return err
	}
	e.cfg = next
	logger.Info("config updated: min spread %d bps, max position %s, scan every %s", next.MinSpreadBps, next.MaxPositionUSDC, next.ScanInterval)
	return nil
}

// Venue returns a registered venue by name.
func (e *Engine) Venue(name string) (clob.Venue, bool) {
	v, ok := e.venues[name]
	return v, ok
}

// ExecuteBest acts on opp if every gate passes. Gate rejections and
// misconfiguration return nil; dispatch failures are returned.
func (e *Engine) ExecuteBest(ctx context.Context, opp Opportunity, maxPositionSize types.USDC) error {
	if e.IsPaused() {
		logger.Debug("paused, ignoring %s", opp.MarketID)
		return nil
	}
	if until, cooling := e.cooldownUntil(opp.MarketID); cooling {
		return e.skip("%s cooling down until %s", opp.MarketID, until.Format(time.RFC3339))
	}
	cfg := e.Config()
	if opp.NetSpreadBps < cfg.MinSpreadBps {
		return e.skip("%s net spread %d bps below %d", opp.MarketID, opp.NetSpreadBps, cfg.MinSpreadBps)
	}
	if cfg.Mode == ModeVault && e.vault == nil {
		logger.Error("cannot execute %s: %v", opp.MarketID, sdkerrors.ErrVaultNotConfigured)
		return nil
	}
	if err := opp.Validate(); err != nil {
		logger.Error("cannot execute %s: %v", opp.MarketID, err)
		return nil
	}
	legA, legB, err := e.registry.Legs(opp.MarketID, opp.VenueA, opp.VenueB)
	if err != nil {
		logger.Error("cannot execute %s: %v", opp.MarketID, err)
		return nil
	}

	risk := e.EvaluateRisk(ctx, opp, maxPositionSize)
	if !risk.CanTrade {
		return e.skip("%s: %s", opp.MarketID, risk.Reason)
	}

	plan := TradePlan{
		Opportunity:   opp,
		LegA:          legA,
		LegB:          legB,
		AmountPerSide: risk.AmountPerSide,
		MinSharesA:    MinShares(risk.AmountPerSide, opp.YesPriceA, cfg.MinSharesBps),
		MinSharesB:    MinShares(risk.AmountPerSide, opp.NoPriceB, cfg.MinSharesBps),
	}
	logger.Info("executing %s: %s on %s @ %s + %s on %s @ %s, %s per side",
		opp.MarketID, opp.SideA, opp.VenueA, opp.YesPriceA, opp.SideA.Complement(), opp.VenueB, opp.NoPriceB, plan.AmountPerSide)

	if cfg.Mode == ModeVault {
		return e.dispatchVault(ctx, plan)
	}
	return e.dispatchCLOB(ctx, cfg, plan)
}

func (e *Engine) dispatchVault(ctx context.Context, plan TradePlan) error {
	opp := plan.Opportunity
	params := vault.OpenParams{
		AdapterA:   plan.LegA.Adapter,
		AdapterB:   plan.LegB.Adapter,
		MarketIDA:  plan.LegA.MarketID,
		MarketIDB:  plan.LegB.MarketID,
		BuyYesOnA:  opp.SideA == Yes,
		AmountA:    plan.AmountPerSide,
		AmountB:    plan.AmountPerSide,
		MinSharesA: plan.MinSharesA,
		MinSharesB: plan.MinSharesB,
	}
	id, err := e.vault.OpenPosition(ctx, params)
	if err != nil {
		e.recordFailure(err)
		e.publish(ctx, events.TypeExecutionFailed, opp.MarketID, map[string]string{"error": err.Error()})
		return err
	}

	if e.tracker != nil {
		e.tracker.Add(settlement.Position{
			ID:        types.NewU256(id),
			AdapterA:  params.AdapterA,
			AdapterB:  params.AdapterB,
			MarketIDA: params.MarketIDA,
			MarketIDB: params.MarketIDB,
			BuyYesOnA: params.BuyYesOnA,
			SharesA:   types.NewU256(plan.MinSharesA),
			SharesB:   types.NewU256(plan.MinSharesB),
			CostA:     plan.AmountPerSide,
			CostB:     plan.AmountPerSide,
			OpenedAt:  e.now().UTC(),
		})
	}
	e.recordTrade()
	logger.Info("opened vault position %s for %s", id, opp.MarketID)
	e.publish(ctx, events.TypeExecutionOpened, opp.MarketID, map[string]string{
		"positionId": id.String(),
		"amount":     plan.AmountPerSide.String(),
	})
	return nil
}

func (e *Engine) dispatchCLOB(ctx context.Context, cfg Config, plan TradePlan) error {
	opp := plan.Opportunity
	venueA, okA := e.venues[opp.VenueA]
	venueB, okB := e.venues[opp.VenueB]
	if !okA || !okB {
		logger.Error("cannot execute %s: %v: %s/%s", opp.MarketID, sdkerrors.ErrVenueNotConfigured, opp.VenueA, opp.VenueB)
		return nil
	}
	reqA, reqB := plan.Requests()

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	var resA, resB clobtypes.OrderResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resA = venueA.PlaceOrder(ctx, reqA)
	}()
	go func() {
		defer wg.Done()
		resB = venueB.PlaceOrder(ctx, reqB)
	}()
	wg.Wait()

	return e.settleLegs(ctx, cfg, opp, resA, resB)
}

func (e *Engine) settleLegs(ctx context.Context, cfg Config, opp Opportunity, resA, resB clobtypes.OrderResult) error {
	fields := map[string]string{
		"orderA":  resA.OrderID,
		"statusA": resA.Status,
		"orderB":  resB.OrderID,
		"statusB": resB.Status,
	}
	switch {
	case !resA.Success && !resB.Success:
		err := fmt.Errorf("%w: %s: %s; %s: %s", ErrLegFailed, opp.VenueA, resA.Error, opp.VenueB, resB.Error)
		e.recordFailure(err)
		e.publish(ctx, events.TypeExecutionFailed, opp.MarketID, fields)
		return err

	case !resA.Success || !resB.Success:
		venue, reason := opp.VenueA, resA.Error
		if resA.Success {
			venue, reason = opp.VenueB, resB.Error
		}
		err := fmt.Errorf("%w: %s: %s", ErrLegFailed, venue, reason)
		e.startCooldown(opp.MarketID, cfg.CooldownDuration)
		e.recordFailure(err)
		logger.Warn("partial fill on %s, one leg is unhedged: %v", opp.MarketID, err)
		e.publish(ctx, events.TypeExecutionPartial, opp.MarketID, fields)
		return err

	case resA.Status == clobtypes.PlacementPlaced || resB.Status == clobtypes.PlacementPlaced:
		e.startCooldown(opp.MarketID, cfg.CooldownDuration)
		e.recordTrade()
		logger.Warn("partial fill on %s: A=%s B=%s", opp.MarketID, resA.Status, resB.Status)
		e.publish(ctx, events.TypeExecutionPartial, opp.MarketID, fields)
		return nil
	}

	e.recordTrade()
	logger.Info("filled %s: %s=%s %s=%s", opp.MarketID, opp.VenueA, resA.OrderID, opp.VenueB, resB.OrderID)
	e.publish(ctx, events.TypeExecutionFilled, opp.MarketID, fields)
	return nil
}

// CloseResolved closes every tracked position whose markets have both
// resolved. In vault mode the book is refreshed from the vault first.
func (e *Engine) CloseResolved(ctx context.Context) int {
	if e.tracker == nil {
		return 0
	}
	if lister, ok := e.vault.(settlement.Lister); ok && e.Config().Mode == ModeVault {
		if err := e.tracker.Sync(ctx, lister); err != nil {
			logger.Warn("position sync failed: %v", err)
		}
	}
	return e.tracker.CloseResolved(ctx, e.tracker.Positions())
}

func (e *Engine) cooldownUntil(marketID string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooldowns[marketID]
	if !ok {
		return time.Time{}, false
	}
	if !e.now().Before(until) {
		delete(e.cooldowns, marketID)
		return time.Time{}, false
	}
	return until, true
}

func (e *Engine) startCooldown(marketID string, d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldowns[marketID] = e.now().Add(d)
}

func (e *Engine) skip(format string, args ...any) error {
	logger.Info("skip: "+format, args...)
	e.mu.Lock()
	e.skips++
	e.mu.Unlock()
	return nil
}

func (e *Engine) recordTrade() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades++
}

func (e *Engine) recordFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	e.lastErr = err.Error()
}

func (e *Engine) markScan(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastScan = t
}

func (e *Engine) publish(ctx context.Context, typ, marketID string, fields map[string]string) {
	if err := e.publisher.Publish(ctx, events.New(typ, marketID, fields)); err != nil {
		logger.Warn("publish %s: %v", typ, err)
	}
}

// Status reports counters, cooldowns and nonces.
func (e *Engine) Status() Status {
	nonces := e.nonces()
	open := 0
	if e.tracker != nil {
		open = len(e.tracker.OpenPositions())
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Paused:        e.IsPaused(),
		Mode:          e.cfg.Mode,
		DryRun:        e.cfg.DryRun,
		Trades:        e.trades,
		Failures:      e.failures,
		Skips:         e.skips,
		OpenPositions: open,
		LastScan:      e.lastScan,
		LastError:     e.lastErr,
		Cooldowns:     e.activeCooldowns(),
		Nonces:        nonces,
		Config:        e.cfg,
	}
}

func (e *Engine) nonces() map[string]uint64 {
	out := make(map[string]uint64, len(e.venues))
	for name, v := range e.venues {
		out[name] = v.Nonce()
	}
	return out
}

// activeCooldowns must be called with e.mu held.
func (e *Engine) activeCooldowns() map[string]time.Time {
	now := e.now()
	out := make(map[string]time.Time, len(e.cooldowns))
	for id, until := range e.cooldowns {
		if now.Before(until) {
			out[id] = until
		}
	}
	return out
}

// Snapshot captures the state worth persisting.
func (e *Engine) Snapshot() Snapshot {
	var positions []settlement.Position
	if e.tracker != nil {
		positions = e.tracker.Positions()
	}
	nonces := e.nonces()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		Positions: positions,
		Nonces:    nonces,
		Cooldowns: e.activeCooldowns(),
		Trades:    e.trades,
		Failures:  e.failures,
		Skips:     e.skips,
		LastScan:  e.lastScan,
	}
}

// Restore loads a snapshot. Nonces for unregistered venues are ignored.
func (e *Engine) Restore(s Snapshot) {
	if e.tracker != nil && len(s.Positions) > 0 {
		e.tracker.Restore(s.Positions)
	}
	for name, n := range s.Nonces {
		if v, ok := e.venues[name]; ok {
			v.SetNonce(n)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, until := range s.Cooldowns {
		e.cooldowns[id] = until
	}
	e.trades = s.Trades
	e.failures = s.Failures
	e.skips = s.Skips
	e.lastScan = s.LastScan
}
