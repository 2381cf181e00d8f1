// Package polyarb wires venues, the vault, settlement and persistence into
// a cross-venue arbitrage execution engine.
package polyarb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob"
	"github.com/GoPolymarket/polymarket-arb/pkg/ctf"
	"github.com/GoPolymarket/polymarket-arb/pkg/events"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/state"
	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
	"github.com/GoPolymarket/polymarket-arb/pkg/vault"
	"github.com/GoPolymarket/polymarket-arb/pkg/venues/opinion"
	"github.com/GoPolymarket/polymarket-arb/pkg/venues/polymarket"
)

var errNoChain = errors.New("chain backend not configured")

// Client aggregates every engine component behind a shared configuration.
type Client struct {
	Config Config

	HTTP      transport.Doer
	Backend   chain.Backend
	Chain     *chain.Client
	Wallet    *chain.Wallet
	Signer    auth.Signer
	Venues    []clob.Venue
	Vault     vault.Client
	Resolver  settlement.ResolutionChecker
	Tracker   *settlement.Tracker
	Registry  *bot.Registry
	Publisher events.Publisher
	Store     *state.Store
	Engine    *bot.Engine

	// InitErrors records optional components that failed to initialize.
	InitErrors []error

	closers []io.Closer
}

// InitError records a non-fatal initialization failure for one component.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewClient builds the engine from DefaultConfig and opts. Optional
// components that fail are recorded in InitErrors; an invalid engine
// configuration is returned as an error.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{Config: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	cfg := c.Config

	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: cfg.Timeout}
	}
	if c.Signer == nil && cfg.PrivateKey != "" {
		signer, err := auth.NewPrivateKeySigner(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			c.initError("signer", err)
		} else {
			c.Signer = signer
		}
	}
	c.initChain(ctx)

	var writer chain.Writer
	if c.Wallet != nil {
		writer = c.Wallet
	}
	c.initVenues(writer)
	c.initVault(writer)
	c.initSettlement()
	c.initPublisher()
	c.initStore()

	if c.Registry == nil {
		c.Registry = bot.NewRegistry()
		if cfg.MarketsFile != "" {
			if err := c.loadRegistry(cfg.MarketsFile); err != nil {
				c.initError("markets", err)
			}
		}
	}

	engine, err := bot.NewEngine(cfg.Engine, c.Registry, c.engineOptions()...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = engine

	if c.Store != nil {
		snap, err := c.Store.Load()
		if err != nil {
			c.initError("state", err)
		} else {
			engine.Restore(snap)
			if sim, ok := c.Vault.(*vault.Simulated); ok {
				sim.Restore(snap.Positions)
			}
			logger.Info("restored %d position(s), %d trade(s) from state", len(snap.Positions), snap.Trades)
		}
	}
	return c, nil
}

func (c *Client) initError(component string, err error) {
	logger.Warn("init %s: %v", component, err)
	c.InitErrors = append(c.InitErrors, &InitError{Component: component, Err: err})
}

func (c *Client) initChain(ctx context.Context) {
	if c.Backend == nil && c.Config.RPCURL != "" {
		client, err := ethclient.DialContext(ctx, c.Config.RPCURL)
		if err != nil {
			c.initError("chain", err)
			return
		}
		c.Backend = client
		c.closers = append(c.closers, closerFunc(func() error { client.Close(); return nil }))
	}
	if c.Backend == nil {
		return
	}
	c.Chain = chain.NewClient(c.Backend)
	if txSigner, ok := c.Signer.(auth.TxSigner); ok {
		c.Wallet = chain.NewWallet(c.Backend, txSigner)
	}
}

func (c *Client) initVenues(writer chain.Writer) {
	cfg := c.Config
	if len(c.Venues) == 0 {
		for _, name := range cfg.Venues {
			switch name {
			case opinion.Name:
				c.Venues = append(c.Venues, opinion.New(cfg.Opinion, c.Signer, writer, c.HTTP))
			case polymarket.Name:
				c.Venues = append(c.Venues, polymarket.New(cfg.Polymarket, c.Signer, writer, c.HTTP))
			default:
				c.initError("venue", fmt.Errorf("unknown venue %q", name))
			}
		}
	}
	if cfg.Engine.DryRun {
		for i, v := range c.Venues {
			if _, ok := v.(*clob.Simulated); !ok {
				c.Venues[i] = clob.NewSimulated(v)
			}
		}
	}
}

func (c *Client) initVault(writer chain.Writer) {
	cfg := c.Config
	if c.Vault == nil && cfg.VaultAddress != (common.Address{}) && c.Chain != nil {
		c.Vault = vault.NewContract(cfg.VaultAddress, c.Chain, writer)
	}
	if cfg.Engine.DryRun && cfg.Engine.Mode == bot.ModeVault {
		if _, ok := c.Vault.(*vault.Simulated); !ok {
			c.Vault = vault.NewSimulated(c.Vault, types.USDCFromDecimal(cfg.DryRunBalanceUSDC))
		}
	}
}

func (c *Client) initSettlement() {
	cfg := c.Config
	if c.Resolver == nil && c.Chain != nil {
		switch {
		case cfg.Engine.Mode == bot.ModeVault:
			c.Resolver = vault.AdapterResolver{Reader: c.Chain}
		case cfg.CTFAddress != (common.Address{}):
			c.Resolver = ctf.NewClient(cfg.CTFAddress, c.Chain)
		}
	}
	if c.Resolver == nil || c.Vault == nil {
		return
	}
	c.Tracker = settlement.NewTracker(c.Resolver, c.Vault,
		settlement.WithMinReturnBps(cfg.MinReturnBps),
		settlement.WithCloseHook(c.publishClose),
	)
}

func (c *Client) publishClose(p settlement.Position, proceeds *big.Int) {
	if c.Publisher == nil {
		return
	}
	ev := events.New(events.TypePositionClosed, "", map[string]string{
		"positionId": p.Key(),
		"proceeds":   proceeds.String(),
	})
	if err := c.Publisher.Publish(context.Background(), ev); err != nil {
		logger.Warn("publish %s: %v", ev.Type, err)
	}
}

func (c *Client) initPublisher() {
	if c.Publisher != nil {
		return
	}
	c.Publisher = events.Nop{}
	if c.Config.RedisURL == "" {
		return
	}
	pub, rdb, err := events.NewRedisPublisher(c.Config.RedisURL, c.Config.EventStream, c.Config.EventMaxLen)
	if err != nil {
		c.initError("events", err)
		return
	}
	c.Publisher = pub
	c.closers = append(c.closers, rdb)
}

func (c *Client) initStore() {
	if c.Store != nil || c.Config.StateDir == "" {
		return
	}
	store, err := state.Open(c.Config.StateDir)
	if err != nil {
		c.initError("state", err)
		return
	}
	c.Store = store
}

func (c *Client) loadRegistry(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	reg, err := bot.LoadRegistry(f)
	if err != nil {
		return err
	}
	c.Registry = reg
	return nil
}

func (c *Client) engineOptions() []bot.Option {
	opts := []bot.Option{bot.WithPublisher(c.Publisher)}
	for _, v := range c.Venues {
		opts = append(opts, bot.WithVenue(v))
	}
	if c.Vault != nil {
		opts = append(opts, bot.WithVault(c.Vault))
	}
	if c.Tracker != nil {
		opts = append(opts, bot.WithTracker(c.Tracker))
	}
	if c.Chain != nil {
		opts = append(opts, bot.WithGasOracle(c.Chain))
		if c.Signer != nil && c.Config.Collateral != (common.Address{}) {
			opts = append(opts, bot.WithBalance(chain.TokenBalance{
				Reader: c.Chain,
				Token:  c.Config.Collateral,
				Owner:  c.Signer.Address(),
			}))
		}
	}
	return opts
}

// Authenticate bootstraps credentials on every venue.
func (c *Client) Authenticate(ctx context.Context) error {
	var errs []error
	for _, v := range c.Venues {
		if err := v.Authenticate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// EnsureApprovals grants every venue's exchange spending rights up to threshold.
func (c *Client) EnsureApprovals(ctx context.Context, threshold *big.Int) error {
	if c.Chain == nil {
		return errNoChain
	}
	var errs []error
	for _, v := range c.Venues {
		if err := v.EnsureApprovals(ctx, c.Chain, threshold); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Runner returns a scan loop over source.
func (c *Client) Runner(source bot.OpportunitySource) *bot.Runner {
	return bot.NewRunner(c.Engine, source)
}

// Persist writes the engine snapshot to the store, if one is configured.
func (c *Client) Persist() error {
	if c.Store == nil || c.Engine == nil {
		return nil
	}
	return c.Store.Save(c.Engine.Snapshot())
}

// Close persists state and releases connections.
func (c *Client) Close() error {
	var errs []error
	if err := c.Persist(); err != nil {
		errs = append(errs, fmt.Errorf("persist state: %w", err))
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
		c.Store = nil
	}
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
