package polyarb

import (
	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob"
	"github.com/GoPolymarket/polymarket-arb/pkg/events"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/state"
	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
	"github.com/GoPolymarket/polymarket-arb/pkg/vault"
)

// Option overrides a Client component or setting before it is built.
type Option func(*Client)

func WithConfig(cfg Config) Option {
	return func(c *Client) { c.Config = cfg }
}

// WithEngineConfig replaces only the engine settings.
func WithEngineConfig(cfg bot.Config) Option {
	return func(c *Client) { c.Config.Engine = cfg }
}

func WithHTTPClient(doer transport.Doer) Option {
	return func(c *Client) { c.HTTP = doer }
}

// WithBackend supplies the chain RPC instead of dialing Config.RPCURL.
func WithBackend(b chain.Backend) Option {
	return func(c *Client) { c.Backend = b }
}

func WithSigner(s auth.Signer) Option {
	return func(c *Client) { c.Signer = s }
}

// WithVenue adds a venue in place of (or alongside) the configured ones.
func WithVenue(v clob.Venue) Option {
	return func(c *Client) { c.Venues = append(c.Venues, v) }
}

func WithVault(v vault.Client) Option {
	return func(c *Client) { c.Vault = v }
}

func WithResolver(r settlement.ResolutionChecker) Option {
	return func(c *Client) { c.Resolver = r }
}

func WithRegistry(r *bot.Registry) Option {
	return func(c *Client) { c.Registry = r }
}

func WithPublisher(p events.Publisher) Option {
	return func(c *Client) { c.Publisher = p }
}

func WithStore(s *state.Store) Option {
	return func(c *Client) { c.Store = s }
}
