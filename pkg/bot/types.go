package bot

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// Outcome is one side of a binary market.
type Outcome string

const (
	Yes Outcome = "YES"
	No  Outcome = "NO"
)

// Complement returns the other outcome.
func (o Outcome) Complement() Outcome {
	if o == No {
		return Yes
	}
	return No
}

// Opportunity is a detected cross-venue arbitrage. SideA is bought on venue A
// at YesPriceA; its complement is bought on venue B at NoPriceB.
type Opportunity struct {
	MarketID         string      `json:"marketId"`
	VenueA           string      `json:"venueA"`
	VenueB           string      `json:"venueB"`
	SideA            Outcome     `json:"sideA"`
	YesPriceA        types.Price `json:"yesPriceA"`
	NoPriceB         types.Price `json:"noPriceB"`
	TotalCost        types.Price `json:"totalCost"`
	GuaranteedPayout types.Price `json:"guaranteedPayout"`
	SpreadBps        int64       `json:"spreadBps"`
	NetSpreadBps     int64       `json:"netSpreadBps"`
	EstimatedProfit  types.USDC  `json:"estimatedProfit"`
	LiquidityA       types.USDC  `json:"liquidityA"`
	LiquidityB       types.USDC  `json:"liquidityB"`
}

// Validate rejects opportunities the engine could never act on.
func (o Opportunity) Validate() error {
	if strings.TrimSpace(o.MarketID) == "" {
		return fmt.Errorf("market id is required")
	}
	if o.VenueA == "" || o.VenueB == "" || o.VenueA == o.VenueB {
		return fmt.Errorf("two distinct venues are required, got %q and %q", o.VenueA, o.VenueB)
	}
	if o.SideA != Yes && o.SideA != No {
		return fmt.Errorf("side must be YES or NO, got %q", o.SideA)
	}
	if !o.YesPriceA.IsProbability() || !o.NoPriceB.IsProbability() {
		return fmt.Errorf("leg prices must be within (0, 1)")
	}
	return nil
}

// Leg is one venue's view of a registered market.
type Leg struct {
	// Adapter is the on-chain venue adapter the vault routes through.
	Adapter common.Address `json:"adapter"`
	// MarketID is the bytes32 market key the adapter understands.
	MarketID common.Hash `json:"marketId"`
	// VenueMarketID is the venue API's own market identifier, if it has one.
	VenueMarketID string `json:"venueMarketId,omitempty"`
	YesTokenID    string `json:"yesTokenId"`
	NoTokenID     string `json:"noTokenId"`
}

// TokenFor returns the outcome token id for o.
func (l Leg) TokenFor(o Outcome) string {
	if o == No {
		return l.NoTokenID
	}
	return l.YesTokenID
}

// MarketPair maps one logical market to its leg on each venue.
type MarketPair struct {
	ID   string         `json:"id"`
	Legs map[string]Leg `json:"legs"`
}

// Registry resolves opportunity market ids to venue legs.
type Registry struct {
	mu    sync.RWMutex
	pairs map[string]MarketPair
}

func NewRegistry(pairs ...MarketPair) *Registry {
	r := &Registry{pairs: map[string]MarketPair{}}
	for _, p := range pairs {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p MarketPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[p.ID] = p
}

// Legs returns the legs of marketID on venueA and venueB.
func (r *Registry) Legs(marketID, venueA, venueB string) (Leg, Leg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pair, ok := r.pairs[marketID]
	if !ok {
		return Leg{}, Leg{}, fmt.Errorf("%w: %s", sdkerrors.ErrMarketNotRegistered, marketID)
	}
	a, okA := pair.Legs[venueA]
	b, okB := pair.Legs[venueB]
	if !okA || !okB {
		return Leg{}, Leg{}, fmt.Errorf("%w: %s has no leg on %s/%s", sdkerrors.ErrMarketNotRegistered, marketID, venueA, venueB)
	}
	return a, b, nil
}

// LoadRegistry decodes a JSON array of market pairs.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var pairs []MarketPair
	if err := json.NewDecoder(r).Decode(&pairs); err != nil {
		return nil, fmt.Errorf("decode market registry: %w", err)
	}
	for _, p := range pairs {
		if p.ID == "" || len(p.Legs) < 2 {
			return nil, fmt.Errorf("market %q needs an id and at least two legs", p.ID)
		}
	}
	return NewRegistry(pairs...), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// Status is a point-in-time view of the engine.
type Status struct {
	Paused        bool
	Mode          Mode
	DryRun        bool
	Trades        uint64
	Failures      uint64
	Skips         uint64
	OpenPositions int
	LastScan      time.Time
	LastError     string
	Cooldowns     map[string]time.Time
	Nonces        map[string]uint64
	Config        Config
}

// Snapshot is the engine state that survives a restart.
type Snapshot struct {
	Positions []settlement.Position
	Nonces    map[string]uint64
	Cooldowns map[string]time.Time
	Trades    uint64
	Failures  uint64
	Skips     uint64
	LastScan  time.Time
}
