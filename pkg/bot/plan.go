package bot

import (
	"math/big"

	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// TradePlan is a sized opportunity that passed every gate.
type TradePlan struct {
	Opportunity   Opportunity
	LegA          Leg
	LegB          Leg
	AmountPerSide types.USDC
	MinSharesA    *big.Int
	MinSharesB    *big.Int
}

// Requests returns the two fill-or-kill market buys for the order-book path.
func (p TradePlan) Requests() (clobtypes.PlaceOrderRequest, clobtypes.PlaceOrderRequest) {
	opp := p.Opportunity
	size := p.AmountPerSide.Decimal()
	a := clobtypes.PlaceOrderRequest{
		TokenID:    p.LegA.TokenFor(opp.SideA),
		MarketID:   p.LegA.VenueMarketID,
		Side:       clobtypes.Buy,
		Price:      opp.YesPriceA.Decimal(),
		Size:       size,
		Strategy:   clobtypes.StrategyMarket,
		FillOrKill: true,
	}
	b := clobtypes.PlaceOrderRequest{
		TokenID:    p.LegB.TokenFor(opp.SideA.Complement()),
		MarketID:   p.LegB.VenueMarketID,
		Side:       clobtypes.Buy,
		Price:      opp.NoPriceB.Decimal(),
		Size:       size,
		Strategy:   clobtypes.StrategyMarket,
		FillOrKill: true,
	}
	return a, b
}

// Best picks the valid opportunity with the widest net spread, breaking ties
// on estimated profit.
func Best(opps []Opportunity) (Opportunity, bool) {
	var best Opportunity
	found := false
	for _, o := range opps {
		if o.Validate() != nil {
			continue
		}
		if !found || better(o, best) {
			best = o
			found = true
		}
	}
	return best, found
}

func better(a, b Opportunity) bool {
	if a.NetSpreadBps != b.NetSpreadBps {
		return a.NetSpreadBps > b.NetSpreadBps
	}
	return a.EstimatedProfit.Cmp(b.EstimatedProfit) > 0
}
