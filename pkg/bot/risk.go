package bot

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

const bpsDenominator = 10000

// RiskSnapshot is the outcome of the pre-trade gates for one opportunity.
type RiskSnapshot struct {
	AmountPerSide types.USDC
	Balance       types.USDC
	// GasCost is nil when the gas oracle could not be read.
	GasCost  *big.Int
	CanTrade bool
	Reason   string
}

func blocked(reason string) RiskSnapshot {
	return RiskSnapshot{Reason: reason}
}

// AmountPerSide sizes each leg at min(max, liqA×cap, liqB×cap), flooring each product.
func AmountPerSide(max, liquidityA, liquidityB types.USDC, capBps int64) types.USDC {
	amount := new(big.Int).Set(max.Big())
	for _, liq := range []types.USDC{liquidityA, liquidityB} {
		capped := new(big.Int).Mul(liq.Big(), big.NewInt(capBps))
		capped.Quo(capped, big.NewInt(bpsDenominator))
		if capped.Cmp(amount) < 0 {
			amount = capped
		}
	}
	return types.USDCFromBig(amount)
}

// MinShares is the least number of shares one leg must return:
// floor(floor(amount×1e18/price)×bps/10000).
func MinShares(amount types.USDC, price types.Price, bps int64) *big.Int {
	if price.Big().Sign() <= 0 {
		return new(big.Int)
	}
	shares := new(big.Int).Mul(amount.Big(), types.PriceScale())
	shares.Quo(shares, price.Big())
	shares.Mul(shares, big.NewInt(bps))
	return shares.Quo(shares, big.NewInt(bpsDenominator))
}

// GasCost converts gasPrice×units wei to raw collateral at rate per 1e18 wei.
func GasCost(gasPrice *big.Int, units uint64, rate *big.Int) *big.Int {
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(units))
	cost.Mul(cost, rate)
	return cost.Quo(cost, types.PriceScale())
}

// Profitable reports whether profit clears gas plus the minimum profit.
func Profitable(profit types.USDC, gasCost *big.Int, minProfit types.USDC) bool {
	net := new(big.Int).Sub(profit.Big(), gasCost)
	return net.Cmp(minProfit.Big()) > 0
}

// EvaluateRisk runs sizing, balance and gas gates for opp.
func (e *Engine) EvaluateRisk(ctx context.Context, opp Opportunity, maxPositionSize types.USDC) RiskSnapshot {
	cfg := e.Config()

	amount := AmountPerSide(maxPositionSize, opp.LiquidityA, opp.LiquidityB, cfg.LiquidityCapBps)
	if amount.Big().Sign() <= 0 {
		return blocked("insufficient liquidity")
	}
	snap := RiskSnapshot{AmountPerSide: amount}

	balance, ok, err := e.readBalance(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("balance read failed for %s: %v", opp.MarketID, err)
		snap.Reason = "balance unavailable"
		return snap
	case ok:
		snap.Balance = balance
		need := new(big.Int).Mul(amount.Big(), big.NewInt(2))
		if balance.Big().Cmp(need) < 0 {
			snap.Reason = "insufficient balance"
			return snap
		}
	}

	if e.gas != nil {
		gasPrice, err := e.gas.SuggestGasPrice(ctx)
		if err != nil {
			logger.Warn("gas price unavailable, proceeding without gas check: %v", err)
		} else {
			snap.GasCost = GasCost(gasPrice, cfg.GasUnits, cfg.GasRate())
			if !Profitable(opp.EstimatedProfit, snap.GasCost, cfg.MinProfit()) {
				snap.Reason = "unprofitable after gas"
				return snap
			}
		}
	}

	snap.CanTrade = true
	return snap
}

// readBalance returns the collateral available to the active dispatch path.
// ok is false when no balance source is configured.
func (e *Engine) readBalance(ctx context.Context, cfg Config) (types.USDC, bool, error) {
	if cfg.Mode == ModeVault && e.vault != nil {
		b, err := e.vault.VaultBalance(ctx)
		return b, true, err
	}
	if e.balance != nil {
		b, err := e.balance.Balance(ctx)
		return b, true, err
	}
	return types.USDC{}, false, nil
}
