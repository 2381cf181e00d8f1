package clob

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

var (
	scale8  = types.Pow10(8)
	maxSalt = new(big.Int).Lsh(big.NewInt(1), 256)
)

// scaleInputs turns human price and size into integers at 1e8, rounding half away from zero.
func scaleInputs(price, size decimal.Decimal) (*big.Int, *big.Int, error) {
	price8 := price.Shift(8).Round(0).BigInt()
	if price8.Sign() <= 0 || price8.Cmp(scale8) >= 0 {
		return nil, nil, fmt.Errorf("%w: %s rounds outside the grid", sdkerrors.ErrInvalidPrice, price)
	}
	size8 := size.Shift(8).Round(0).BigInt()
	if size8.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: %s rounds to zero", sdkerrors.ErrInvalidSize, size)
	}
	return price8, size8, nil
}

// priceTicks returns price on a 10^-decimals grid, rejecting 0, 1 and any
// price with finer precision than the grid.
func priceTicks(price decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := price.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %s is off the %d-decimal tick grid", sdkerrors.ErrInvalidPrice, price, decimals)
	}
	ticks := shifted.BigInt()
	if ticks.Sign() <= 0 || ticks.Cmp(types.Pow10(decimals)) >= 0 {
		return nil, fmt.Errorf("%w: %s is outside (0,1)", sdkerrors.ErrInvalidPrice, price)
	}
	return ticks, nil
}

// SnapPrice moves price onto the 10^-decimals tick grid without crossing the
// quote: BUY rounds down, SELL rounds up. Zero decimals means the default grid.
func SnapPrice(side clobtypes.Side, price decimal.Decimal, decimals int32) (decimal.Decimal, error) {
	if decimals <= 0 {
		decimals = defaultPriceDecimals
	}
	var snapped decimal.Decimal
	if side == clobtypes.Sell {
		snapped = price.RoundCeil(decimals)
	} else {
		snapped = price.RoundFloor(decimals)
	}
	if _, err := priceTicks(snapped, decimals); err != nil {
		return decimal.Zero, err
	}
	return snapped, nil
}

// precisionStep is the smallest share amount whose price-derived counterpart is
// still a whole multiple of minUnit.
func precisionStep(priceInt, unit, minUnit *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, priceInt, unit)
	step := new(big.Int).Quo(unit, g)
	return step.Mul(step, minUnit)
}

func floorTo(v, step *big.Int) *big.Int {
	out := new(big.Int).Quo(v, step)
	return out.Mul(out, step)
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func generateSalt() (*big.Int, error) {
	salt, err := rand.Int(rand.Reader, maxSalt)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
