package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// USDCDecimals is the collateral precision used for sizing and liquidity.
	USDCDecimals int32 = 6
	// PriceDecimals is the precision of outcome prices (1e18 == 1.0).
	PriceDecimals int32 = 18
)

var (
	usdcUnit  = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(USDCDecimals)), nil)
	priceUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(PriceDecimals)), nil)
)

// Pow10 returns 10^n as a new big.Int.
func Pow10(n int32) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Amount is a raw integer together with its decimal exponent.
type Amount struct {
	Raw      *big.Int
	Decimals int32
}

// NewAmount copies raw into an Amount at the given precision.
func NewAmount(raw *big.Int, decimals int32) Amount {
	return Amount{Raw: NewU256(raw).Int, Decimals: decimals}
}

// AmountFromDecimal scales d to the given precision, truncating extra digits.
func AmountFromDecimal(d decimal.Decimal, decimals int32) Amount {
	return Amount{Raw: d.Shift(decimals).Truncate(0).BigInt(), Decimals: decimals}
}

func (a Amount) raw() *big.Int {
	if a.Raw == nil {
		return new(big.Int)
	}
	return a.Raw
}

// Decimal renders the human value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw(), -a.Decimals)
}

// Rescale converts to another precision. Scaling down truncates.
func (a Amount) Rescale(decimals int32) Amount {
	raw := new(big.Int).Set(a.raw())
	switch {
	case decimals > a.Decimals:
		raw.Mul(raw, Pow10(decimals-a.Decimals))
	case decimals < a.Decimals:
		raw.Quo(raw, Pow10(a.Decimals-decimals))
	}
	return Amount{Raw: raw, Decimals: decimals}
}

// Cmp compares two amounts of the same precision.
func (a Amount) Cmp(o Amount) (int, error) {
	if a.Decimals != o.Decimals {
		return 0, fmt.Errorf("precision mismatch: %d vs %d", a.Decimals, o.Decimals)
	}
	return a.raw().Cmp(o.raw()), nil
}

func (a Amount) Sign() int {
	return a.raw().Sign()
}

func (a Amount) String() string {
	return a.Decimal().String()
}

type amountJSON struct {
	Raw      U256  `json:"raw"`
	Decimals int32 `json:"decimals"`
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{Raw: NewU256(a.Raw), Decimals: a.Decimals})
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var v amountJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.Raw = v.Raw.Big()
	a.Decimals = v.Decimals
	return nil
}

// USDC is a 6-decimal collateral amount.
type USDC struct {
	U256
}

// NewUSDC wraps a raw 6-decimal integer.
func NewUSDC(raw int64) USDC {
	if raw < 0 {
		raw = 0
	}
	return USDC{U256{Int: big.NewInt(raw)}}
}

// USDCFromBig wraps a copy of a raw 6-decimal integer.
func USDCFromBig(raw *big.Int) USDC {
	return USDC{NewU256(raw)}
}

// USDCFromDecimal converts a human dollar amount, truncating below 1e-6.
func USDCFromDecimal(d decimal.Decimal) USDC {
	if d.Sign() < 0 {
		return NewUSDC(0)
	}
	return USDC{U256{Int: d.Shift(USDCDecimals).Truncate(0).BigInt()}}
}

// Raw returns a copy of the raw integer.
func (u USDC) Raw() *big.Int {
	return new(big.Int).Set(u.Big())
}

func (u USDC) Amount() Amount {
	return NewAmount(u.Big(), USDCDecimals)
}

func (u USDC) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(u.Big(), -USDCDecimals)
}

func (u USDC) Cmp(o USDC) int {
	return u.Big().Cmp(o.Big())
}

func (u USDC) Add(o USDC) USDC {
	return USDC{U256{Int: new(big.Int).Add(u.Big(), o.Big())}}
}

// Sub returns u-o. The result may be negative.
func (u USDC) Sub(o USDC) *big.Int {
	return new(big.Int).Sub(u.Big(), o.Big())
}

func (u USDC) String() string {
	return u.Decimal().StringFixed(USDCDecimals)
}

// Price is an outcome price as an 18-decimal fraction of the payout.
type Price struct {
	U256
}

// NewPrice wraps a copy of a raw 18-decimal integer.
func NewPrice(raw *big.Int) Price {
	return Price{NewU256(raw)}
}

// PriceFromDecimal converts a human price such as 0.42.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price{U256{Int: d.Shift(PriceDecimals).Truncate(0).BigInt()}}
}

// Raw returns a copy of the raw integer.
func (p Price) Raw() *big.Int {
	return new(big.Int).Set(p.Big())
}

func (p Price) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.Big(), -PriceDecimals)
}

// IsProbability reports whether 0 < p < 1.
func (p Price) IsProbability() bool {
	v := p.Big()
	return v.Sign() > 0 && v.Cmp(priceUnit) < 0
}

func (p Price) String() string {
	return p.Decimal().String()
}

// PriceScale returns 1e18.
func PriceScale() *big.Int {
	return new(big.Int).Set(priceUnit)
}

// USDCScale returns 1e6.
func USDCScale() *big.Int {
	return new(big.Int).Set(usdcUnit)
}
