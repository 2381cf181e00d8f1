package clob

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

const (
	defaultPriceDecimals     = int32(4)
	defaultShareDecimals     = int32(2)
	defaultMinAmountDecimals = int32(6)
	maxDecimals              = int32(36)
	bpsDenominator           = 10000
)

// SaltGenerator generates salts for new orders.
type SaltGenerator func() (*big.Int, error)

// OrderParams is everything needed to turn a human price and size into an Order.
type OrderParams struct {
	Maker         common.Address
	Signer        common.Address
	TokenID       string
	Side          clobtypes.Side
	Price         decimal.Decimal
	Size          decimal.Decimal
	FeeRateBps    int64
	ExpirationSec int64
	Nonce         uint64
	SignatureType auth.SignatureType

	// Decimals is the venue's native precision for both collateral and outcome tokens.
	Decimals int32
	// Quantize snaps shares to a 10^-ShareDecimals token step and keeps size on the price tick grid.
	Quantize    bool
	SlippageBps int64

	// PriceDecimals sets the tick grid (10^-PriceDecimals). Zero means 4.
	PriceDecimals int32
	// ShareDecimals sets the quantize step. Zero means 2.
	ShareDecimals int32
	// MinAmountDecimals is the finest amount precision the venue accepts on the exact path. Zero means 6.
	MinAmountDecimals int32

	SaltGenerator SaltGenerator
	// Now anchors the expiration. Zero means time.Now().
	Now time.Time
}

func (p OrderParams) withDefaults() OrderParams {
	if p.PriceDecimals <= 0 {
		p.PriceDecimals = defaultPriceDecimals
	}
	if p.ShareDecimals <= 0 {
		p.ShareDecimals = defaultShareDecimals
	}
	if p.MinAmountDecimals <= 0 {
		p.MinAmountDecimals = defaultMinAmountDecimals
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}
	return p
}

func (p OrderParams) validate() error {
	if p.Signer == (common.Address{}) {
		return sdkerrors.ErrNoSigningAccount
	}
	if p.Side != clobtypes.Buy && p.Side != clobtypes.Sell {
		return fmt.Errorf("%w: side must be BUY or SELL", sdkerrors.ErrInvalidOrder)
	}
	if p.Price.Sign() <= 0 || p.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: got %s", sdkerrors.ErrInvalidPrice, p.Price)
	}
	if p.Size.Sign() <= 0 {
		return fmt.Errorf("%w: got %s", sdkerrors.ErrInvalidSize, p.Size)
	}
	if p.Decimals < defaultMinAmountDecimals || p.Decimals > maxDecimals {
		return fmt.Errorf("%w: unsupported decimals %d", sdkerrors.ErrInvalidOrder, p.Decimals)
	}
	if p.ShareDecimals > p.Decimals || p.MinAmountDecimals > p.Decimals {
		return fmt.Errorf("%w: step precision exceeds venue decimals", sdkerrors.ErrInvalidOrder)
	}
	if p.SlippageBps < 0 || p.SlippageBps > bpsDenominator {
		return fmt.Errorf("%w: slippage %d bps out of range", sdkerrors.ErrInvalidOrder, p.SlippageBps)
	}
	if p.FeeRateBps < 0 {
		return fmt.Errorf("%w: negative fee rate", sdkerrors.ErrInvalidOrder)
	}
	return nil
}

// exactPath reports whether amounts must be derived bit-exactly from the price.
func (p OrderParams) exactPath() bool {
	return !p.Quantize && p.SlippageBps == 0 && p.Decimals == types.PriceDecimals
}

// BuildOrder converts human inputs into an unsigned order with integer amounts.
// Only the salt and the clock are non-deterministic.
func BuildOrder(p OrderParams) (*clobtypes.Order, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	tokenID, ok := new(big.Int).SetString(strings.TrimSpace(p.TokenID), 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid token id %q", sdkerrors.ErrInvalidOrder, p.TokenID)
	}

	makerAmount, takerAmount, err := orderAmounts(p)
	if err != nil {
		return nil, err
	}

	gen := p.SaltGenerator
	if gen == nil {
		gen = generateSalt
	}
	salt, err := gen()
	if err != nil {
		return nil, err
	}

	expiration := new(big.Int)
	if p.ExpirationSec > 0 {
		expiration.SetInt64(p.Now.Unix() + p.ExpirationSec)
	}

	maker := p.Maker
	if maker == (common.Address{}) {
		if p.SignatureType != auth.SignatureEOA {
			return nil, fmt.Errorf("%w: maker address required for signature type %d", sdkerrors.ErrInvalidOrder, p.SignatureType)
		}
		maker = p.Signer
	}

	return &clobtypes.Order{
		Salt:          types.U256{Int: salt},
		Maker:         maker,
		Signer:        p.Signer,
		Taker:         common.Address{},
		TokenID:       types.U256{Int: tokenID},
		MakerAmount:   types.U256{Int: makerAmount},
		TakerAmount:   types.U256{Int: takerAmount},
		Expiration:    types.U256{Int: expiration},
		Nonce:         types.U256FromUint64(p.Nonce),
		FeeRateBps:    types.U256{Int: big.NewInt(p.FeeRateBps)},
		Side:          p.Side,
		SignatureType: int(p.SignatureType),
	}, nil
}

// orderAmounts returns (makerAmount, takerAmount) in venue precision.
func orderAmounts(p OrderParams) (*big.Int, *big.Int, error) {
	price8, size8, err := scaleInputs(p.Price, p.Size)
	if err != nil {
		return nil, nil, err
	}
	if p.exactPath() {
		return exactAmounts(p, size8)
	}

	scale := types.Pow10(p.Decimals)
	sizeRaw := new(big.Int).Mul(size8, scale)
	sizeRaw.Quo(sizeRaw, scale8)
	sharesRaw := new(big.Int).Mul(size8, scale)
	sharesRaw.Quo(sharesRaw, price8)

	tickDen := types.Pow10(p.PriceDecimals)
	if p.Quantize {
		ticks, err := priceTicks(p.Price, p.PriceDecimals)
		if err != nil {
			return nil, nil, err
		}
		step := types.Pow10(p.Decimals - p.ShareDecimals)
		sharesRaw = floorTo(sharesRaw, step)
		if sharesRaw.Sign() == 0 {
			sharesRaw.Set(step)
		}
		sizeRaw = new(big.Int).Mul(sharesRaw, ticks)
		sizeRaw.Quo(sizeRaw, tickDen)
	}

	var maker, taker *big.Int
	if p.Side == clobtypes.Buy {
		maker, taker = sizeRaw, sharesRaw
	} else {
		maker, taker = sharesRaw, sizeRaw
	}

	if p.SlippageBps > 0 {
		applySlippage(p.Side, maker, taker, p.SlippageBps)
		if p.Quantize {
			snapToTick(p.Side, maker, taker, tickDen)
		}
	}

	if maker.Sign() == 0 || (p.Side == clobtypes.Buy && taker.Sign() == 0) {
		return nil, nil, sdkerrors.ErrAmountTooSmall
	}
	return maker, taker, nil
}

// applySlippage widens the currency side in place: BUY pays more (never above
// one currency unit per share), SELL accepts less (never below zero).
func applySlippage(side clobtypes.Side, maker, taker *big.Int, bps int64) {
	if side == clobtypes.Buy {
		maker.Mul(maker, big.NewInt(bpsDenominator+bps))
		maker.Quo(maker, big.NewInt(bpsDenominator))
		if maker.Cmp(taker) > 0 {
			maker.Set(taker)
		}
		return
	}
	taker.Mul(taker, big.NewInt(bpsDenominator-bps))
	taker.Quo(taker, big.NewInt(bpsDenominator))
	if taker.Sign() < 0 {
		taker.SetInt64(0)
	}
}

// snapToTick moves the implied price back onto the tick grid: BUY rounds up, SELL rounds down.
func snapToTick(side clobtypes.Side, maker, taker, tickDen *big.Int) {
	if side == clobtypes.Buy {
		if taker.Sign() == 0 {
			return
		}
		ticks := ceilDiv(new(big.Int).Mul(maker, tickDen), taker)
		if ticks.Cmp(tickDen) > 0 {
			ticks.Set(tickDen)
		}
		maker.Mul(taker, ticks)
		maker.Quo(maker, tickDen)
		return
	}
	if maker.Sign() == 0 {
		return
	}
	ticks := new(big.Int).Mul(taker, tickDen)
	ticks.Quo(ticks, maker)
	taker.Mul(maker, ticks)
	taker.Quo(taker, tickDen)
}

// exactAmounts derives the currency side from shares with no remainder, so the
// venue's own recomputation from price reproduces both amounts bit-for-bit.
// Shares are the independent side for SELL as well as BUY: deriving shares
// from a SELL currency amount cannot keep both amounts on their steps.
// The price must already be on the tick grid; see SnapPrice.
func exactAmounts(p OrderParams, size8 *big.Int) (*big.Int, *big.Int, error) {
	priceInt, err := priceTicks(p.Price, p.PriceDecimals)
	if err != nil {
		return nil, nil, err
	}
	unit := types.Pow10(p.PriceDecimals)
	step := precisionStep(priceInt, unit, types.Pow10(p.Decimals-p.MinAmountDecimals))

	sizeRaw := new(big.Int).Mul(size8, types.Pow10(p.Decimals))
	sizeRaw.Quo(sizeRaw, scale8)
	shares := new(big.Int).Mul(sizeRaw, unit)
	shares.Quo(shares, priceInt)
	shares = floorTo(shares, step)
	if shares.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: size %s below one step of %s", sdkerrors.ErrAmountTooSmall, p.Size, step)
	}
	currency := new(big.Int).Mul(shares, priceInt)
	currency.Quo(currency, unit)

	if p.Side == clobtypes.Buy {
		return currency, shares, nil
	}
	return shares, currency, nil
}

// OrderBuilder is a fluent front-end for BuildOrder.
type OrderBuilder struct {
	signer auth.Signer
	params OrderParams
}

// NewOrderBuilder creates a builder for orders signed by signer.
func NewOrderBuilder(signer auth.Signer) *OrderBuilder {
	return &OrderBuilder{signer: signer, params: OrderParams{Decimals: types.USDCDecimals}}
}

// TokenID sets the outcome token to trade.
func (b *OrderBuilder) TokenID(tokenID string) *OrderBuilder {
	b.params.TokenID = tokenID
	return b
}

// Side sets the trade side.
func (b *OrderBuilder) Side(side clobtypes.Side) *OrderBuilder {
	b.params.Side = side
	return b
}

// Price sets the price per share using a float64.
func (b *OrderBuilder) Price(price float64) *OrderBuilder {
	b.params.Price = decimal.NewFromFloat(price)
	return b
}

// PriceDec sets the price per share using a decimal.Decimal.
func (b *OrderBuilder) PriceDec(price decimal.Decimal) *OrderBuilder {
	b.params.Price = price
	return b
}

// Size sets the currency amount using a float64.
func (b *OrderBuilder) Size(size float64) *OrderBuilder {
	b.params.Size = decimal.NewFromFloat(size)
	return b
}

// SizeDec sets the currency amount using a decimal.Decimal.
func (b *OrderBuilder) SizeDec(size decimal.Decimal) *OrderBuilder {
	b.params.Size = size
	return b
}

func (b *OrderBuilder) FeeRateBps(bps int64) *OrderBuilder {
	b.params.FeeRateBps = bps
	return b
}

func (b *OrderBuilder) Nonce(nonce uint64) *OrderBuilder {
	b.params.Nonce = nonce
	return b
}

// Maker overrides the funding address (proxy or multisig wallets).
func (b *OrderBuilder) Maker(maker common.Address) *OrderBuilder {
	b.params.Maker = maker
	return b
}

func (b *OrderBuilder) SignatureType(t auth.SignatureType) *OrderBuilder {
	b.params.SignatureType = t
	return b
}

// ExpiresIn sets a relative expiration in seconds; zero means no expiry.
func (b *OrderBuilder) ExpiresIn(seconds int64) *OrderBuilder {
	b.params.ExpirationSec = seconds
	return b
}

// Decimals sets the venue precision (6 or 18).
func (b *OrderBuilder) Decimals(decimals int32) *OrderBuilder {
	b.params.Decimals = decimals
	return b
}

func (b *OrderBuilder) Quantize(on bool) *OrderBuilder {
	b.params.Quantize = on
	return b
}

func (b *OrderBuilder) SlippageBps(bps int64) *OrderBuilder {
	b.params.SlippageBps = bps
	return b
}

// TickDecimals sets the price grid precision.
func (b *OrderBuilder) TickDecimals(d int32) *OrderBuilder {
	b.params.PriceDecimals = d
	return b
}

// MinAmountDecimals sets the finest amount precision on the exact path.
func (b *OrderBuilder) MinAmountDecimals(d int32) *OrderBuilder {
	b.params.MinAmountDecimals = d
	return b
}

func (b *OrderBuilder) Salt(gen SaltGenerator) *OrderBuilder {
	b.params.SaltGenerator = gen
	return b
}

// At fixes the clock used for expiration.
func (b *OrderBuilder) At(now time.Time) *OrderBuilder {
	b.params.Now = now
	return b
}

// Params returns the collected parameters.
func (b *OrderBuilder) Params() OrderParams {
	p := b.params
	if b.signer != nil {
		p.Signer = b.signer.Address()
	}
	return p
}

// Build constructs the unsigned order.
func (b *OrderBuilder) Build() (*clobtypes.Order, error) {
	if b.signer == nil {
		return nil, sdkerrors.ErrNoSigningAccount
	}
	return BuildOrder(b.Params())
}
