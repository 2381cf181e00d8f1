package clob

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testSigner = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")

func fixedSalt() (*big.Int, error) { return big.NewInt(42), nil }

func params(side clobtypes.Side, price, size string, decimals int32) OrderParams {
	return OrderParams{
		Signer:        testSigner,
		TokenID:       "123456789012345678901234567890",
		Side:          side,
		Price:         decimal.RequireFromString(price),
		Size:          decimal.RequireFromString(size),
		Decimals:      decimals,
		SaltGenerator: fixedSalt,
	}
}

func amounts(t *testing.T, p OrderParams) (*big.Int, *big.Int) {
	t.Helper()
	order, err := BuildOrder(p)
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	return order.MakerAmount.Big(), order.TakerAmount.Big()
}

func TestBuildOrderQuantized(t *testing.T) {
	tests := []struct {
		name        string
		side        clobtypes.Side
		price, size string
		slippage    int64
		maker       int64
		taker       int64
	}{
		{"buy no slippage", clobtypes.Buy, "0.55", "10", 0, 9_999_000, 18_180_000},
		{"buy with slippage lands on tick", clobtypes.Buy, "0.55", "10", 100, 10_098_990, 18_180_000},
		{"buy with slippage rounds tick up", clobtypes.Buy, "0.37", "5", 50, 5_024_369, 13_510_000},
		{"sell with slippage", clobtypes.Sell, "0.55", "10", 100, 18_180_000, 9_899_010},
		{"buy capped at one per share", clobtypes.Buy, "0.999", "10", 500, 10_010_000, 10_010_000},
		{"sell floored at zero", clobtypes.Sell, "0.5", "10", 10_000, 20_000_000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := params(tc.side, tc.price, tc.size, 6)
			p.Quantize = true
			p.SlippageBps = tc.slippage
			maker, taker := amounts(t, p)
			if maker.Int64() != tc.maker || taker.Int64() != tc.taker {
				t.Errorf("got maker=%s taker=%s, want %d/%d", maker, taker, tc.maker, tc.taker)
			}
		})
	}
}

func TestBuildOrderQuantizedStaysOnTickGrid(t *testing.T) {
	tickDen := big.NewInt(10_000)
	prices := []string{"0.01", "0.137", "0.2501", "0.5", "0.6666", "0.83", "0.99"}
	sizes := []string{"1", "3.3", "17.77", "250", "1234.56"}
	for _, price := range prices {
		for _, size := range sizes {
			for _, side := range []clobtypes.Side{clobtypes.Buy, clobtypes.Sell} {
				p := params(side, price, size, 6)
				p.Quantize = true
				p.SlippageBps = 75
				maker, taker := amounts(t, p)
				currency, shares := maker, taker
				if side == clobtypes.Sell {
					currency, shares = taker, maker
				}
				if new(big.Int).Rem(shares, big.NewInt(10_000)).Sign() != 0 {
					t.Errorf("%s %s@%s: shares %s not on 0.01 step", side, size, price, shares)
				}
				if new(big.Int).Rem(new(big.Int).Mul(currency, tickDen), shares).Sign() != 0 {
					t.Errorf("%s %s@%s: implied price %s/%s off tick grid", side, size, price, currency, shares)
				}
				if side == clobtypes.Buy && maker.Cmp(taker) > 0 {
					t.Errorf("buy maker %s exceeds taker %s", maker, taker)
				}
			}
		}
	}
}

func TestBuildOrderExactDerivation(t *testing.T) {
	wad, _ := new(big.Int).SetString("1000000000000000000", 10)

	p := params(clobtypes.Buy, "0.4", "100", 18)
	maker, taker := amounts(t, p)
	if maker.String() != "100000000000000000000" || taker.String() != "250000000000000000000" {
		t.Fatalf("unexpected buy amounts %s/%s", maker, taker)
	}
	p.Side = clobtypes.Sell
	maker, taker = amounts(t, p)
	if maker.String() != "250000000000000000000" || taker.String() != "100000000000000000000" {
		t.Fatalf("unexpected sell amounts %s/%s", maker, taker)
	}

	prices := []string{"0.0001", "0.013", "0.3333", "0.4", "0.5", "0.6667", "0.7531", "0.9999"}
	sizes := []string{"1", "2.5", "10", "99.99", "1000"}
	for _, price := range prices {
		priceAsInt := decimal.RequireFromString(price).Shift(18).BigInt()
		for _, size := range sizes {
			p := params(clobtypes.Sell, price, size, 18)
			maker, taker := amounts(t, p)
			lhs := new(big.Int).Mul(taker, wad)
			rhs := new(big.Int).Mul(maker, priceAsInt)
			if lhs.Cmp(rhs) != 0 {
				t.Errorf("sell %s@%s: taker*scale %s != maker*price %s", size, price, lhs, rhs)
			}

			p.Side = clobtypes.Buy
			maker, taker = amounts(t, p)
			lhs = new(big.Int).Mul(maker, wad)
			rhs = new(big.Int).Mul(taker, priceAsInt)
			if lhs.Cmp(rhs) != 0 {
				t.Errorf("buy %s@%s: maker*scale %s != taker*price %s", size, price, lhs, rhs)
			}
			if new(big.Int).Rem(maker, big.NewInt(1_000_000_000_000)).Sign() != 0 {
				t.Errorf("buy %s@%s: maker %s finer than 6 decimals", size, price, maker)
			}
		}
	}
}

func TestBuildOrderExactRejectsOffGridPrice(t *testing.T) {
	for _, price := range []string{"0.41237", "0.123456789", "0.412370000000000001"} {
		for _, side := range []clobtypes.Side{clobtypes.Buy, clobtypes.Sell} {
			if _, err := BuildOrder(params(side, price, "100", 18)); !errors.Is(err, sdkerrors.ErrInvalidPrice) {
				t.Errorf("%s @%s: got %v, want ErrInvalidPrice", side, price, err)
			}
		}
	}
}

func TestSnapPrice(t *testing.T) {
	tests := []struct {
		side  clobtypes.Side
		price string
		want  string
		err   error
	}{
		{clobtypes.Buy, "0.41237", "0.4123", nil},
		{clobtypes.Sell, "0.41237", "0.4124", nil},
		{clobtypes.Buy, "0.123456789", "0.1234", nil},
		{clobtypes.Buy, "0.4", "0.4", nil},
		{clobtypes.Sell, "0.4", "0.4", nil},
		{clobtypes.Buy, "0.00003", "", sdkerrors.ErrInvalidPrice},
		{clobtypes.Sell, "0.99995", "", sdkerrors.ErrInvalidPrice},
	}
	for _, tc := range tests {
		got, err := SnapPrice(tc.side, decimal.RequireFromString(tc.price), 0)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("%s %s: got %v, want %v", tc.side, tc.price, err, tc.err)
			}
			continue
		}
		if err != nil || !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s %s: got %s %v, want %s", tc.side, tc.price, got, err, tc.want)
		}
	}
}

func TestBuildOrderExactDerivationFromQuotes(t *testing.T) {
	wad := types.Pow10(18)
	// Quotes as an 18-decimal opportunity carries them, not only on the tick grid.
	quotes := []string{"0.41237", "0.123456789", "0.55", "0.399999999999999999", "0.000150000000000001", "0.98765"}
	sizes := []string{"1", "90", "99.99", "1000"}
	for _, quote := range quotes {
		q := decimal.RequireFromString(quote)
		for _, side := range []clobtypes.Side{clobtypes.Buy, clobtypes.Sell} {
			price, err := SnapPrice(side, q, 0)
			if err != nil {
				t.Fatalf("SnapPrice %s %s: %v", side, quote, err)
			}
			if side == clobtypes.Buy && price.GreaterThan(q) {
				t.Errorf("buy snap %s above quote %s", price, q)
			}
			if side == clobtypes.Sell && price.LessThan(q) {
				t.Errorf("sell snap %s below quote %s", price, q)
			}
			priceAsInt := price.Shift(18).BigInt()
			for _, size := range sizes {
				p := params(side, quote, size, 18)
				p.Price = price
				maker, taker := amounts(t, p)
				currency, shares := maker, taker
				if side == clobtypes.Sell {
					currency, shares = taker, maker
				}
				lhs := new(big.Int).Mul(currency, wad)
				rhs := new(big.Int).Mul(shares, priceAsInt)
				if lhs.Cmp(rhs) != 0 {
					t.Errorf("%s %s@%s: currency*scale %s != shares*price %s", side, size, price, lhs, rhs)
				}
			}
		}
	}
}

func TestBuildOrderCoarsePriceStep(t *testing.T) {
	maker, taker := amounts(t, params(clobtypes.Buy, "0.3333", "10", 18))
	if maker.String() != "9999000000000000000" || taker.String() != "30000000000000000000" {
		t.Errorf("unexpected amounts %s/%s", maker, taker)
	}
}

func TestBuildOrderFields(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := params(clobtypes.Buy, "0.5", "10", 6)
	p.Now = now
	p.ExpirationSec = 60
	p.Nonce = 7
	p.FeeRateBps = 10
	order, err := BuildOrder(p)
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	if order.Salt.Big().Int64() != 42 {
		t.Errorf("salt not taken from generator")
	}
	if order.Taker != (common.Address{}) {
		t.Errorf("taker must be zero")
	}
	if order.Maker != testSigner || order.Signer != testSigner {
		t.Errorf("maker/signer should default to signer")
	}
	if order.Expiration.Big().Int64() != 1_700_000_060 {
		t.Errorf("unexpected expiration %s", order.Expiration)
	}
	if order.Nonce.Big().Int64() != 7 || order.FeeRateBps.Big().Int64() != 10 {
		t.Errorf("nonce/fee not propagated")
	}

	p.ExpirationSec = 0
	order, _ = BuildOrder(p)
	if !order.Expiration.IsZero() {
		t.Errorf("zero expiration seconds should mean no expiry")
	}
}

func TestBuildOrderRandomSalt(t *testing.T) {
	p := params(clobtypes.Buy, "0.5", "10", 6)
	p.SaltGenerator = nil
	a, err := BuildOrder(p)
	if err != nil {
		t.Fatalf("BuildOrder: %v", err)
	}
	b, _ := BuildOrder(p)
	if a.Salt.Big().Cmp(b.Salt.Big()) == 0 {
		t.Errorf("salts should differ")
	}
}

func TestBuildOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OrderParams)
		want   error
	}{
		{"zero price", func(p *OrderParams) { p.Price = decimal.Zero }, sdkerrors.ErrInvalidPrice},
		{"price one", func(p *OrderParams) { p.Price = decimal.NewFromInt(1) }, sdkerrors.ErrInvalidPrice},
		{"zero size", func(p *OrderParams) { p.Size = decimal.Zero }, sdkerrors.ErrInvalidSize},
		{"no signer", func(p *OrderParams) { p.Signer = common.Address{} }, sdkerrors.ErrNoSigningAccount},
		{"bad token", func(p *OrderParams) { p.TokenID = "abc" }, sdkerrors.ErrInvalidOrder},
		{"bad decimals", func(p *OrderParams) { p.Decimals = 2 }, sdkerrors.ErrInvalidOrder},
		{"safe without maker", func(p *OrderParams) { p.SignatureType = auth.SignatureGnosisSafe }, sdkerrors.ErrInvalidOrder},
		{"exact path dust", func(p *OrderParams) { p.Decimals = 18; p.Size = decimal.RequireFromString("0.000001") }, sdkerrors.ErrAmountTooSmall},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := params(clobtypes.Buy, "0.4", "10", 6)
			tc.mutate(&p)
			if _, err := BuildOrder(p); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOrderBuilderFluent(t *testing.T) {
	signer, err := auth.NewPrivateKeySigner(testKey, 56)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	safe := common.HexToAddress("0x1111111111111111111111111111111111111111")
	order, err := NewOrderBuilder(signer).
		TokenID("99").
		Side(clobtypes.Sell).
		Price(0.4).
		Size(100).
		Decimals(types.PriceDecimals).
		Maker(safe).
		SignatureType(auth.SignatureGnosisSafe).
		Nonce(3).
		Salt(fixedSalt).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if order.Maker != safe || order.SignatureType != int(auth.SignatureGnosisSafe) {
		t.Errorf("maker override not applied")
	}
	if order.MakerAmount.String() != "250000000000000000000" {
		t.Errorf("unexpected maker amount %s", order.MakerAmount)
	}

	if _, err := NewOrderBuilder(nil).TokenID("1").Build(); !errors.Is(err, sdkerrors.ErrNoSigningAccount) {
		t.Errorf("nil signer should fail with ErrNoSigningAccount, got %v", err)
	}
}
