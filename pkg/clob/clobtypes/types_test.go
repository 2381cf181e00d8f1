package clobtypes

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	if s, err := ParseSide(" buy "); err != nil || s != Buy {
		t.Errorf("buy: %v %v", s, err)
	}
	if s, _ := ParseSide("SELL"); s.Uint8() != 1 {
		t.Errorf("sell should encode as 1")
	}
	if _, err := ParseSide("hold"); err == nil {
		t.Errorf("expected error")
	}
}

func TestPlaceOrderRequestValidate(t *testing.T) {
	ok := PlaceOrderRequest{TokenID: "1", Side: Buy, Price: decimal.RequireFromString("0.4"), Size: decimal.NewFromInt(10)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if ok.StrategyOrDefault() != StrategyMarket {
		t.Errorf("empty strategy should default to MARKET")
	}
	cases := map[string]PlaceOrderRequest{
		"price one":  {TokenID: "1", Side: Buy, Price: decimal.NewFromInt(1), Size: decimal.NewFromInt(1)},
		"price zero": {TokenID: "1", Side: Buy, Price: decimal.Zero, Size: decimal.NewFromInt(1)},
		"no size":    {TokenID: "1", Side: Sell, Price: decimal.RequireFromString("0.5")},
		"no token":   {Side: Sell, Price: decimal.RequireFromString("0.5"), Size: decimal.NewFromInt(1)},
	}
	for name, req := range cases {
		if err := req.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusFilled, StatusCancelled, StatusExpired} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusOpen, StatusUnknown} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
