package clob

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
)

var benchSigner auth.Signer

func init() {
	var err error
	benchSigner, err = auth.NewPrivateKeySigner(testKey, 137)
	if err != nil {
		panic(err)
	}
}

func BenchmarkBuildOrderQuantized(b *testing.B) {
	p := OrderParams{
		Signer:      benchSigner.Address(),
		TokenID:     "123456789012345678901234567890",
		Side:        clobtypes.Buy,
		Price:       decimal.RequireFromString("0.55"),
		Size:        decimal.NewFromInt(100),
		Decimals:    6,
		Quantize:    true,
		SlippageBps: 100,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildOrder(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuildOrderExact(b *testing.B) {
	p := OrderParams{
		Signer:   benchSigner.Address(),
		TokenID:  "123456789012345678901234567890",
		Side:     clobtypes.Sell,
		Price:    decimal.RequireFromString("0.3333"),
		Size:     decimal.NewFromInt(100),
		Decimals: 18,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildOrder(p); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSignOrder(b *testing.B) {
	order, err := NewOrderBuilder(benchSigner).
		TokenID("123456789012345678901234567890").
		Side(clobtypes.Buy).
		Price(0.55).
		Size(100).
		Build()
	if err != nil {
		b.Fatal(err)
	}
	domain := Domain{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := SignOrder(benchSigner, order, domain); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSignHMAC(b *testing.B) {
	body := []byte(`{"order":{"salt":"1"},"owner":"k","orderType":"FOK"}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := auth.BuildHMACSignature("dGVzdF9zZWNyZXQ", 1700000000, "POST", "/order", body); err != nil {
			b.Fatal(err)
		}
	}
}
