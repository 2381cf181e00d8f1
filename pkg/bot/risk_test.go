package bot

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

func TestAmountPerSide(t *testing.T) {
	max := types.NewUSDC(1_000_000_000)
	tests := []struct {
		name       string
		max        types.USDC
		liqA, liqB int64
		want       int64
	}{
		{"thin A", max, 100_000, 1_000_000_000_000, 90_000},
		{"thin B", max, 500_000_000, 200_000, 180_000},
		{"max binds", types.NewUSDC(50_000), 1_000_000, 1_000_000, 50_000},
		{"dust liquidity", max, 1, 1_000_000, 0},
		{"floors", max, 11, 1_000_000, 9},
		{"zero liquidity", max, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AmountPerSide(tt.max, types.NewUSDC(tt.liqA), types.NewUSDC(tt.liqB), 9000)
			if got.Big().Int64() != tt.want {
				t.Fatalf("AmountPerSide = %s, want %d", got.Big(), tt.want)
			}
		})
	}
}

func TestAmountPerSideNeverExceedsCap(t *testing.T) {
	max := types.NewUSDC(1_000_000_000)
	for liq := int64(1); liq < 5_000_000; liq = liq*3 + 7 {
		got := AmountPerSide(max, types.NewUSDC(liq), types.NewUSDC(liq*2), 9000).Big()
		limit := big.NewInt(liq * 9 / 10)
		if got.Cmp(limit) > 0 || got.Cmp(max.Big()) > 0 {
			t.Fatalf("liq=%d: amount %s exceeds %s", liq, got, limit)
		}
	}
}

func TestMinShares(t *testing.T) {
	tests := []struct {
		amount int64
		price  string
		want   int64
	}{
		{500_000_000, "0.4", 1_187_500_000},
		{90_000, "0.40", 213_750},
		{90_000, "0.55", 155_454},
		{1, "0.99", 0},
	}
	for _, tt := range tests {
		got := MinShares(types.NewUSDC(tt.amount), price(tt.price), 9500)
		if got.Int64() != tt.want {
			t.Errorf("MinShares(%d @ %s) = %s, want %d", tt.amount, tt.price, got, tt.want)
		}
	}
	if MinShares(types.NewUSDC(1), types.Price{}, 9500).Sign() != 0 {
		t.Error("zero price must yield zero shares")
	}
}

func TestGasGate(t *testing.T) {
	// 30 gwei × 500k units at 0.5 collateral per token = 0.0075.
	cost := GasCost(big.NewInt(30_000_000_000), 500_000, big.NewInt(500_000))
	if cost.Int64() != 7_500 {
		t.Fatalf("GasCost = %s, want 7500", cost)
	}
	zero := types.NewUSDC(0)
	if Profitable(types.NewUSDC(7_500), cost, zero) {
		t.Error("profit equal to gas must be skipped")
	}
	if !Profitable(types.NewUSDC(7_501), cost, zero) {
		t.Error("profit above gas must pass")
	}
	if Profitable(types.NewUSDC(8_000), cost, types.NewUSDC(500)) {
		t.Error("min profit not applied")
	}
}

func TestEvaluateRisk(t *testing.T) {
	ctx := context.Background()
	max := types.NewUSDC(1_000_000_000)

	t.Run("gas oracle failure proceeds", func(t *testing.T) {
		e := mustEngine(t, testConfig(ModeVault), WithVault(newFakeVault()), WithGasOracle(fakeGas{err: errors.New("rpc down")}))
		snap := e.EvaluateRisk(ctx, testOpportunity(), max)
		if !snap.CanTrade || snap.GasCost != nil {
			t.Fatalf("expected fail-open, got %+v", snap)
		}
	})

	t.Run("unprofitable after gas", func(t *testing.T) {
		opp := testOpportunity()
		opp.EstimatedProfit = types.NewUSDC(7_500)
		e := mustEngine(t, testConfig(ModeVault), WithVault(newFakeVault()), WithGasOracle(fakeGas{price: big.NewInt(30_000_000_000)}))
		snap := e.EvaluateRisk(ctx, opp, max)
		if snap.CanTrade || snap.Reason != "unprofitable after gas" {
			t.Fatalf("expected gas skip, got %+v", snap)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		v := newFakeVault()
		v.balance = types.NewUSDC(899_999_999)
		e := mustEngine(t, testConfig(ModeVault), WithVault(v))
		snap := e.EvaluateRisk(ctx, testOpportunity(), max)
		if snap.CanTrade || snap.Reason != "insufficient balance" {
			t.Fatalf("expected balance skip, got %+v", snap)
		}
	})

	t.Run("balance read failure skips", func(t *testing.T) {
		v := newFakeVault()
		v.balanceErr = errors.New("timeout")
		e := mustEngine(t, testConfig(ModeVault), WithVault(v))
		if snap := e.EvaluateRisk(ctx, testOpportunity(), max); snap.CanTrade {
			t.Fatal("expected skip on balance error")
		}
	})

	t.Run("wallet balance in clob mode", func(t *testing.T) {
		e := mustEngine(t, testConfig(ModeCLOB), WithBalance(fakeBalance{value: types.NewUSDC(100)}))
		if snap := e.EvaluateRisk(ctx, testOpportunity(), max); snap.CanTrade {
			t.Fatal("expected wallet balance to gate clob mode")
		}
	})

	t.Run("no balance source", func(t *testing.T) {
		e := mustEngine(t, testConfig(ModeCLOB))
		snap := e.EvaluateRisk(ctx, testOpportunity(), max)
		if !snap.CanTrade || snap.AmountPerSide.Big().Int64() != 450_000_000 {
			t.Fatalf("unexpected %+v", snap)
		}
	})
}
