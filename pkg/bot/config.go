package bot

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// Mode selects the dispatch path.
type Mode string

const (
	// ModeVault opens both legs atomically through the vault contract.
	ModeVault Mode = "vault"
	// ModeCLOB places one order on each venue's order book.
	ModeCLOB Mode = "clob"
)

// Config controls risk gates and execution behavior.
type Config struct {
	Mode            Mode
	MinSpreadBps    int64
	MaxPositionUSDC decimal.Decimal
	// LiquidityCapBps caps each leg at this share of the thinner book.
	LiquidityCapBps int64
	// MinSharesBps is the slippage floor on shares received.
	MinSharesBps int64
	GasUnits     uint64
	// GasTokenPriceUSDC converts native gas token to collateral.
	GasTokenPriceUSDC decimal.Decimal
	MinProfitUSDC     decimal.Decimal
	CooldownDuration  time.Duration
	ScanInterval      time.Duration
	RequestTimeout    time.Duration
	DryRun            bool
}

func DefaultConfig() Config {
	return Config{
		Mode:              ModeVault,
		MinSpreadBps:      50,
		MaxPositionUSDC:   decimal.NewFromInt(1000),
		LiquidityCapBps:   9000,
		MinSharesBps:      9500,
		GasUnits:          500_000,
		GasTokenPriceUSDC: decimal.RequireFromString("0.5"),
		MinProfitUSDC:     decimal.Zero,
		CooldownDuration:  5 * time.Minute,
		ScanInterval:      10 * time.Second,
		RequestTimeout:    15 * time.Second,
		DryRun:            true,
	}
}

func (c Config) Validate() error {
	if c.Mode != ModeVault && c.Mode != ModeCLOB {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeVault, ModeCLOB, c.Mode)
	}
	if c.MinSpreadBps < 0 {
		return fmt.Errorf("min spread bps must be >= 0")
	}
	if c.MaxPositionUSDC.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("max position must be > 0")
	}
	if c.LiquidityCapBps <= 0 || c.LiquidityCapBps > 10000 {
		return fmt.Errorf("liquidity cap bps must be in (0, 10000]")
	}
	if c.MinSharesBps <= 0 || c.MinSharesBps > 10000 {
		return fmt.Errorf("min shares bps must be in (0, 10000]")
	}
	if c.GasTokenPriceUSDC.LessThan(decimal.Zero) {
		return fmt.Errorf("gas token price must be >= 0")
	}
	if c.MinProfitUSDC.LessThan(decimal.Zero) {
		return fmt.Errorf("min profit must be >= 0")
	}
	if c.CooldownDuration < 0 {
		return fmt.Errorf("cooldown must be >= 0")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0")
	}
	return nil
}

// MaxPosition is MaxPositionUSDC in raw collateral units.
func (c Config) MaxPosition() types.USDC {
	return types.USDCFromDecimal(c.MaxPositionUSDC)
}

// MinProfit is MinProfitUSDC in raw collateral units.
func (c Config) MinProfit() types.USDC {
	return types.USDCFromDecimal(c.MinProfitUSDC)
}

// GasRate is raw collateral per whole native token (1e18 wei).
func (c Config) GasRate() *big.Int {
	return types.USDCFromDecimal(c.GasTokenPriceUSDC).Raw()
}

// MergeEnv overlays ARB_* environment variables. Unparseable values are ignored.
func (c Config) MergeEnv() Config {
	if v := env("ARB_MODE"); v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v := env("ARB_MIN_SPREAD_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.MinSpreadBps = n
		}
	}
	if v := env("ARB_MAX_POSITION_USDC"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.GreaterThan(decimal.Zero) {
			c.MaxPositionUSDC = d
		}
	}
	if v := env("ARB_LIQUIDITY_CAP_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.LiquidityCapBps = n
		}
	}
	if v := env("ARB_MIN_SHARES_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MinSharesBps = n
		}
	}
	if v := env("ARB_GAS_UNITS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.GasUnits = n
		}
	}
	if v := env("ARB_GAS_TOKEN_PRICE_USDC"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.GreaterThanOrEqual(decimal.Zero) {
			c.GasTokenPriceUSDC = d
		}
	}
	if v := env("ARB_MIN_PROFIT_USDC"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.GreaterThanOrEqual(decimal.Zero) {
			c.MinProfitUSDC = d
		}
	}
	if v := env("ARB_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.CooldownDuration = d
		}
	}
	if v := env("ARB_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.ScanInterval = d
		}
	}
	if v := env("ARB_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RequestTimeout = d
		}
	}
	if v := env("ARB_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return c
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// ConfigUpdate changes the live-tunable settings. Nil fields are left alone.
type ConfigUpdate struct {
	MinSpreadBps    *int64
	MaxPositionUSDC *decimal.Decimal
	ScanInterval    *time.Duration
}

func (c Config) apply(u ConfigUpdate) Config {
	if u.MinSpreadBps != nil {
		c.MinSpreadBps = *u.MinSpreadBps
	}
	if u.MaxPositionUSDC != nil {
		c.MaxPositionUSDC = *u.MaxPositionUSDC
	}
	if u.ScanInterval != nil {
		c.ScanInterval = *u.ScanInterval
	}
	return c
}
