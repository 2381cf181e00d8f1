package polyarb

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
	"github.com/GoPolymarket/polymarket-arb/pkg/events"
	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
	"github.com/GoPolymarket/polymarket-arb/pkg/venues/opinion"
	"github.com/GoPolymarket/polymarket-arb/pkg/venues/polymarket"
)

// Config holds the process-wide configuration.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the chain the vault lives on.
	RPCURL     string
	ChainID    int64
	PrivateKey string

	VaultAddress common.Address
	// CTFAddress enables conditional-token resolution checks in order-book mode.
	CTFAddress common.Address
	// Collateral is the wallet token checked before order-book trades.
	Collateral common.Address

	// Venues lists the enabled order-book venues by name.
	Venues     []string
	Opinion    opinion.Config
	Polymarket polymarket.Config
	Engine     bot.Config

	// MarketsFile is a JSON market registry.
	MarketsFile string
	// StateDir holds the pebble store. Empty disables persistence.
	StateDir string

	RedisURL    string
	EventStream string
	EventMaxLen int64

	// MinReturnBps is the close slippage floor applied by the settlement tracker.
	MinReturnBps int64
	// DryRunBalanceUSDC is reported by the simulated vault when no real vault is reachable.
	DryRunBalanceUSDC decimal.Decimal

	Timeout time.Duration
}

// DefaultConfig returns a dry-run configuration with both venues enabled.
func DefaultConfig() Config {
	return Config{
		ChainID:           polymarket.DefaultChainID,
		Collateral:        polymarket.DefaultCollateral,
		Venues:            []string{opinion.Name, polymarket.Name},
		Opinion:           opinion.DefaultConfig(),
		Polymarket:        polymarket.DefaultConfig(),
		Engine:            bot.DefaultConfig(),
		EventStream:       events.DefaultStream,
		EventMaxLen:       10_000,
		MinReturnBps:      9900,
		DryRunBalanceUSDC: decimal.NewFromInt(10_000),
		Timeout:           transport.DefaultTimeout,
	}
}

// ConfigFromEnv overlays ARB_*, OPINION_*, POLYMARKET_* and CLOB_* variables on DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.RPCURL = env("ARB_RPC_URL")
	cfg.PrivateKey = env("ARB_PRIVATE_KEY")
	if v, err := strconv.ParseInt(env("ARB_CHAIN_ID"), 10, 64); err == nil && v > 0 {
		cfg.ChainID = v
	}
	if v := env("ARB_VAULT_ADDRESS"); common.IsHexAddress(v) {
		cfg.VaultAddress = common.HexToAddress(v)
	}
	if v := env("ARB_CTF_ADDRESS"); common.IsHexAddress(v) {
		cfg.CTFAddress = common.HexToAddress(v)
	}
	if v := env("ARB_COLLATERAL"); common.IsHexAddress(v) {
		cfg.Collateral = common.HexToAddress(v)
	}
	if v := env("ARB_VENUES"); v != "" {
		cfg.Venues = splitList(v)
	}
	cfg.Opinion = opinion.ConfigFromEnv()
	cfg.Polymarket = polymarket.ConfigFromEnv()
	cfg.Engine = cfg.Engine.MergeEnv()
	cfg.MarketsFile = env("ARB_MARKETS_FILE")
	cfg.StateDir = env("ARB_STATE_DIR")
	cfg.RedisURL = env("ARB_REDIS_URL")
	if v := env("ARB_EVENT_STREAM"); v != "" {
		cfg.EventStream = v
	}
	if v, err := strconv.ParseInt(env("ARB_MIN_RETURN_BPS"), 10, 64); err == nil && v > 0 && v <= 10000 {
		cfg.MinReturnBps = v
	}
	if v, err := decimal.NewFromString(env("ARB_DRY_RUN_BALANCE_USDC")); err == nil && v.Sign() >= 0 {
		cfg.DryRunBalanceUSDC = v
	}
	if v, err := time.ParseDuration(env("ARB_HTTP_TIMEOUT")); err == nil && v > 0 {
		cfg.Timeout = v
	}
	return cfg
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
