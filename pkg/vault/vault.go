// Package vault opens and closes two-leg positions atomically through the
// on-chain arbitrage vault.
package vault

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/settlement"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// OpenParams are the arguments of openPosition. Amounts are 6-decimal collateral
// and minimum shares are in outcome-token units.
type OpenParams struct {
	AdapterA   common.Address
	AdapterB   common.Address
	MarketIDA  common.Hash
	MarketIDB  common.Hash
	BuyYesOnA  bool
	AmountA    types.USDC
	AmountB    types.USDC
	MinSharesA *big.Int
	MinSharesB *big.Int
}

// Client is the vault capability used by the engine and the settlement tracker.
type Client interface {
	OpenPosition(ctx context.Context, p OpenParams) (*big.Int, error)
	ClosePosition(ctx context.Context, id *big.Int, minReturn *big.Int) (*big.Int, error)
	VaultBalance(ctx context.Context) (types.USDC, error)
	AllPositions(ctx context.Context) ([]settlement.Position, error)
}

// Contract talks to a deployed vault.
type Contract struct {
	address common.Address
	reader  chain.Reader
	writer  chain.Writer
}

var _ Client = (*Contract)(nil)

// NewContract binds the vault at address. writer may be nil for read-only use.
func NewContract(address common.Address, reader chain.Reader, writer chain.Writer) *Contract {
	return &Contract{address: address, reader: reader, writer: writer}
}

func (c *Contract) Address() common.Address { return c.address }

// OpenPosition buys both legs in one transaction and returns the new position id.
func (c *Contract) OpenPosition(ctx context.Context, p OpenParams) (*big.Int, error) {
	minA, minB := orZero(p.MinSharesA), orZero(p.MinSharesB)
	data, err := ABI.Pack("openPosition",
		p.AdapterA, p.AdapterB,
		[32]byte(p.MarketIDA), [32]byte(p.MarketIDB),
		p.BuyYesOnA,
		p.AmountA.Raw(), p.AmountB.Raw(),
		minA, minB,
	)
	if err != nil {
		return nil, fmt.Errorf("pack openPosition: %w", err)
	}
	receipt, err := c.transact(ctx, data, "openPosition")
	if err != nil {
		return nil, err
	}
	ev := ABI.Events["PositionOpened"]
	log := c.findLog(receipt, ev)
	if log == nil || len(log.Topics) < 2 {
		return nil, fmt.Errorf("openPosition %s: %w: PositionOpened", receipt.TxHash.Hex(), sdkerrors.ErrEventMissing)
	}
	id := new(big.Int).SetBytes(log.Topics[1].Bytes())
	logger.Info("vault: opened position %s (A=%s B=%s)", id, p.AmountA, p.AmountB)
	return id, nil
}

// ClosePosition merges or redeems a resolved position and returns the proceeds.
func (c *Contract) ClosePosition(ctx context.Context, id *big.Int, minReturn *big.Int) (*big.Int, error) {
	data, err := ABI.Pack("closePosition", orZero(id), orZero(minReturn))
	if err != nil {
		return nil, fmt.Errorf("pack closePosition: %w", err)
	}
	receipt, err := c.transact(ctx, data, "closePosition")
	if err != nil {
		return nil, err
	}
	ev := ABI.Events["PositionClosed"]
	log := c.findLog(receipt, ev)
	if log == nil {
		return nil, fmt.Errorf("closePosition %s: %w: PositionClosed", receipt.TxHash.Hex(), sdkerrors.ErrEventMissing)
	}
	values, err := ev.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode PositionClosed: %w", err)
	}
	proceeds, err := chain.Uint256(values, 0)
	if err != nil {
		return nil, err
	}
	return proceeds, nil
}

func (c *Contract) transact(ctx context.Context, data []byte, label string) (*ethtypes.Receipt, error) {
	if c.writer == nil {
		return nil, fmt.Errorf("%s: %w", label, sdkerrors.ErrNoSigningAccount)
	}
	hash, err := c.writer.Transact(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	receipt, err := c.reader.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	if !chain.Succeeded(receipt) {
		return nil, fmt.Errorf("%s %s: %w", label, hash.Hex(), sdkerrors.ErrTxReverted)
	}
	return receipt, nil
}

func (c *Contract) findLog(receipt *ethtypes.Receipt, ev abi.Event) *ethtypes.Log {
	for _, l := range receipt.Logs {
		if l.Address == c.address && len(l.Topics) > 0 && l.Topics[0] == ev.ID {
			return l
		}
	}
	return nil
}

// VaultBalance returns the idle collateral held by the vault.
func (c *Contract) VaultBalance(ctx context.Context) (types.USDC, error) {
	out, err := c.reader.ReadContract(ctx, c.address, ABI, "getVaultBalance")
	if err != nil {
		return types.USDC{}, err
	}
	raw, err := chain.Uint256(out, 0)
	if err != nil {
		return types.USDC{}, err
	}
	return types.USDCFromBig(raw), nil
}

type positionTuple struct {
	AdapterA  common.Address
	AdapterB  common.Address
	MarketIdA [32]byte
	MarketIdB [32]byte
	BuyYesOnA bool
	SharesA   *big.Int
	SharesB   *big.Int
	CostA     *big.Int
	CostB     *big.Int
	OpenedAt  *big.Int
	Closed    bool
}

// AllPositions lists every position. The position id is its index.
func (c *Contract) AllPositions(ctx context.Context) ([]settlement.Position, error) {
	out, err := c.reader.ReadContract(ctx, c.address, ABI, "getAllPositions")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	tuples, ok := abi.ConvertType(out[0], new([]positionTuple)).(*[]positionTuple)
	if !ok {
		return nil, fmt.Errorf("decode getAllPositions: unexpected %T", out[0])
	}
	positions := make([]settlement.Position, 0, len(*tuples))
	for i, t := range *tuples {
		positions = append(positions, settlement.Position{
			ID:        types.U256FromUint64(uint64(i)),
			AdapterA:  t.AdapterA,
			AdapterB:  t.AdapterB,
			MarketIDA: common.Hash(t.MarketIdA),
			MarketIDB: common.Hash(t.MarketIdB),
			BuyYesOnA: t.BuyYesOnA,
			SharesA:   types.NewU256(t.SharesA),
			SharesB:   types.NewU256(t.SharesB),
			CostA:     types.USDCFromBig(t.CostA),
			CostB:     types.USDCFromBig(t.CostB),
			OpenedAt:  time.Unix(orZero(t.OpenedAt).Int64(), 0).UTC(),
			Closed:    t.Closed,
		})
	}
	return positions, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// AdapterResolver asks each leg's adapter contract whether its market resolved.
type AdapterResolver struct {
	Reader chain.Reader
}

var _ settlement.ResolutionChecker = AdapterResolver{}

func (r AdapterResolver) IsResolved(ctx context.Context, adapter common.Address, marketID common.Hash) (bool, error) {
	out, err := r.Reader.ReadContract(ctx, adapter, AdapterABI, "isMarketResolved", [32]byte(marketID))
	if err != nil {
		return false, err
	}
	return chain.Bool(out, 0)
}
