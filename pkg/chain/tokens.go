package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

const erc20ABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const erc1155ABIJSON = `[
{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`

var (
	ERC20ABI   = mustABI(erc20ABIJSON)
	ERC1155ABI = mustABI(erc1155ABIJSON)
)

func mustABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return &parsed
}

// MustParseABI parses a JSON ABI or panics. For package-level contract definitions.
func MustParseABI(raw string) *abi.ABI {
	return mustABI(raw)
}

// ERC20Balance returns balanceOf(owner).
func ERC20Balance(ctx context.Context, r Reader, token, owner common.Address) (*big.Int, error) {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return Uint256(out, 0)
}

// EnsureERC20Allowance approves spender for the max amount when the allowance is below threshold.
// A reverted approval is logged and not returned.
func EnsureERC20Allowance(ctx context.Context, r Reader, w Writer, token, spender common.Address, threshold *big.Int) error {
	out, err := r.ReadContract(ctx, token, ERC20ABI, "allowance", w.From(), spender)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	current, err := Uint256(out, 0)
	if err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() == 0 {
		threshold = big.NewInt(1)
	}
	if current.Cmp(threshold) >= 0 {
		logger.Debug("allowance for %s on %s already %s", spender.Hex(), token.Hex(), current)
		return nil
	}
	data, err := ERC20ABI.Pack("approve", spender, ethmath.MaxBig256)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	return sendAndConfirm(ctx, r, w, token, data, fmt.Sprintf("approve %s on %s", spender.Hex(), token.Hex()))
}

// EnsureERC1155Approval grants operator blanket approval on an ERC-1155 token contract.
func EnsureERC1155Approval(ctx context.Context, r Reader, w Writer, token, operator common.Address) error {
	out, err := r.ReadContract(ctx, token, ERC1155ABI, "isApprovedForAll", w.From(), operator)
	if err != nil {
		return fmt.Errorf("read approval: %w", err)
	}
	approved, err := Bool(out, 0)
	if err != nil {
		return err
	}
	if approved {
		return nil
	}
	data, err := ERC1155ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return fmt.Errorf("pack setApprovalForAll: %w", err)
	}
	return sendAndConfirm(ctx, r, w, token, data, fmt.Sprintf("setApprovalForAll %s on %s", operator.Hex(), token.Hex()))
}

func sendAndConfirm(ctx context.Context, r Reader, w Writer, to common.Address, data []byte, label string) error {
	hash, err := w.Transact(ctx, to, data)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	receipt, err := r.WaitForReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !Succeeded(receipt) {
		logger.Warn("%s reverted in tx %s", label, hash.Hex())
		return nil
	}
	logger.Info("%s confirmed in tx %s", label, hash.Hex())
	return nil
}

// TokenBalance reports an ERC-20 balance as a 6-decimal collateral amount.
type TokenBalance struct {
	Reader Reader
	Token  common.Address
	Owner  common.Address
	// Decimals of the token. Zero means 6.
	Decimals int32
}

func (b TokenBalance) Balance(ctx context.Context) (types.USDC, error) {
	raw, err := ERC20Balance(ctx, b.Reader, b.Token, b.Owner)
	if err != nil {
		return types.USDC{}, err
	}
	decimals := b.Decimals
	if decimals == 0 {
		decimals = types.USDCDecimals
	}
	return types.USDCFromBig(types.NewAmount(raw, decimals).Rescale(types.USDCDecimals).Raw), nil
}
