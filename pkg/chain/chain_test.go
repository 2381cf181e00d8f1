package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/chain/chaintest"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/retry"
)

var (
	usdc     = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	exchange = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	ctfAddr  = common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045")
)

func newWallet(t *testing.T, backend chain.Backend) *chain.Wallet {
	t.Helper()
	signer, err := auth.NewPrivateKeySigner("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", 137)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return chain.NewWallet(backend, signer)
}

func TestReadContractAndBalance(t *testing.T) {
	backend := chaintest.New()
	owner := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	backend.On(usdc, chain.ERC20ABI, "balanceOf", big.NewInt(1_500_000))

	reader := chain.NewClient(backend)
	bal, err := chain.ERC20Balance(context.Background(), reader, usdc, owner)
	if err != nil {
		t.Fatalf("ERC20Balance: %v", err)
	}
	if bal.Int64() != 1_500_000 {
		t.Errorf("unexpected balance %s", bal)
	}

	tb := chain.TokenBalance{Reader: reader, Token: usdc, Owner: owner}
	got, err := tb.Balance(context.Background())
	if err != nil || got.Big().Int64() != 1_500_000 {
		t.Errorf("TokenBalance: %s %v", got, err)
	}

	tb18 := chain.TokenBalance{Reader: reader, Token: usdc, Owner: owner, Decimals: 18}
	backend.On(usdc, chain.ERC20ABI, "balanceOf", new(big.Int).Mul(big.NewInt(2), ethmath.BigPow(10, 18)))
	got, err = tb18.Balance(context.Background())
	if err != nil || got.Big().Int64() != 2_000_000 {
		t.Errorf("18-decimal TokenBalance: %s %v", got, err)
	}
}

func TestReadContractPropagatesErrors(t *testing.T) {
	backend := chaintest.New()
	boom := errors.New("boom")
	backend.OnError(usdc, chain.ERC20ABI, "balanceOf", boom)
	reader := chain.NewClient(backend).WithRetryPolicy(retry.None())
	_, err := chain.ERC20Balance(context.Background(), reader, usdc, common.Address{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEnsureERC20AllowanceApproves(t *testing.T) {
	backend := chaintest.New()
	backend.On(usdc, chain.ERC20ABI, "allowance", big.NewInt(0))
	reader := chain.NewClient(backend)
	wallet := newWallet(t, backend)

	if err := chain.EnsureERC20Allowance(context.Background(), reader, wallet, usdc, exchange, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("EnsureERC20Allowance: %v", err)
	}
	if len(backend.Sent) != 1 {
		t.Fatalf("expected one approval tx, got %d", len(backend.Sent))
	}
	tx := backend.Sent[0]
	if *tx.To() != usdc {
		t.Errorf("approval sent to %s", tx.To().Hex())
	}
	if tx.Gas() != 120_000 {
		t.Errorf("expected gas margin applied, got %d", tx.Gas())
	}
	if tx.ChainId().Int64() != 137 {
		t.Errorf("unexpected chain id %s", tx.ChainId())
	}
}

func TestEnsureERC20AllowanceSkipsWhenSufficient(t *testing.T) {
	backend := chaintest.New()
	backend.On(usdc, chain.ERC20ABI, "allowance", ethmath.MaxBig256)
	if err := chain.EnsureERC20Allowance(context.Background(), chain.NewClient(backend), newWallet(t, backend), usdc, exchange, big.NewInt(1)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(backend.Sent) != 0 {
		t.Errorf("no transaction expected")
	}
}

func TestEnsureERC1155ApprovalRevertIsLogged(t *testing.T) {
	backend := chaintest.New()
	backend.ReceiptStatus = ethtypes.ReceiptStatusFailed
	backend.On(ctfAddr, chain.ERC1155ABI, "isApprovedForAll", false)

	err := chain.EnsureERC1155Approval(context.Background(), chain.NewClient(backend), newWallet(t, backend), ctfAddr, exchange)
	if err != nil {
		t.Fatalf("revert must not be returned: %v", err)
	}
	if len(backend.Sent) != 1 {
		t.Errorf("expected approval attempt")
	}
}

func TestWalletWithoutSigner(t *testing.T) {
	w := chain.NewWallet(chaintest.New(), nil)
	if _, err := w.Transact(context.Background(), usdc, nil); !errors.Is(err, sdkerrors.ErrNoSigningAccount) {
		t.Fatalf("expected ErrNoSigningAccount, got %v", err)
	}
}
