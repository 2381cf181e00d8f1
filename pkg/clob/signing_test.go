package clob

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
)

var exchange = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")

func builtOrder(t *testing.T, signer auth.Signer) *clobtypes.Order {
	t.Helper()
	order, err := NewOrderBuilder(signer).
		TokenID("123456789012345678901234567890").
		Side(clobtypes.Buy).
		Price(0.55).
		Size(10).
		Quantize(true).
		Nonce(4).
		Salt(fixedSalt).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return order
}

func TestSignOrderRecoversSigner(t *testing.T) {
	signer, err := auth.NewPrivateKeySigner(testKey, 137)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	order := builtOrder(t, signer)
	domain := Domain{VerifyingContract: exchange}

	signed, err := SignOrder(signer, order, domain)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if len(signed.Signature) != 65 {
		t.Fatalf("signature length %d", len(signed.Signature))
	}
	if v := signed.Signature[64]; v != 27 && v != 28 {
		t.Errorf("recovery byte %d not in {27,28}", v)
	}

	domain.ChainID = big.NewInt(137)
	recovered, err := auth.RecoverTypedData(OrderTypedData(order, domain), signed.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	// A different domain name must not verify.
	other := domain
	other.Name = "OPINION CTF Exchange"
	recovered, err = auth.RecoverTypedData(OrderTypedData(order, other), signed.Signature)
	if err == nil && recovered == signer.Address() {
		t.Errorf("signature verified under the wrong domain")
	}
}

func TestSignOrderRejectsMismatch(t *testing.T) {
	signer, _ := auth.NewPrivateKeySigner(testKey, 137)
	order := builtOrder(t, signer)

	if _, err := SignOrder(nil, order, Domain{}); !errors.Is(err, sdkerrors.ErrNoSigningAccount) {
		t.Errorf("nil signer: got %v", err)
	}
	order.Signer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	if _, err := SignOrder(signer, order, Domain{}); !errors.Is(err, sdkerrors.ErrInvalidOrder) {
		t.Errorf("signer mismatch: got %v", err)
	}
}

func TestToWire(t *testing.T) {
	signer, _ := auth.NewPrivateKeySigner(testKey, 137)
	signed, err := SignOrder(signer, builtOrder(t, signer), Domain{VerifyingContract: exchange})
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	wire := ToWire(signed)
	if wire.MakerAmount != "9999000" || wire.TakerAmount != "18180000" {
		t.Errorf("unexpected wire amounts %s/%s", wire.MakerAmount, wire.TakerAmount)
	}
	if wire.Side != "BUY" || wire.Nonce != "4" || wire.Salt != "42" {
		t.Errorf("unexpected wire fields %+v", wire)
	}
	if len(wire.Signature) != 132 {
		t.Errorf("signature hex length %d", len(wire.Signature))
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["makerAmount"].(string); !ok {
		t.Errorf("amounts must be JSON strings")
	}
}

func TestImpliedPrice(t *testing.T) {
	signer, _ := auth.NewPrivateKeySigner(testKey, 137)
	order := builtOrder(t, signer)
	if got := ImpliedPrice(order).String(); got != "0.55" {
		t.Errorf("implied price %s", got)
	}
}
