package clob

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
)

const (
	DefaultDomainName = "Polymarket CTF Exchange"
	DomainVersion     = "1"
)

// Domain identifies the exchange contract an order is signed for.
type Domain struct {
	// Name defaults to DefaultDomainName.
	Name              string
	ChainID           *big.Int
	VerifyingContract common.Address
}

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "makerAmount", Type: "uint256"},
		{Name: "takerAmount", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "feeRateBps", Type: "uint256"},
		{Name: "side", Type: "uint8"},
		{Name: "signatureType", Type: "uint8"},
	},
}

// OrderTypedData renders the EIP-712 payload for order under domain.
func OrderTypedData(order *clobtypes.Order, domain Domain) apitypes.TypedData {
	name := domain.Name
	if name == "" {
		name = DefaultDomainName
	}
	chainID := domain.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          strconv.Itoa(int(order.Side.Uint8())),
			"signatureType": strconv.Itoa(order.SignatureType),
		},
	}
}

// SignOrder signs order for the given exchange. A zero domain chain id falls back to the signer's.
func SignOrder(signer auth.Signer, order *clobtypes.Order, domain Domain) (*clobtypes.SignedOrder, error) {
	if signer == nil {
		return nil, sdkerrors.ErrNoSigningAccount
	}
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", sdkerrors.ErrInvalidOrder)
	}
	if order.Signer != signer.Address() {
		return nil, fmt.Errorf("%w: order signer %s does not match key %s", sdkerrors.ErrInvalidOrder, order.Signer.Hex(), signer.Address().Hex())
	}
	if domain.ChainID == nil || domain.ChainID.Sign() == 0 {
		domain.ChainID = signer.ChainID()
	}
	sig, err := signer.SignTypedData(OrderTypedData(order, domain))
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}
	return &clobtypes.SignedOrder{Order: *order, Signature: sig}, nil
}

// WireOrder is the JSON shape venues accept: integers as decimal strings, signature as 0x-hex.
type WireOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// ToWire serializes a signed order.
func ToWire(s *clobtypes.SignedOrder) WireOrder {
	o := s.Order
	return WireOrder{
		Salt:          o.Salt.String(),
		Maker:         o.Maker.Hex(),
		Signer:        o.Signer.Hex(),
		Taker:         o.Taker.Hex(),
		TokenID:       o.TokenID.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		Side:          string(o.Side),
		SignatureType: o.SignatureType,
		Signature:     hexutil.Encode(s.Signature),
	}
}

// ImpliedPrice is currency per share as encoded by the order amounts.
func ImpliedPrice(o *clobtypes.Order) decimal.Decimal {
	currency, shares := o.MakerAmount.Big(), o.TakerAmount.Big()
	if o.Side == clobtypes.Sell {
		currency, shares = shares, currency
	}
	if shares.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(currency, 0).DivRound(decimal.NewFromBigInt(shares, 0), 8)
}
