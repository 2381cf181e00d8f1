// Package clobtypes defines order-book orders and venue results.
package clobtypes

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide normalizes "buy"/"sell".
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("side must be BUY or SELL, got %q", s)
}

// Uint8 is the EIP-712 encoding of the side.
func (s Side) Uint8() uint8 {
	if s == Sell {
		return 1
	}
	return 0
}

// Strategy picks how the venue should work the order.
type Strategy string

const (
	StrategyMarket Strategy = "MARKET"
	StrategyLimit  Strategy = "LIMIT"
)

// Order is an unsigned exchange order. Every amount is an integer in venue precision.
type Order struct {
	Salt          types.U256     `json:"salt"`
	Maker         common.Address `json:"maker"`
	Signer        common.Address `json:"signer"`
	Taker         common.Address `json:"taker"`
	TokenID       types.U256     `json:"tokenId"`
	MakerAmount   types.U256     `json:"makerAmount"`
	TakerAmount   types.U256     `json:"takerAmount"`
	Expiration    types.U256     `json:"expiration"`
	Nonce         types.U256     `json:"nonce"`
	FeeRateBps    types.U256     `json:"feeRateBps"`
	Side          Side           `json:"side"`
	SignatureType int            `json:"signatureType"`
}

// SignedOrder pairs an order with its 65-byte signature.
type SignedOrder struct {
	Order     Order
	Signature []byte
}

// PlaceOrderRequest is the human-unit request a venue adapter turns into an Order.
type PlaceOrderRequest struct {
	TokenID string
	// MarketID is the venue's own market identifier, when its API wants one.
	MarketID   string
	Side       Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	Strategy   Strategy
	FillOrKill bool
}

// Validate checks the human boundary before any fixed-point work.
func (r PlaceOrderRequest) Validate() error {
	if strings.TrimSpace(r.TokenID) == "" {
		return fmt.Errorf("token id is required")
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("side must be BUY or SELL")
	}
	if r.Price.Sign() <= 0 || r.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("price %s outside (0, 1)", r.Price)
	}
	if r.Size.Sign() <= 0 {
		return fmt.Errorf("size must be positive")
	}
	return nil
}

// StrategyOrDefault treats an empty strategy as MARKET.
func (r PlaceOrderRequest) StrategyOrDefault() Strategy {
	if r.Strategy == "" {
		return StrategyMarket
	}
	return r.Strategy
}

// Placement statuses reported in OrderResult.Status.
const (
	PlacementPlaced = "PLACED"
	PlacementFilled = "FILLED"
	PlacementFailed = "FAILED"
	PlacementDryRun = "DRY_RUN"
)

// OrderResult is returned for every placement, successful or not. Venue rejections are data, not errors.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Filled  decimal.Decimal
	Error   string
}

// Failed builds a rejected result.
func Failed(format string, args ...any) OrderResult {
	return OrderResult{Status: PlacementFailed, Error: fmt.Sprintf(format, args...)}
}

// OrderStatus is the normalized lifecycle state.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusExpired   OrderStatus = "EXPIRED"
	StatusUnknown   OrderStatus = "UNKNOWN"
)

// IsTerminal reports whether the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// OrderStatusResult is a status query answer.
type OrderStatusResult struct {
	OrderID   string
	Status    OrderStatus
	Filled    decimal.Decimal
	Remaining decimal.Decimal
	Raw       string
}

// OpenOrder is a resting order reported by a venue.
type OpenOrder struct {
	OrderID string
	TokenID string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	Filled  decimal.Decimal
}
