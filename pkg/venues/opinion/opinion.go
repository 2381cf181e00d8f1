// Package opinion is the venue adapter for the Opinion order book.
//
// Orders are 18-decimal, use the exact amount derivation path and are signed
// for a Gnosis Safe maker. REST calls authenticate with an apikey header.
package opinion

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-arb/pkg/auth"
	"github.com/GoPolymarket/polymarket-arb/pkg/chain"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/cloberrors"
	"github.com/GoPolymarket/polymarket-arb/pkg/clob/clobtypes"
	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
	"github.com/GoPolymarket/polymarket-arb/pkg/logger"
	"github.com/GoPolymarket/polymarket-arb/pkg/retry"
	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
	"github.com/GoPolymarket/polymarket-arb/pkg/types"
)

const (
	Name           = "opinion"
	DefaultBaseURL = "https://proxy.opinion.trade:8443"
	DefaultChainID = 56
	DomainName     = "OPINION CTF Exchange"
)

// Venue status codes.
const (
	statusPending  = 1
	statusFinished = 2
	statusCanceled = 3
	statusExpired  = 4
	statusFailed   = 5
)

// Trading methods.
const (
	methodMarket = 1
	methodLimit  = 2
)

// Config holds venue endpoints, contracts and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	ChainID int64
	// Exchange is the EIP-712 verifying contract and the approval spender.
	Exchange common.Address
	// Collateral is the ERC-20 quote token.
	Collateral common.Address
	// ConditionalTokens is the ERC-1155 outcome token contract.
	ConditionalTokens common.Address
	// Multisig is the Gnosis Safe that funds orders.
	Multisig   common.Address
	FeeRateBps int64
	Timeout    time.Duration
	ReadPolicy retry.Policy
}

// DefaultConfig returns mainnet defaults without credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		ChainID:    DefaultChainID,
		Timeout:    transport.DefaultTimeout,
		ReadPolicy: retry.DefaultPolicy(),
	}
}

// ConfigFromEnv overlays OPINION_* environment variables on DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("OPINION_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.APIKey = os.Getenv("OPINION_API_KEY")
	if v, err := strconv.ParseInt(os.Getenv("OPINION_CHAIN_ID"), 10, 64); err == nil && v > 0 {
		cfg.ChainID = v
	}
	if v := os.Getenv("OPINION_EXCHANGE"); common.IsHexAddress(v) {
		cfg.Exchange = common.HexToAddress(v)
	}
	if v := os.Getenv("OPINION_COLLATERAL"); common.IsHexAddress(v) {
		cfg.Collateral = common.HexToAddress(v)
	}
	if v := os.Getenv("OPINION_CONDITIONAL_TOKENS"); common.IsHexAddress(v) {
		cfg.ConditionalTokens = common.HexToAddress(v)
	}
	if v := os.Getenv("OPINION_MULTISIG"); common.IsHexAddress(v) {
		cfg.Multisig = common.HexToAddress(v)
	}
	return cfg
}

// Adapter implements clob.Venue for Opinion.
type Adapter struct {
	cfg    Config
	http   *transport.Client
	signer auth.Signer
	writer chain.Writer
	nonce  clob.NonceTracker
	now    func() time.Time
}

// New builds an adapter. writer may be nil when approvals are not needed.
func New(cfg Config, signer auth.Signer, writer chain.Writer, doer transport.Doer) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.ReadPolicy.MaxAttempts == 0 {
		cfg.ReadPolicy = retry.DefaultPolicy()
	}
	httpClient := transport.NewClient(doer, cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	return &Adapter{cfg: cfg, http: httpClient, signer: signer, writer: writer, now: time.Now}
}

var _ clob.Venue = (*Adapter)(nil)

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Nonce() uint64 { return a.nonce.Current() }

func (a *Adapter) SetNonce(n uint64) { a.nonce.Set(n) }

func (a *Adapter) AdvanceNonce() uint64 { return a.nonce.Advance() }

// Authenticate checks that an API key and a signing account are configured.
// Opinion has no session bootstrap.
func (a *Adapter) Authenticate(context.Context) error {
	if a.signer == nil {
		return sdkerrors.ErrNoSigningAccount
	}
	if a.cfg.APIKey == "" {
		return fmt.Errorf("%w: opinion api key", sdkerrors.ErrMissingCredentials)
	}
	return nil
}

func (a *Adapter) headers() http.Header {
	return http.Header{"apikey": {a.cfg.APIKey}}
}

type envelope[T any] struct {
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
	Result T      `json:"result"`
}

type orderData struct {
	OrderID     string          `json:"orderId"`
	Status      int             `json:"status"`
	Filled      string          `json:"filled"`
	TokenID     string          `json:"tokenId"`
	Side        int             `json:"side"`
	Price       decimal.Decimal `json:"price"`
	OrderShares decimal.Decimal `json:"orderShares"`
}

type orderResult struct {
	OrderData orderData `json:"orderData"`
}

type listResult struct {
	List []orderData `json:"list"`
}

type placeRequest struct {
	clob.WireOrder
	Side          string `json:"side"`
	SignatureType string `json:"signatureType"`
	Price         string `json:"price"`
	TradingMethod int    `json:"tradingMethod"`
	Timestamp     int64  `json:"timestamp"`
	MarketID      int64  `json:"marketId"`
}

// PlaceOrder builds, signs and submits one order. It is never retried.
func (a *Adapter) PlaceOrder(ctx context.Context, req clobtypes.PlaceOrderRequest) clobtypes.OrderResult {
	if err := req.Validate(); err != nil {
		return clobtypes.Failed("%v", err)
	}
	if a.signer == nil {
		return clobtypes.Failed("%v", sdkerrors.ErrNoSigningAccount)
	}
	var marketID int64
	if req.MarketID != "" {
		id, err := strconv.ParseInt(req.MarketID, 10, 64)
		if err != nil {
			return clobtypes.Failed("invalid opinion market id %q", req.MarketID)
		}
		marketID = id
	}
	price, err := clob.SnapPrice(req.Side, req.Price, 0)
	if err != nil {
		return clobtypes.Failed("%v", err)
	}

	order, err := clob.BuildOrder(clob.OrderParams{
		Maker:         a.cfg.Multisig,
		Signer:        a.signer.Address(),
		TokenID:       req.TokenID,
		Side:          req.Side,
		Price:         price,
		Size:          req.Size,
		FeeRateBps:    a.cfg.FeeRateBps,
		Nonce:         a.nonce.Current(),
		SignatureType: auth.SignatureGnosisSafe,
		Decimals:      types.PriceDecimals,
	})
	if err != nil {
		return clobtypes.Failed("build order: %v", err)
	}
	signed, err := clob.SignOrder(a.signer, order, a.domain())
	if err != nil {
		return clobtypes.Failed("%v", err)
	}

	method := methodMarket
	if req.StrategyOrDefault() == clobtypes.StrategyLimit {
		method = methodLimit
	}
	body := placeRequest{
		WireOrder:     clob.ToWire(signed),
		Side:          strconv.Itoa(int(req.Side.Uint8())),
		SignatureType: strconv.Itoa(order.SignatureType),
		Price:         price.String(),
		TradingMethod: method,
		Timestamp:     a.now().Unix(),
		MarketID:      marketID,
	}

	var resp envelope[orderResult]
	if err := a.http.Post(ctx, "/openapi/order", body, a.headers(), &resp); err != nil {
		return clobtypes.Failed("%v", cloberrors.FromStatus(err))
	}
	if resp.Errno != 0 {
		return clobtypes.Failed("%v", cloberrors.FromMessage(resp.Errno, resp.Errmsg))
	}
	a.nonce.Advance()

	data := resp.Result.OrderData
	filled, _, _ := parseProgress(data.Filled)
	status := clobtypes.PlacementPlaced
	if data.Status == statusFinished {
		status = clobtypes.PlacementFilled
	}
	logger.Info("opinion: placed %s %s size=%s price=%s id=%s status=%s", req.Side, req.TokenID, req.Size, price, data.OrderID, status)
	return clobtypes.OrderResult{Success: true, OrderID: data.OrderID, Status: status, Filled: filled}
}

func (a *Adapter) domain() clob.Domain {
	return clob.Domain{
		Name:              DomainName,
		ChainID:           big.NewInt(a.cfg.ChainID),
		VerifyingContract: a.cfg.Exchange,
	}
}

// CancelOrder reports true only when the request succeeded and errno is 0.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var resp envelope[any]
	if err := a.http.Post(ctx, "/openapi/order/cancel", map[string]string{"orderId": orderID}, a.headers(), &resp); err != nil {
		return false, cloberrors.FromStatus(err)
	}
	if resp.Errno != 0 {
		logger.Warn("opinion: cancel %s rejected: %d %s", orderID, resp.Errno, resp.Errmsg)
		return false, nil
	}
	return true, nil
}

// OrderStatus maps the numeric venue status onto the normalized vocabulary.
func (a *Adapter) OrderStatus(ctx context.Context, orderID string) (clobtypes.OrderStatusResult, error) {
	resp, err := retry.Value(ctx, a.cfg.ReadPolicy, "opinion order status", func(ctx context.Context) (envelope[orderResult], error) {
		var out envelope[orderResult]
		err := a.http.Get(ctx, "/openapi/order/"+url.PathEscape(orderID), nil, a.headers(), &out)
		return out, err
	})
	if err != nil {
		return clobtypes.OrderStatusResult{}, cloberrors.FromStatus(err)
	}
	if resp.Errno != 0 {
		return clobtypes.OrderStatusResult{}, cloberrors.FromMessage(resp.Errno, resp.Errmsg)
	}
	return statusResult(orderID, resp.Result.OrderData), nil
}

func statusResult(orderID string, data orderData) clobtypes.OrderStatusResult {
	out := clobtypes.OrderStatusResult{OrderID: orderID, Raw: strconv.Itoa(data.Status)}
	filled, total, ok := parseProgress(data.Filled)
	if !ok {
		out.Status = clobtypes.StatusUnknown
		out.Filled = decimal.Zero
		out.Remaining = decimal.Zero
		return out
	}
	out.Status = mapStatus(data.Status)
	out.Filled = filled
	out.Remaining = total.Sub(filled)
	return out
}

// mapStatus folds failed orders into CANCELLED.
func mapStatus(code int) clobtypes.OrderStatus {
	switch code {
	case statusPending:
		return clobtypes.StatusOpen
	case statusFinished:
		return clobtypes.StatusFilled
	case statusCanceled, statusFailed:
		return clobtypes.StatusCancelled
	case statusExpired:
		return clobtypes.StatusExpired
	}
	return clobtypes.StatusUnknown
}

// parseProgress splits a "filled/total" string.
func parseProgress(s string) (filled, total decimal.Decimal, ok bool) {
	left, right, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return decimal.Zero, decimal.Zero, false
	}
	filled, err := decimal.NewFromString(strings.TrimSpace(left))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	total, err = decimal.NewFromString(strings.TrimSpace(right))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return filled, total, true
}

// OpenOrders lists pending orders on the configured chain.
func (a *Adapter) OpenOrders(ctx context.Context) ([]clobtypes.OpenOrder, error) {
	q := url.Values{}
	q.Set("status", strconv.Itoa(statusPending))
	q.Set("chainId", strconv.FormatInt(a.cfg.ChainID, 10))
	q.Set("page", "1")
	q.Set("limit", "50")
	resp, err := retry.Value(ctx, a.cfg.ReadPolicy, "opinion open orders", func(ctx context.Context) (envelope[listResult], error) {
		var out envelope[listResult]
		err := a.http.Get(ctx, "/openapi/order", q, a.headers(), &out)
		return out, err
	})
	if err != nil {
		return nil, cloberrors.FromStatus(err)
	}
	if resp.Errno != 0 {
		return nil, cloberrors.FromMessage(resp.Errno, resp.Errmsg)
	}
	orders := make([]clobtypes.OpenOrder, 0, len(resp.Result.List))
	for _, item := range resp.Result.List {
		side := clobtypes.Buy
		if item.Side == 1 {
			side = clobtypes.Sell
		}
		filled, _, _ := parseProgress(item.Filled)
		orders = append(orders, clobtypes.OpenOrder{
			OrderID: item.OrderID,
			TokenID: item.TokenID,
			Side:    side,
			Price:   item.Price,
			Size:    item.OrderShares,
			Filled:  filled,
		})
	}
	return orders, nil
}

// EnsureApprovals grants the exchange the collateral allowance and outcome-token operator rights.
func (a *Adapter) EnsureApprovals(ctx context.Context, reader chain.Reader, threshold *big.Int) error {
	if a.writer == nil {
		return fmt.Errorf("opinion approvals: %w", sdkerrors.ErrNoSigningAccount)
	}
	if err := chain.EnsureERC20Allowance(ctx, reader, a.writer, a.cfg.Collateral, a.cfg.Exchange, threshold); err != nil {
		logger.Warn("opinion: collateral approval failed: %v", err)
	}
	if a.cfg.ConditionalTokens != (common.Address{}) {
		if err := chain.EnsureERC1155Approval(ctx, reader, a.writer, a.cfg.ConditionalTokens, a.cfg.Exchange); err != nil {
			logger.Warn("opinion: outcome token approval failed: %v", err)
		}
	}
	return nil
}
