// Package polymarket is the venue adapter for the Polymarket CLOB.
package polymarket

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
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
	Name           = "polymarket"
	DefaultBaseURL = "https://clob.polymarket.com"
	DefaultChainID = 137

	defaultMarketSlippageBps = 100
	endCursor                = "LTE="
	maxPages                 = 20
)

// Mainnet contracts.
var (
	DefaultExchange          = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	DefaultNegRiskExchange   = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")
	DefaultCollateral        = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	DefaultConditionalTokens = common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045")
)

// Config holds endpoints, contracts and credentials.
type Config struct {
	BaseURL string
	ChainID int64
	// Exchange is the EIP-712 verifying contract.
	Exchange          common.Address
	NegRiskExchange   common.Address
	Collateral        common.Address
	ConditionalTokens common.Address
	// Funder is the maker for proxy and safe signature types.
	Funder        common.Address
	SignatureType auth.SignatureType
	// APIKey is derived on Authenticate when incomplete.
	APIKey *auth.APIKey
	// ExchangeNonce is the on-chain order nonce all orders are signed with.
	ExchangeNonce     uint64
	FeeRateBps        int64
	MarketSlippageBps int64
	Timeout           time.Duration
	ReadPolicy        retry.Policy
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		ChainID:           DefaultChainID,
		Exchange:          DefaultExchange,
		NegRiskExchange:   DefaultNegRiskExchange,
		Collateral:        DefaultCollateral,
		ConditionalTokens: DefaultConditionalTokens,
		MarketSlippageBps: defaultMarketSlippageBps,
		Timeout:           transport.DefaultTimeout,
		ReadPolicy:        retry.DefaultPolicy(),
	}
}

// ConfigFromEnv overlays POLYMARKET_* and CLOB_* environment variables on DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("POLYMARKET_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("POLYMARKET_FUNDER"); common.IsHexAddress(v) {
		cfg.Funder = common.HexToAddress(v)
	}
	if v := os.Getenv("POLYMARKET_SIGNATURE_TYPE"); v != "" {
		if st, err := auth.ParseSignatureType(v); err == nil {
			cfg.SignatureType = st
		} else {
			logger.Warn("ignoring POLYMARKET_SIGNATURE_TYPE: %v", err)
		}
	}
	key := &auth.APIKey{
		Key:        os.Getenv("CLOB_API_KEY"),
		Secret:     os.Getenv("CLOB_SECRET"),
		Passphrase: os.Getenv("CLOB_PASSPHRASE"),
	}
	if key.Complete() {
		cfg.APIKey = key
	}
	return cfg
}

// Adapter implements clob.Venue for Polymarket.
type Adapter struct {
	cfg    Config
	http   *transport.Client
	signer auth.Signer
	writer chain.Writer
	nonce  clob.NonceTracker
	now    func() time.Time

	mu  sync.RWMutex
	key *auth.APIKey
}

// New builds an adapter. writer may be nil when approvals are not needed.
func New(cfg Config, signer auth.Signer, writer chain.Writer, doer transport.Doer) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.Exchange == (common.Address{}) {
		cfg.Exchange = DefaultExchange
	}
	if cfg.ReadPolicy.MaxAttempts == 0 {
		cfg.ReadPolicy = retry.DefaultPolicy()
	}
	httpClient := transport.NewClient(doer, cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	return &Adapter{cfg: cfg, http: httpClient, signer: signer, writer: writer, now: time.Now, key: cfg.APIKey}
}

var _ clob.Venue = (*Adapter)(nil)

func (a *Adapter) Name() string { return Name }

// Nonce counts successful submissions. Orders are signed with ExchangeNonce.
func (a *Adapter) Nonce() uint64 { return a.nonce.Current() }

func (a *Adapter) SetNonce(n uint64) { a.nonce.Set(n) }

func (a *Adapter) AdvanceNonce() uint64 { return a.nonce.Advance() }

// APIKey returns the active L2 credentials.
func (a *Adapter) APIKey() *auth.APIKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key
}

// Authenticate derives L2 credentials from a ClobAuth signature when none are configured.
// An existing key is derived first; a new one is created only if derivation fails.
func (a *Adapter) Authenticate(ctx context.Context) error {
	if a.signer == nil {
		return sdkerrors.ErrNoSigningAccount
	}
	if a.APIKey().Complete() {
		return nil
	}
	headers, err := auth.L1Headers(a.signer, a.now().Unix(), 0)
	if err != nil {
		return err
	}
	var key auth.APIKey
	err = a.http.Get(ctx, "/auth/derive-api-key", nil, headers, &key)
	if err != nil || !key.Complete() {
		logger.Debug("polymarket: derive api key failed, creating: %v", err)
		key = auth.APIKey{}
		if err := a.http.Call(ctx, transport.Request{Method: http.MethodPost, Path: "/auth/api-key", Headers: headers}, &key); err != nil {
			return fmt.Errorf("create api key: %w", cloberrors.FromStatus(err))
		}
	}
	if !key.Complete() {
		return fmt.Errorf("%w: venue returned incomplete credentials", sdkerrors.ErrMissingCredentials)
	}
	a.mu.Lock()
	a.key = &key
	a.mu.Unlock()
	logger.Info("polymarket: api credentials ready for %s", a.signer.Address().Hex())
	return nil
}

// call sends an L2-authenticated request. The signed body is the exact body sent.
func (a *Adapter) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if a.signer == nil {
		return sdkerrors.ErrNoSigningAccount
	}
	body, err := transport.Encode(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	headers, err := auth.L2Headers(a.signer.Address(), a.APIKey(), a.now().Unix(), method, path, body)
	if err != nil {
		return err
	}
	return a.http.Call(ctx, transport.Request{Method: method, Path: path, Query: query, Body: body, Headers: headers}, out)
}

type placeRequest struct {
	Order     clob.WireOrder `json:"order"`
	Owner     string         `json:"owner"`
	OrderType string         `json:"orderType"`
}

type placeResponse struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
}

func orderType(req clobtypes.PlaceOrderRequest) string {
	switch {
	case req.FillOrKill:
		return "FOK"
	case req.StrategyOrDefault() == clobtypes.StrategyMarket:
		return "FAK"
	}
	return "GTC"
}

// PlaceOrder builds a quantized order, signs it and submits it once.
func (a *Adapter) PlaceOrder(ctx context.Context, req clobtypes.PlaceOrderRequest) clobtypes.OrderResult {
	if err := req.Validate(); err != nil {
		return clobtypes.Failed("%v", err)
	}
	if a.signer == nil {
		return clobtypes.Failed("%v", sdkerrors.ErrNoSigningAccount)
	}
	key := a.APIKey()
	if !key.Complete() {
		return clobtypes.Failed("%v", sdkerrors.ErrMissingCredentials)
	}

	var slippage int64
	if req.StrategyOrDefault() == clobtypes.StrategyMarket {
		slippage = a.cfg.MarketSlippageBps
	}
	price, err := clob.SnapPrice(req.Side, req.Price, 0)
	if err != nil {
		return clobtypes.Failed("%v", err)
	}
	order, err := clob.BuildOrder(clob.OrderParams{
		Maker:         a.cfg.Funder,
		Signer:        a.signer.Address(),
		TokenID:       req.TokenID,
		Side:          req.Side,
		Price:         price,
		Size:          req.Size,
		FeeRateBps:    a.cfg.FeeRateBps,
		Nonce:         a.cfg.ExchangeNonce,
		SignatureType: a.cfg.SignatureType,
		Decimals:      types.USDCDecimals,
		Quantize:      true,
		SlippageBps:   slippage,
	})
	if err != nil {
		return clobtypes.Failed("build order: %v", err)
	}
	signed, err := clob.SignOrder(a.signer, order, clob.Domain{
		ChainID:           big.NewInt(a.cfg.ChainID),
		VerifyingContract: a.cfg.Exchange,
	})
	if err != nil {
		return clobtypes.Failed("%v", err)
	}

	body := placeRequest{Order: clob.ToWire(signed), Owner: key.Key, OrderType: orderType(req)}
	var resp placeResponse
	if err := a.call(ctx, http.MethodPost, "/order", nil, body, &resp); err != nil {
		return clobtypes.Failed("%v", cloberrors.FromStatus(err))
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return clobtypes.Failed("%v", cloberrors.FromMessage(0, resp.ErrorMsg))
	}
	a.nonce.Advance()

	status := clobtypes.PlacementPlaced
	if strings.EqualFold(resp.Status, "matched") {
		status = clobtypes.PlacementFilled
	}
	shares := resp.TakingAmount
	if req.Side == clobtypes.Sell {
		shares = resp.MakingAmount
	}
	filled, err := decimal.NewFromString(shares)
	if err != nil {
		filled = decimal.Zero
	}
	logger.Info("polymarket: placed %s %s size=%s price=%s id=%s status=%s", req.Side, req.TokenID, req.Size, price, resp.OrderID, resp.Status)
	return clobtypes.OrderResult{Success: true, OrderID: resp.OrderID, Status: status, Filled: filled}
}

type cancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// CancelOrder reports true when the venue lists the id as canceled.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var resp cancelResponse
	if err := a.call(ctx, http.MethodDelete, "/order", nil, map[string]string{"orderID": orderID}, &resp); err != nil {
		return false, cloberrors.FromStatus(err)
	}
	for _, id := range resp.Canceled {
		if id == orderID {
			return true, nil
		}
	}
	if reason, ok := resp.NotCanceled[orderID]; ok {
		logger.Warn("polymarket: cancel %s rejected: %s", orderID, reason)
	}
	return false, nil
}

type orderPayload struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	AssetID      string          `json:"asset_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	OriginalSize decimal.Decimal `json:"original_size"`
	SizeMatched  decimal.Decimal `json:"size_matched"`
}

// OrderStatus maps LIVE/MATCHED/CANCELED/EXPIRED onto the normalized vocabulary.
func (a *Adapter) OrderStatus(ctx context.Context, orderID string) (clobtypes.OrderStatusResult, error) {
	path := "/data/order/" + url.PathEscape(orderID)
	o, err := retry.Value(ctx, a.cfg.ReadPolicy, "polymarket order status", func(ctx context.Context) (orderPayload, error) {
		var out orderPayload
		err := a.call(ctx, http.MethodGet, path, nil, nil, &out)
		return out, err
	})
	if err != nil {
		return clobtypes.OrderStatusResult{}, cloberrors.FromStatus(err)
	}
	return clobtypes.OrderStatusResult{
		OrderID:   orderID,
		Status:    mapStatus(o.Status),
		Filled:    o.SizeMatched,
		Remaining: o.OriginalSize.Sub(o.SizeMatched),
		Raw:       o.Status,
	}, nil
}

func mapStatus(s string) clobtypes.OrderStatus {
	switch strings.ToUpper(s) {
	case "LIVE", "DELAYED", "UNMATCHED":
		return clobtypes.StatusOpen
	case "MATCHED":
		return clobtypes.StatusFilled
	case "CANCELED", "CANCELLED", "FAILED":
		return clobtypes.StatusCancelled
	case "EXPIRED":
		return clobtypes.StatusExpired
	}
	return clobtypes.StatusUnknown
}

type ordersPage struct {
	Data       []orderPayload `json:"data"`
	NextCursor string         `json:"next_cursor"`
}

// OpenOrders walks the cursor-paginated open order list.
func (a *Adapter) OpenOrders(ctx context.Context) ([]clobtypes.OpenOrder, error) {
	var orders []clobtypes.OpenOrder
	cursor := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		if cursor != "" {
			q.Set("next_cursor", cursor)
		}
		resp, err := retry.Value(ctx, a.cfg.ReadPolicy, "polymarket open orders", func(ctx context.Context) (ordersPage, error) {
			var out ordersPage
			err := a.call(ctx, http.MethodGet, "/data/orders", q, nil, &out)
			return out, err
		})
		if err != nil {
			return nil, cloberrors.FromStatus(err)
		}
		for _, o := range resp.Data {
			side, err := clobtypes.ParseSide(o.Side)
			if err != nil {
				logger.Debug("polymarket: skipping order %s: %v", o.ID, err)
				continue
			}
			orders = append(orders, clobtypes.OpenOrder{
				OrderID: o.ID,
				TokenID: o.AssetID,
				Side:    side,
				Price:   o.Price,
				Size:    o.OriginalSize,
				Filled:  o.SizeMatched,
			})
		}
		if resp.NextCursor == "" || resp.NextCursor == endCursor {
			return orders, nil
		}
		cursor = resp.NextCursor
	}
	return orders, nil
}

// EnsureApprovals grants both exchanges collateral allowance and outcome-token operator rights.
func (a *Adapter) EnsureApprovals(ctx context.Context, reader chain.Reader, threshold *big.Int) error {
	if a.writer == nil {
		return fmt.Errorf("polymarket approvals: %w", sdkerrors.ErrNoSigningAccount)
	}
	for _, spender := range []common.Address{a.cfg.Exchange, a.cfg.NegRiskExchange} {
		if spender == (common.Address{}) {
			continue
		}
		if a.cfg.Collateral != (common.Address{}) {
			if err := chain.EnsureERC20Allowance(ctx, reader, a.writer, a.cfg.Collateral, spender, threshold); err != nil {
				logger.Warn("polymarket: collateral approval for %s failed: %v", spender.Hex(), err)
			}
		}
		if a.cfg.ConditionalTokens != (common.Address{}) {
			if err := chain.EnsureERC1155Approval(ctx, reader, a.writer, a.cfg.ConditionalTokens, spender); err != nil {
				logger.Warn("polymarket: outcome token approval for %s failed: %v", spender.Hex(), err)
			}
		}
	}
	return nil
}

