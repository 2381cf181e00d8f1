package auth

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
)

const (
	ClobAuthDomainName = "ClobAuthDomain"
	ClobAuthVersion    = "1"
	ClobAuthMessage    = "This message attests that I control the given wallet"
)

// ClobAuthTypedData builds the wallet-attestation message used to obtain API credentials.
func ClobAuthTypedData(address string, chainID int64, timestamp int64, nonce int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    ClobAuthDomainName,
			Version: ClobAuthVersion,
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   address,
			"timestamp": strconv.FormatInt(timestamp, 10),
			"nonce":     math.NewHexOrDecimal256(nonce),
			"message":   ClobAuthMessage,
		},
	}
}

// SignClobAuth signs the attestation and returns the 0x-hex signature.
func SignClobAuth(signer Signer, timestamp int64, nonce int64) (string, error) {
	if signer == nil {
		return "", sdkerrors.ErrNoSigningAccount
	}
	data := ClobAuthTypedData(signer.Address().Hex(), signer.ChainID().Int64(), timestamp, nonce)
	sig, err := signer.SignTypedData(data)
	if err != nil {
		return "", fmt.Errorf("sign clob auth: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// L1Headers authenticate key-management calls with a wallet signature.
func L1Headers(signer Signer, timestamp int64, nonce int64) (http.Header, error) {
	sig, err := SignClobAuth(signer, timestamp, nonce)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("POLY_ADDRESS", signer.Address().Hex())
	h.Set("POLY_SIGNATURE", sig)
	h.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	h.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))
	return h, nil
}
