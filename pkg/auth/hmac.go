package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	sdkerrors "github.com/GoPolymarket/polymarket-arb/pkg/errors"
)

// APIKey holds venue-issued L2 credentials.
type APIKey struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Complete reports whether all three parts are present.
func (k *APIKey) Complete() bool {
	return k != nil && k.Key != "" && k.Secret != "" && k.Passphrase != ""
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if pad := len(secret) % 4; pad != 0 {
		secret += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(secret)
	}
	if err != nil {
		return nil, fmt.Errorf("decode api secret: %w", err)
	}
	return decoded, nil
}

// SignHMAC returns the URL-safe base64 HMAC-SHA256 of message under secret.
func SignHMAC(secret, message string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// BuildHMACSignature signs timestamp+method+path+body.
func BuildHMACSignature(secret string, timestamp int64, method, path string, body []byte) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + path
	if len(body) > 0 {
		message += string(body)
	}
	return SignHMAC(secret, message)
}

// L2Headers authenticate trading calls with API credentials.
func L2Headers(address common.Address, key *APIKey, timestamp int64, method, path string, body []byte) (http.Header, error) {
	if !key.Complete() {
		return nil, sdkerrors.ErrMissingCredentials
	}
	sig, err := BuildHMACSignature(key.Secret, timestamp, method, path, body)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("POLY_ADDRESS", address.Hex())
	h.Set("POLY_SIGNATURE", sig)
	h.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	h.Set("POLY_API_KEY", key.Key)
	h.Set("POLY_PASSPHRASE", key.Passphrase)
	return h, nil
}
