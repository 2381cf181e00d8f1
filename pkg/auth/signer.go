// Package auth holds key material and produces every signature the engine needs.
package auth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureType tells the exchange how the maker relates to the signer.
type SignatureType int

const (
	SignatureEOA        SignatureType = 0
	SignatureProxy      SignatureType = 1
	SignatureGnosisSafe SignatureType = 2
)

// ParseSignatureType accepts names (eoa, proxy, safe) or numbers.
func ParseSignatureType(s string) (SignatureType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "eoa":
		return SignatureEOA, nil
	case "1", "proxy", "poly_proxy":
		return SignatureProxy, nil
	case "2", "safe", "gnosis", "multisig", "poly_gnosis_safe":
		return SignatureGnosisSafe, nil
	default:
		return SignatureEOA, fmt.Errorf("unknown signature type %q", s)
	}
}

// Signer signs EIP-712 typed data on behalf of one account.
type Signer interface {
	Address() common.Address
	ChainID() *big.Int
	SignTypedData(data apitypes.TypedData) ([]byte, error)
}

// TxSigner additionally signs raw transactions.
type TxSigner interface {
	Signer
	SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error)
}

// PrivateKeySigner keeps an in-memory secp256k1 key.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewPrivateKeySigner parses a hex key (with or without 0x).
func NewPrivateKeySigner(hexKey string, chainID int64) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

func (s *PrivateKeySigner) Address() common.Address { return s.address }

func (s *PrivateKeySigner) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// SignTypedData returns a 65-byte signature with v in {27, 28}.
func (s *PrivateKeySigner) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (s *PrivateKeySigner) SignTx(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(s.chainID), s.key)
}

// RecoverTypedData returns the address that produced sig over data.
func RecoverTypedData(data apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, err
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
