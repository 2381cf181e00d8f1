package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// U256 is an unsigned 256-bit integer that travels as a decimal string in JSON.
type U256 struct {
	Int *big.Int
}

// NewU256 wraps a copy of v. A nil v yields zero.
func NewU256(v *big.Int) U256 {
	if v == nil {
		return U256{Int: new(big.Int)}
	}
	return U256{Int: new(big.Int).Set(v)}
}

// U256FromUint64 wraps a uint64.
func U256FromUint64(v uint64) U256 {
	return U256{Int: new(big.Int).SetUint64(v)}
}

// ParseU256 parses a base-10 (or 0x-prefixed hex) integer.
func ParseU256(s string) (U256, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return U256{}, fmt.Errorf("empty integer")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return U256{}, fmt.Errorf("invalid integer %q", s)
	}
	if v.Sign() < 0 {
		return U256{}, fmt.Errorf("negative value %q", s)
	}
	return U256{Int: v}, nil
}

// Big returns the underlying value, never nil.
func (u U256) Big() *big.Int {
	if u.Int == nil {
		return new(big.Int)
	}
	return u.Int
}

func (u U256) String() string {
	return u.Big().String()
}

func (u U256) IsZero() bool {
	return u.Int == nil || u.Int.Sign() == 0
}

func (u U256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *U256) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		u.Int = new(big.Int)
		return nil
	case string:
		parsed, err := ParseU256(v)
		if err != nil {
			return err
		}
		u.Int = parsed.Int
		return nil
	case float64:
		parsed, err := ParseU256(string(data))
		if err != nil {
			return err
		}
		u.Int = parsed.Int
		return nil
	default:
		return fmt.Errorf("unsupported U256 json %s", string(data))
	}
}

// Address is a checksummed EVM address with JSON support.
type Address common.Address

func (a Address) String() string {
	return common.Address(a).Hex()
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !common.IsHexAddress(s) {
		return fmt.Errorf("invalid address %q", s)
	}
	*a = Address(common.HexToAddress(s))
	return nil
}
