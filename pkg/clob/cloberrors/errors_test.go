package cloberrors

import (
	"errors"
	"testing"

	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
)

func TestFromStatus(t *testing.T) {
	cases := map[int]error{
		401: ErrUnauthorized,
		400: ErrBadRequest,
		404: ErrOrderNotFound,
		429: ErrRateLimitExceeded,
		503: ErrInternalServerError,
	}
	for status, want := range cases {
		got := FromStatus(&transport.Error{Status: status, Body: "x"})
		if !errors.Is(got, want) {
			t.Errorf("status %d: got %v want %v", status, got, want)
		}
	}
	plain := errors.New("dial tcp: refused")
	if FromStatus(plain) != plain {
		t.Errorf("non-http errors pass through")
	}
}

func TestFromMessage(t *testing.T) {
	if !errors.Is(FromMessage(10201, "Insufficient balance"), ErrInsufficientFunds) {
		t.Errorf("balance message should map to ErrInsufficientFunds")
	}
	if !errors.Is(FromMessage(1, "bad signature"), ErrInvalidSignature) {
		t.Errorf("signature message should map")
	}
	if !errors.Is(FromMessage(7, "whatever"), ErrRejected) {
		t.Errorf("fallback should be ErrRejected")
	}
}
