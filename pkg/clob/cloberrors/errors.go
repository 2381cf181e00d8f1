// Package cloberrors maps venue failures onto sentinel errors.
package cloberrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoPolymarket/polymarket-arb/pkg/transport"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrOrderNotFound       = errors.New("order not found")
	ErrMarketClosed        = errors.New("market closed")
	ErrInternalServerError = errors.New("internal server error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBadRequest          = errors.New("bad request")
	ErrRejected            = errors.New("order rejected")
)

// FromStatus maps a transport error to a sentinel when its status is known.
func FromStatus(err error) error {
	var httpErr *transport.Error
	if !errors.As(err, &httpErr) {
		return err
	}
	msg := strings.TrimSpace(httpErr.Body)
	switch httpErr.Status {
	case 401, 403:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case 400:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case 404:
		return fmt.Errorf("%w: %s", ErrOrderNotFound, msg)
	case 429:
		return ErrRateLimitExceeded
	case 500, 502, 503, 504:
		return fmt.Errorf("%w: %s", ErrInternalServerError, msg)
	}
	return err
}

// FromMessage classifies a business-level rejection message.
func FromMessage(code int, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "balance") || strings.Contains(lower, "insufficient"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, message)
	case strings.Contains(lower, "signature"):
		return fmt.Errorf("%w: %s", ErrInvalidSignature, message)
	case strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", ErrOrderNotFound, message)
	case strings.Contains(lower, "closed") || strings.Contains(lower, "resolved"):
		return fmt.Errorf("%w: %s", ErrMarketClosed, message)
	}
	if code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrRejected, code, message)
	}
	return fmt.Errorf("%w: %s", ErrRejected, message)
}
