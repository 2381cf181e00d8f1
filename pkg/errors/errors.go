// Package errors holds sentinel errors shared across the execution engine.
package errors

import "errors"

var (
	// Configuration and precondition failures. Logged and aborted, never retried.
	ErrNoSigningAccount    = errors.New("no signing account configured")
	ErrMarketNotRegistered = errors.New("market not registered")
	ErrVaultNotConfigured  = errors.New("vault not configured")
	ErrVenueNotConfigured  = errors.New("venue not configured")
	ErrMissingCredentials  = errors.New("missing api credentials")

	// Order construction failures.
	ErrInvalidOrder   = errors.New("invalid order")
	ErrInvalidPrice   = errors.New("price must be within (0, 1)")
	ErrInvalidSize    = errors.New("size must be positive")
	ErrAmountTooSmall = errors.New("amount rounds to zero at venue precision")

	// On-chain failures.
	ErrTxReverted   = errors.New("transaction reverted")
	ErrEventMissing = errors.New("expected event not found in receipt")
)

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
