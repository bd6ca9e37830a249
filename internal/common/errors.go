// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
)

// Kind tags a core error so callers can branch without string matching.
type Kind string

const (
	KindInsufficientLiquidity     Kind = "INSUFFICIENT_LIQUIDITY"
	KindNoRoute                   Kind = "NO_ROUTE"
	KindInvalidTick               Kind = "INVALID_TICK"
	KindInvalidSqrtRatio          Kind = "INVALID_SQRT_RATIO"
	KindInvalidAmount             Kind = "INVALID_AMOUNT"
	KindInsufficientNativeBalance Kind = "INSUFFICIENT_NATIVE_BALANCE"
	KindRateLimited               Kind = "RATE_LIMITED"
	KindTimeout                   Kind = "TIMEOUT"
	KindNonceConflict             Kind = "NONCE_CONFLICT"
	KindMissingPoolIdentifier     Kind = "MISSING_POOL_IDENTIFIER"
	KindUnknownRouteType          Kind = "UNKNOWN_ROUTE_TYPE"
	KindInsufficientRouteData     Kind = "INSUFFICIENT_ROUTE_DATA"
	KindTransport                 Kind = "TRANSPORT_ERROR"
	KindInvalidSigner             Kind = "INVALID_SIGNER"
)

// CoreError carries a machine-readable kind alongside the human message.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// NewError builds a CoreError with a kind and message.
func NewError(kind Kind, msg string) *CoreError {
	return &CoreError{Kind: kind, Message: msg}
}

// WrapError builds a CoreError around an underlying cause.
func WrapError(kind Kind, msg string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: msg, Cause: cause}
}

// KindOf extracts the kind of an error, or empty string for foreign errors.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
