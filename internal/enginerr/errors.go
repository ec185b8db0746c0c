// Package enginerr defines the engine-wide error taxonomy. Every error a
// position-engine component raises carries a Kind so the API layer can map
// it to an HTTP status without inspecting message text.
package enginerr

import (
	"errors"
	"fmt"
)

// Kind is the user-visible error discriminator returned in API responses.
type Kind string

const (
	Overflow        Kind = "Overflow"
	Underflow       Kind = "Underflow"
	DivisionByZero  Kind = "DivisionByZero"
	InvalidSize     Kind = "InvalidSize"
	InvalidAmount   Kind = "InvalidAmount"
	InvalidLeverage Kind = "InvalidLeverage"
	SymbolTooLong   Kind = "SymbolTooLong"

	LeverageExceeded              Kind = "LeverageExceeded"
	InsufficientMarginForIncrease Kind = "InsufficientMarginForIncrease"
	MaintenanceBreach             Kind = "MaintenanceBreach"
	InvalidState                  Kind = "InvalidState"
	PositionAlreadyOpen           Kind = "PositionAlreadyOpen"

	NotFound Kind = "NotFound"

	StoreUnavailable   Kind = "StoreUnavailable"
	OracleUnavailable  Kind = "OracleUnavailable"
	RelayerUnavailable Kind = "RelayerUnavailable"
)

// Error is the concrete error type raised by engine components. It wraps an
// optional cause so errors.Is/errors.As keep working across layers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap)
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the recovery policy for kind is "retry with
// backoff" rather than "surface to caller final".
func Retryable(kind Kind) bool {
	switch kind {
	case StoreUnavailable, OracleUnavailable, RelayerUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the status code the API layer should return.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Overflow, Underflow, DivisionByZero:
		return 500
	case InvalidSize, InvalidAmount, InvalidLeverage, SymbolTooLong,
		LeverageExceeded, InsufficientMarginForIncrease, MaintenanceBreach:
		return 400
	case InvalidState, PositionAlreadyOpen:
		return 409
	case NotFound:
		return 404
	case StoreUnavailable, OracleUnavailable, RelayerUnavailable:
		return 503
	default:
		return 500
	}
}
