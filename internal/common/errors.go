// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Quote and search errors. Venue adapters return these (possibly wrapped);
// callers classify with errors.Is.
var (
	ErrNoProfitFound         = errors.New("no profitable cycle found")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrPriceRangeViolation   = errors.New("price range violation")
	ErrPoolDisabled          = errors.New("pool disabled")
	ErrPoolNotActivated      = errors.New("pool not activated")
	ErrMathOverflow          = errors.New("math overflow")
	ErrInvalidAccountData    = errors.New("invalid account data")
	ErrUnknownVenue          = errors.New("unknown venue")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInputTooLarge         = errors.New("input too large")
	ErrSlippageExceeded      = errors.New("delivered amount below limit")
)

// IsRecoverableQuoteError reports whether a quote failure only disqualifies
// the edge it happened on. Everything else aborts the scan.
func IsRecoverableQuoteError(err error) bool {
	return errors.Is(err, ErrInsufficientLiquidity) ||
		errors.Is(err, ErrPriceRangeViolation) ||
		errors.Is(err, ErrPoolDisabled) ||
		errors.Is(err, ErrPoolNotActivated)
}

// ErrorKind returns a short label for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoProfitFound):
		return "no_profit"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrPriceRangeViolation):
		return "price_range"
	case errors.Is(err, ErrPoolDisabled):
		return "pool_disabled"
	case errors.Is(err, ErrPoolNotActivated):
		return "pool_not_activated"
	case errors.Is(err, ErrMathOverflow):
		return "math_overflow"
	case errors.Is(err, ErrInvalidAccountData):
		return "invalid_account_data"
	case errors.Is(err, ErrUnknownVenue):
		return "unknown_venue"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInputTooLarge):
		return "input_too_large"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage"
	default:
		return "other"
	}
}

// HttpError represents an HTTP error with status code and message
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorUnprocessable(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "UNPROCESSABLE",
		Message:    messageOrDefault(msg, "Unprocessable entity"),
	}
}

func HTTPErrorTooLarge(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusRequestEntityTooLarge,
		Code:       "TOO_LARGE",
		Message:    messageOrDefault(msg, "Request entity too large"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

// HTTPErrorFrom maps engine errors onto the HTTP envelope.
func HTTPErrorFrom(err error) *HttpError {
	var httpErr *HttpError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, ErrNoProfitFound):
		return HTTPErrorNotFound(err.Error())
	case errors.Is(err, ErrInputTooLarge):
		return HTTPErrorTooLarge(err.Error())
	case errors.Is(err, ErrUnknownVenue), errors.Is(err, ErrInvalidAccountData):
		return HTTPErrorUnprocessable(err.Error())
	default:
		return HTTPErrorInternalError(err.Error())
	}
}
