package dto

import (
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable    = errors.New("market data unavailable")
	ErrNotFound           = errors.New("not found")
	ErrPriceRejected      = errors.New("price rejected by validation guard")
	ErrPriceFetchFailed   = errors.New("fresh price fetch failed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrRiskDenied         = errors.New("risk limit denied trade")
	ErrExecution          = errors.New("order execution failed")
	ErrProviderRejected   = errors.New("order provider rejected order")
	ErrTransactionFailure = errors.New("transaction failed")
	ErrPositionClosed     = errors.New("position already closed")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoSuitableOption   = errors.New("no suitable option contract")
)

// RiskDeniedError names the risk check that vetoed a trade.
type RiskDeniedError struct {
	Check  string
	Reason string
	cause  error
}

func NewRiskDeniedError(check, reason string, cause error) *RiskDeniedError {
	if cause == nil {
		cause = ErrRiskDenied
	}
	return &RiskDeniedError{Check: check, Reason: reason, cause: cause}
}

func (e *RiskDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.cause.Error(), e.Reason)
}

func (e *RiskDeniedError) Unwrap() error {
	return e.cause
}

// PriceRejectedError carries the guard's verdict for one value.
type PriceRejectedError struct {
	Symbol   string
	Value    float64
	Kind     string
	Codepath string
	Reason   string
}

func (e *PriceRejectedError) Error() string {
	return fmt.Sprintf("%s: %s %s=%v at %s: %s", ErrPriceRejected.Error(), e.Kind, e.Symbol, e.Value, e.Codepath, e.Reason)
}

func (e *PriceRejectedError) Unwrap() error {
	return ErrPriceRejected
}

// IsRetryable reports whether an execution attempt may be retried next cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExecution) || errors.Is(err, ErrProviderRejected) || errors.Is(err, ErrTransactionFailure)
}
