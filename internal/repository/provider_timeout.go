package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-options/internal/contract"
	"golang-options/internal/dto"
)

type timeoutMarketData struct {
	next    contract.MarketDataProvider
	timeout time.Duration
}

// NewTimeoutMarketData bounds every call on next by timeout. A call that
// runs out of time fails with ErrDataUnavailable.
func NewTimeoutMarketData(next contract.MarketDataProvider, timeout time.Duration) contract.MarketDataProvider {
	if timeout <= 0 {
		return next
	}
	return &timeoutMarketData{next: next, timeout: timeout}
}

func (t *timeoutMarketData) GetQuote(ctx context.Context, symbol string) (*dto.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	q, err := t.next.GetQuote(ctx, symbol)
	return q, asDataUnavailable(ctx, "quote "+symbol, err)
}

func (t *timeoutMarketData) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]dto.OptionContract, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	c, err := t.next.GetChain(ctx, symbol, expiration)
	return c, asDataUnavailable(ctx, "chain "+symbol, err)
}

func (t *timeoutMarketData) GetOptionQuote(ctx context.Context, optionSymbol string) (*dto.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	q, err := t.next.GetOptionQuote(ctx, optionSymbol)
	return q, asDataUnavailable(ctx, "option quote "+optionSymbol, err)
}

func (t *timeoutMarketData) GetIndicators(ctx context.Context, symbol string) (*dto.Indicators, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	i, err := t.next.GetIndicators(ctx, symbol)
	return i, asDataUnavailable(ctx, "indicators "+symbol, err)
}

func asDataUnavailable(ctx context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dto.ErrDataUnavailable) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out: %v", dto.ErrDataUnavailable, what, err)
	}
	return err
}

type timeoutOrderProvider struct {
	next    contract.OrderProvider
	timeout time.Duration
}

// NewTimeoutOrderProvider bounds SubmitOrder by timeout. A timeout fails
// with ErrExecution.
func NewTimeoutOrderProvider(next contract.OrderProvider, timeout time.Duration) contract.OrderProvider {
	if timeout <= 0 {
		return next
	}
	return &timeoutOrderProvider{next: next, timeout: timeout}
}

func (t *timeoutOrderProvider) SubmitOrder(ctx context.Context, req dto.OrderRequest) (*dto.OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.next.SubmitOrder(ctx, req)
	if err != nil && !errors.Is(err, dto.ErrExecution) && (ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded)) {
		return nil, fmt.Errorf("%w: order %s timed out: %v", dto.ErrExecution, req.ClientOrderID, err)
	}
	return res, err
}
