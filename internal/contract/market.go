package contract

import (
	"context"
	"time"

	"golang-options/internal/dto"
)

// MarketDataProvider is the quote, chain and indicator gateway.
type MarketDataProvider interface {
	GetQuote(ctx context.Context, symbol string) (*dto.Quote, error)
	// GetChain returns the contracts for one expiration, or the full chain
	// when expiration is zero.
	GetChain(ctx context.Context, symbol string, expiration time.Time) ([]dto.OptionContract, error)
	GetOptionQuote(ctx context.Context, optionSymbol string) (*dto.Quote, error)
	GetIndicators(ctx context.Context, symbol string) (*dto.Indicators, error)
}

type OrderProvider interface {
	SubmitOrder(ctx context.Context, req dto.OrderRequest) (*dto.OrderResult, error)
}

type MarketCalendar interface {
	IsMarketOpen(now time.Time) bool
}
