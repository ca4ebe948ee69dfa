package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	premiumSourceQuote = "option_quote"
	premiumSourceChain = "chain_mid"
	premiumSourceFill  = "fill"
)

// FreshPremium is an option premium fetched from the provider and accepted by
// the price guard during the current operation. Only PremiumFetcher builds
// one, so option entry and exit math cannot run on a stored price.
type FreshPremium struct {
	symbol    string
	value     decimal.Decimal
	source    string
	fetchedAt time.Time
}

func (p FreshPremium) Symbol() string         { return p.symbol }
func (p FreshPremium) Value() decimal.Decimal { return p.value }
func (p FreshPremium) Source() string         { return p.source }
func (p FreshPremium) FetchedAt() time.Time   { return p.fetchedAt }
func (p FreshPremium) IsZero() bool           { return p.symbol == "" }

// UnderlyingQuote is a validated stock price. It may come from the quote
// cache and is never accepted where a premium is expected.
type UnderlyingQuote struct {
	symbol string
	value  decimal.Decimal
	asOf   time.Time
	cached bool
}

func (q UnderlyingQuote) Symbol() string         { return q.symbol }
func (q UnderlyingQuote) Value() decimal.Decimal { return q.value }
func (q UnderlyingQuote) AsOf() time.Time        { return q.asOf }
func (q UnderlyingQuote) Cached() bool           { return q.cached }

type PremiumFetcher struct {
	log        *logger.Logger
	market     contract.MarketDataProvider
	guard      *PriceGuard
	underlying *underlyingQuotes
	clock      clock.Clock
}

func NewPremiumFetcher(log *logger.Logger, market contract.MarketDataProvider, guard *PriceGuard, underlying *underlyingQuotes, clk clock.Clock) *PremiumFetcher {
	return &PremiumFetcher{
		log:        log,
		market:     market,
		guard:      guard,
		underlying: underlying,
		clock:      clk,
	}
}

// FetchFreshPremium asks the provider for the contract's premium and runs it
// through the guard. When the quote is missing or rejected it re-fetches once
// from the chain and uses the contract's mid.
func (f *PremiumFetcher) FetchFreshPremium(ctx context.Context, spec dto.OptionSpec, codepath string) (FreshPremium, error) {
	premium, err := f.fromQuote(ctx, spec, codepath)
	if err == nil {
		return premium, nil
	}

	f.log.WarnContext(ctx, "Option quote unusable, re-fetching from chain",
		logger.StringField("option_symbol", spec.OptionSymbol),
		logger.StringField("codepath", codepath),
		logger.ErrorField(err))

	premium, chainErr := f.fromChain(ctx, spec, codepath)
	if chainErr != nil {
		return FreshPremium{}, fmt.Errorf("%w: %s: %w", dto.ErrPriceFetchFailed, spec.OptionSymbol, errors.Join(err, chainErr))
	}
	return premium, nil
}

func (f *PremiumFetcher) fromQuote(ctx context.Context, spec dto.OptionSpec, codepath string) (FreshPremium, error) {
	q, err := f.market.GetOptionQuote(ctx, spec.OptionSymbol)
	if err != nil {
		return FreshPremium{}, err
	}
	if q == nil {
		return FreshPremium{}, fmt.Errorf("%w: empty option quote", dto.ErrDataUnavailable)
	}

	quote := *q
	if quote.Underlying == "" {
		quote.Underlying = spec.Underlying
	}
	v, err := f.guard.Validate(ctx, quote, KindOptionPremium, codepath)
	if err != nil {
		return FreshPremium{}, err
	}
	return FreshPremium{symbol: spec.OptionSymbol, value: v.Value, source: premiumSourceQuote, fetchedAt: f.clock.Now()}, nil
}

func (f *PremiumFetcher) fromChain(ctx context.Context, spec dto.OptionSpec, codepath string) (FreshPremium, error) {
	chain, err := f.market.GetChain(ctx, spec.Underlying, spec.Expiration)
	if err != nil {
		return FreshPremium{}, err
	}

	for _, c := range chain {
		if c.Symbol != spec.OptionSymbol {
			continue
		}
		quote := dto.Quote{
			Symbol:         c.Symbol,
			Price:          c.Mid(),
			InstrumentType: model.InstrumentOption,
			Underlying:     spec.Underlying,
			Timestamp:      f.clock.Now(),
		}
		v, err := f.guard.Validate(ctx, quote, KindOptionPremium, codepath+"_chain")
		if err != nil {
			return FreshPremium{}, err
		}
		return FreshPremium{symbol: spec.OptionSymbol, value: v.Value, source: premiumSourceChain, fetchedAt: f.clock.Now()}, nil
	}
	return FreshPremium{}, fmt.Errorf("%w: %s not found in chain", dto.ErrDataUnavailable, spec.OptionSymbol)
}

// PremiumFromFill validates a provider fill price as the premium actually
// paid or received for the contract.
func (f *PremiumFetcher) PremiumFromFill(ctx context.Context, spec dto.OptionSpec, fillPrice float64, codepath string) (FreshPremium, error) {
	quote := dto.Quote{
		Symbol:         spec.OptionSymbol,
		Price:          fillPrice,
		InstrumentType: model.InstrumentOption,
		Underlying:     spec.Underlying,
		Timestamp:      f.clock.Now(),
	}
	v, err := f.guard.Validate(ctx, quote, KindOptionPremium, codepath)
	if err != nil {
		return FreshPremium{}, err
	}
	return FreshPremium{symbol: spec.OptionSymbol, value: v.Value, source: premiumSourceFill, fetchedAt: f.clock.Now()}, nil
}

// CachedUnderlyingQuote returns a validated stock price, served from the
// quote cache when a recent one exists.
func (f *PremiumFetcher) CachedUnderlyingQuote(ctx context.Context, symbol, codepath string) (UnderlyingQuote, error) {
	q, cached, err := f.underlying.get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, dto.ErrDataUnavailable) {
			err = fmt.Errorf("%w: quote %s: %v", dto.ErrDataUnavailable, symbol, err)
		}
		return UnderlyingQuote{}, err
	}

	v, err := f.guard.Validate(ctx, *q, KindUnderlying, codepath)
	if err != nil {
		f.underlying.forget(symbol)
		return UnderlyingQuote{}, err
	}

	asOf := q.Timestamp
	if asOf.IsZero() {
		asOf = f.clock.Now()
	}
	return UnderlyingQuote{symbol: symbol, value: v.Value, asOf: asOf, cached: cached}, nil
}

// StockPriceFromFill validates a provider fill price for a stock order.
func (f *PremiumFetcher) StockPriceFromFill(ctx context.Context, symbol string, fillPrice float64, codepath string) (UnderlyingQuote, error) {
	quote := dto.Quote{Symbol: symbol, Price: fillPrice, InstrumentType: model.InstrumentStock, Timestamp: f.clock.Now()}
	v, err := f.guard.Validate(ctx, quote, KindUnderlying, codepath)
	if err != nil {
		return UnderlyingQuote{}, err
	}
	return UnderlyingQuote{symbol: symbol, value: v.Value, asOf: f.clock.Now()}, nil
}
