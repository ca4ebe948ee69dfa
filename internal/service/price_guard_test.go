package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/helper"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/cache"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	guard    *PriceGuard
	fetcher  *PremiumFetcher
	repo     *repository.Repository
	market   *fakeMarket
	registry *metrics.Registry
}

func newGuardFixture() *guardFixture {
	market := newFakeMarket()
	repo := repository.NewMemoryRepository()
	registry := metrics.New()
	clk := clock.NewMock(testNow)
	quotes := newUnderlyingQuotes(cache.NewCache(time.Minute, time.Minute), market, time.Minute)
	guard := NewPriceGuard(config.PriceGuard{MaxOptionPremium: 50, UnderlyingMatchTolerancePct: 2}, logger.NewNop(), repo.PriceRejectionRepo, registry, quotes, clk)
	return &guardFixture{
		guard:    guard,
		fetcher:  NewPremiumFetcher(logger.NewNop(), market, guard, quotes, clk),
		repo:     repo,
		market:   market,
		registry: registry,
	}
}

func TestPriceGuard_Validate(t *testing.T) {
	exp := time.Date(2025, 4, 17, 0, 0, 0, 0, time.UTC)
	aaplCall := helper.FormatOCCSymbol("AAPL", exp, model.ContractCall, 190)
	msftCall := helper.FormatOCCSymbol("MSFT", exp, model.ContractCall, 300)

	tests := []struct {
		name     string
		quote    dto.Quote
		kind     string
		accepted bool
	}{
		{
			name:     "ordinary premium",
			quote:    dto.Quote{Symbol: aaplCall, Price: 3.5, InstrumentType: model.InstrumentOption},
			kind:     KindOptionPremium,
			accepted: true,
		},
		{
			name:     "premium without instrument type below ceiling",
			quote:    dto.Quote{Symbol: aaplCall, Price: 12.4},
			kind:     KindOptionPremium,
			accepted: true,
		},
		{
			name:  "not a number",
			quote: dto.Quote{Symbol: aaplCall, Price: math.NaN(), InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:  "infinite",
			quote: dto.Quote{Symbol: aaplCall, Price: math.Inf(1), InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:  "zero",
			quote: dto.Quote{Symbol: aaplCall, Price: 0, InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:  "negative",
			quote: dto.Quote{Symbol: aaplCall, Price: -1.2, InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:  "provider says stock",
			quote: dto.Quote{Symbol: aaplCall, Price: 3.5, InstrumentType: model.InstrumentStock},
			kind:  KindOptionPremium,
		},
		{
			name:  "equity ticker as premium",
			quote: dto.Quote{Symbol: "AAPL", Price: 3.5},
			kind:  KindOptionPremium,
		},
		{
			name:  "above ceiling without option identity",
			quote: dto.Quote{Symbol: aaplCall, Price: 688},
			kind:  KindOptionPremium,
		},
		{
			name:  "above ceiling and matches reported underlying",
			quote: dto.Quote{Symbol: aaplCall, Price: 452.3, InstrumentType: model.InstrumentOption, UnderlyingPrice: 450},
			kind:  KindOptionPremium,
		},
		{
			name:  "above ceiling and matches looked up underlying",
			quote: dto.Quote{Symbol: aaplCall, Price: 188.9, InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:     "deep in the money premium",
			quote:    dto.Quote{Symbol: aaplCall, Price: 120, InstrumentType: model.InstrumentOption, UnderlyingPrice: 450},
			kind:     KindOptionPremium,
			accepted: true,
		},
		{
			name:  "above ceiling with unknown underlying",
			quote: dto.Quote{Symbol: msftCall, Price: 120, InstrumentType: model.InstrumentOption},
			kind:  KindOptionPremium,
		},
		{
			name:     "underlying price",
			quote:    dto.Quote{Symbol: "AAPL", Price: 188.5, InstrumentType: model.InstrumentStock},
			kind:     KindUnderlying,
			accepted: true,
		},
		{
			name:  "option quote where underlying expected",
			quote: dto.Quote{Symbol: aaplCall, Price: 3.5, InstrumentType: model.InstrumentOption},
			kind:  KindUnderlying,
		},
		{
			name:  "unknown kind",
			quote: dto.Quote{Symbol: "AAPL", Price: 188.5},
			kind:  "volatility",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture()
			f.market.setStock("AAPL", 188.5)

			v, err := f.guard.Validate(context.Background(), tt.quote, tt.kind, CodepathEntryPremium)
			if tt.accepted {
				require.NoError(t, err)
				assert.Equal(t, tt.kind, v.Kind)
				assert.Equal(t, tt.quote.Price, v.Value.InexactFloat64())
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, dto.ErrPriceRejected))
			var rejected *dto.PriceRejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, CodepathEntryPremium, rejected.Codepath)
			assert.NotEmpty(t, rejected.Reason)
		})
	}
}

func TestPriceGuard_RecordsRejection(t *testing.T) {
	f := newGuardFixture()
	ctx := context.Background()

	_, err := f.guard.Validate(ctx, dto.Quote{Symbol: "AAPL251219C00190000", Price: 688}, KindOptionPremium, CodepathExitPremium)
	require.Error(t, err)

	rows, err := f.repo.PriceRejectionRepo.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL251219C00190000", rows[0].Symbol)
	assert.Equal(t, 688.0, rows[0].RejectedValue)
	assert.Equal(t, KindOptionPremium, rows[0].ExpectedKind)
	assert.Equal(t, CodepathExitPremium, rows[0].Codepath)
	assert.Equal(t, testNow, rows[0].OccurredAt)
	assert.Contains(t, string(rows[0].Payload), `"price":688`)

	assert.Equal(t, 1.0, counterValue(t, f.registry.Gatherer(), "options_engine_price_rejections_total",
		map[string]string{"codepath": CodepathExitPremium, "expected_kind": KindOptionPremium}))
}

func TestPremiumFetcher_FetchFreshPremium(t *testing.T) {
	c := contractFixture(model.ContractCall, 190, 30, 4.00, 4.40, 0.55)
	ctx := context.Background()

	t.Run("option quote", func(t *testing.T) {
		f := newGuardFixture()
		f.market.setOption(c.Symbol, 4.25)

		p, err := f.fetcher.FetchFreshPremium(ctx, c.Spec(), CodepathExitPremium)
		require.NoError(t, err)
		assert.Equal(t, "4.25", p.Value().String())
		assert.Equal(t, premiumSourceQuote, p.Source())
		assert.Equal(t, c.Symbol, p.Symbol())
		assert.Equal(t, testNow, p.FetchedAt())
		assert.False(t, p.IsZero())
	})

	t.Run("rejected quote falls back to chain mid", func(t *testing.T) {
		f := newGuardFixture()
		f.market.setOptionQuote(dto.Quote{Symbol: c.Symbol, Price: 688})
		f.market.setChain("AAPL", c)

		p, err := f.fetcher.FetchFreshPremium(ctx, c.Spec(), CodepathExitPremium)
		require.NoError(t, err)
		assert.Equal(t, "4.2", p.Value().String())
		assert.Equal(t, premiumSourceChain, p.Source())

		rows, err := f.repo.PriceRejectionRepo.Latest(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, CodepathExitPremium, rows[0].Codepath)
	})

	t.Run("missing quote falls back to chain mid", func(t *testing.T) {
		f := newGuardFixture()
		f.market.setChain("AAPL", c)

		p, err := f.fetcher.FetchFreshPremium(ctx, c.Spec(), CodepathMonitorRefresh)
		require.NoError(t, err)
		assert.Equal(t, premiumSourceChain, p.Source())
	})

	t.Run("both sources fail", func(t *testing.T) {
		f := newGuardFixture()
		f.market.optionErr = errors.New("provider down")

		p, err := f.fetcher.FetchFreshPremium(ctx, c.Spec(), CodepathExitPremium)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dto.ErrPriceFetchFailed))
		assert.True(t, p.IsZero())
	})

	t.Run("contract missing from chain", func(t *testing.T) {
		f := newGuardFixture()
		other := contractFixture(model.ContractCall, 200, 30, 2.0, 2.2, 0.4)
		f.market.setChain("AAPL", other)

		_, err := f.fetcher.FetchFreshPremium(ctx, c.Spec(), CodepathExitPremium)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dto.ErrPriceFetchFailed))
		assert.True(t, errors.Is(err, dto.ErrDataUnavailable))
	})
}

func TestPremiumFetcher_PremiumFromFill(t *testing.T) {
	f := newGuardFixture()
	c := contractFixture(model.ContractCall, 190, 30, 3.45, 3.55, 0.5)
	ctx := context.Background()

	p, err := f.fetcher.PremiumFromFill(ctx, c.Spec(), 3.5, CodepathEntryFill)
	require.NoError(t, err)
	assert.Equal(t, "3.5", p.Value().String())
	assert.Equal(t, premiumSourceFill, p.Source())

	_, err = f.fetcher.PremiumFromFill(ctx, c.Spec(), 0, CodepathEntryFill)
	assert.True(t, errors.Is(err, dto.ErrPriceRejected))
}

func TestPremiumFetcher_CachedUnderlyingQuote(t *testing.T) {
	f := newGuardFixture()
	f.market.setStock("AAPL", 188.5)
	ctx := context.Background()

	first, err := f.fetcher.CachedUnderlyingQuote(ctx, "AAPL", CodepathStockQuote)
	require.NoError(t, err)
	assert.False(t, first.Cached())
	assert.Equal(t, "188.5", first.Value().String())

	second, err := f.fetcher.CachedUnderlyingQuote(ctx, "AAPL", CodepathStockQuote)
	require.NoError(t, err)
	assert.True(t, second.Cached())
	assert.Equal(t, 1, f.market.stockQuoteCalls())

	_, err = f.fetcher.CachedUnderlyingQuote(ctx, "MSFT", CodepathStockQuote)
	assert.True(t, errors.Is(err, dto.ErrDataUnavailable))
}

func TestPremiumFetcher_CachedUnderlyingQuoteForgetsRejected(t *testing.T) {
	f := newGuardFixture()
	f.market.quotes["AAPL"] = dto.Quote{Symbol: "AAPL", Price: 3.5, InstrumentType: model.InstrumentOption}
	ctx := context.Background()

	_, err := f.fetcher.CachedUnderlyingQuote(ctx, "AAPL", CodepathStockQuote)
	require.True(t, errors.Is(err, dto.ErrPriceRejected))

	f.market.setStock("AAPL", 188.5)
	q, err := f.fetcher.CachedUnderlyingQuote(ctx, "AAPL", CodepathStockQuote)
	require.NoError(t, err)
	assert.False(t, q.Cached())
	assert.Equal(t, 2, f.market.stockQuoteCalls())
}
