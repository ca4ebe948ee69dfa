package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/helper"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/cache"
	"golang-options/pkg/clock"
	"golang-options/pkg/common"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"

	"github.com/shopspring/decimal"
)

const (
	KindOptionPremium = "option_premium"
	KindUnderlying    = "underlying_price"
)

// Codepaths label where a price entered the system.
const (
	CodepathEntryPremium   = "entry_premium"
	CodepathEntryFill      = "entry_fill"
	CodepathExitPremium    = "exit_premium"
	CodepathExitFill       = "exit_fill"
	CodepathMonitorRefresh = "monitor_refresh"
	CodepathStockQuote     = "stock_quote"
	CodepathDiagnostics    = "diagnostics"
)

const (
	defaultMaxOptionPremium = 50.0
	defaultMatchTolerance   = 2.0
)

// ValidatedPrice is a value the guard accepted for its kind.
type ValidatedPrice struct {
	Symbol string
	Value  decimal.Decimal
	Kind   string
}

// underlyingQuotes is the short-lived quote cache shared by the guard and the
// premium fetcher. It is never used for option premiums.
type underlyingQuotes struct {
	quotes *cache.Store[*dto.Quote]
	market contract.MarketDataProvider
}

func newUnderlyingQuotes(c cache.Cache, market contract.MarketDataProvider, ttl time.Duration) *underlyingQuotes {
	return &underlyingQuotes{
		quotes: cache.NewStore[*dto.Quote](c, common.KEY_UNDERLYING_QUOTE, ttl),
		market: market,
	}
}

func (u *underlyingQuotes) get(ctx context.Context, symbol string) (*dto.Quote, bool, error) {
	if q, ok := u.quotes.Get(symbol); ok {
		return q, true, nil
	}

	q, err := u.market.GetQuote(ctx, symbol)
	if err != nil {
		return nil, false, err
	}
	if q == nil {
		return nil, false, fmt.Errorf("%w: empty quote for %s", dto.ErrDataUnavailable, symbol)
	}
	u.quotes.Set(q, symbol)
	return q, false, nil
}

func (u *underlyingQuotes) forget(symbol string) {
	u.quotes.Delete(symbol)
}

// PriceGuard checks every externally sourced price against the kind the
// caller expects before it can touch a position or the ledger.
type PriceGuard struct {
	cfg        config.PriceGuard
	log        *logger.Logger
	rejections repository.PriceRejectionRepository
	metrics    *metrics.Registry
	underlying *underlyingQuotes
	clock      clock.Clock
}

func NewPriceGuard(cfg config.PriceGuard, log *logger.Logger, rejections repository.PriceRejectionRepository, registry *metrics.Registry, underlying *underlyingQuotes, clk clock.Clock) *PriceGuard {
	if cfg.MaxOptionPremium <= 0 {
		cfg.MaxOptionPremium = defaultMaxOptionPremium
	}
	if cfg.UnderlyingMatchTolerancePct <= 0 {
		cfg.UnderlyingMatchTolerancePct = defaultMatchTolerance
	}
	return &PriceGuard{
		cfg:        cfg,
		log:        log,
		rejections: rejections,
		metrics:    registry,
		underlying: underlying,
		clock:      clk,
	}
}

// Validate accepts q as a price of the expected kind or returns a
// *dto.PriceRejectedError. Every rejection is logged, counted and recorded.
func (g *PriceGuard) Validate(ctx context.Context, q dto.Quote, kind, codepath string) (ValidatedPrice, error) {
	if reason := g.check(ctx, q, kind); reason != "" {
		return ValidatedPrice{}, g.reject(ctx, q, kind, codepath, reason)
	}
	return ValidatedPrice{Symbol: q.Symbol, Value: decimal.NewFromFloat(q.Price), Kind: kind}, nil
}

func (g *PriceGuard) check(ctx context.Context, q dto.Quote, kind string) string {
	v := q.Price
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "value is not a finite number"
	}
	if v <= 0 {
		return "value must be positive"
	}

	switch kind {
	case KindUnderlying:
		if q.InstrumentType == model.InstrumentOption || helper.IsOCCSymbol(q.Symbol) {
			return "expected an underlying price but the quote is for an option contract"
		}
		return ""
	case KindOptionPremium:
		return g.checkPremium(ctx, q)
	default:
		return fmt.Sprintf("unknown expected kind %q", kind)
	}
}

func (g *PriceGuard) checkPremium(ctx context.Context, q dto.Quote) string {
	v := q.Price
	if q.InstrumentType != "" && q.InstrumentType != model.InstrumentOption {
		return fmt.Sprintf("provider reports instrument type %q, expected option", q.InstrumentType)
	}
	if model.IsValidTicker(q.Symbol) {
		return fmt.Sprintf("symbol %s is an equity ticker, not an option contract", q.Symbol)
	}
	if v <= g.cfg.MaxOptionPremium {
		return ""
	}

	// Above the ceiling a premium is only plausible for a deep in-the-money
	// contract that the provider explicitly identifies as an option.
	if q.InstrumentType != model.InstrumentOption || !helper.IsOCCSymbol(q.Symbol) {
		return fmt.Sprintf("premium %.2f exceeds %.2f and the quote is not identified as an option contract", v, g.cfg.MaxOptionPremium)
	}

	underlying := q.UnderlyingPrice
	if underlying <= 0 {
		underlying = g.lookupUnderlying(ctx, q)
	}
	if underlying <= 0 {
		return fmt.Sprintf("premium %.2f exceeds %.2f and the underlying price could not be determined", v, g.cfg.MaxOptionPremium)
	}
	if math.Abs(v-underlying)/underlying*100 <= g.cfg.UnderlyingMatchTolerancePct {
		return fmt.Sprintf("premium %.2f is within %.1f%% of the underlying price %.2f and looks like a stock price",
			v, g.cfg.UnderlyingMatchTolerancePct, underlying)
	}
	return ""
}

func (g *PriceGuard) lookupUnderlying(ctx context.Context, q dto.Quote) float64 {
	symbol := q.Underlying
	if symbol == "" {
		spec, err := helper.ParseOCCSymbol(q.Symbol)
		if err != nil {
			return 0
		}
		symbol = spec.Underlying
	}

	uq, _, err := g.underlying.get(ctx, symbol)
	if err != nil || uq == nil || uq.InstrumentType == model.InstrumentOption {
		return 0
	}
	return uq.Price
}

func (g *PriceGuard) reject(ctx context.Context, q dto.Quote, kind, codepath, reason string) error {
	rejErr := &dto.PriceRejectedError{
		Symbol:   q.Symbol,
		Value:    q.Price,
		Kind:     kind,
		Codepath: codepath,
		Reason:   reason,
	}

	g.log.ErrorContextWithAlert(ctx, "Price rejected by validation guard",
		logger.StringField("symbol", q.Symbol),
		logger.FloatField("value", q.Price),
		logger.StringField("expected_kind", kind),
		logger.StringField("codepath", codepath),
		logger.StringField("reason", reason))

	if g.metrics != nil {
		g.metrics.PriceRejections.WithLabelValues(codepath, kind).Inc()
	}

	payload, _ := json.Marshal(q)
	value := q.Price
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	rejection := &model.PriceRejection{
		Symbol:        q.Symbol,
		RejectedValue: value,
		ExpectedKind:  kind,
		Codepath:      codepath,
		Reason:        reason,
		Payload:       payload,
		OccurredAt:    g.clock.Now(),
	}
	if err := g.rejections.Create(ctx, rejection); err != nil {
		g.log.WarnContext(ctx, "Failed to record price rejection", logger.ErrorField(err))
	}
	return rejErr
}
