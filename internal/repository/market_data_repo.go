package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/breaker"
	"golang-options/pkg/httpclient"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/ratelimit"
)

const (
	endpointQuote       = "quote"
	endpointChain       = "chain"
	endpointOptionQuote = "option_quote"
	endpointIndicators  = "indicators"

	throttleLogThreshold = 100 * time.Millisecond
)

type marketDataRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
	limiters   *ratelimit.LimiterStore
	breaker    *breaker.Breaker
	metrics    *metrics.Registry
}

// NewMarketDataRepository returns the REST gateway to the quote provider.
// Every call goes through one shared rate limiter and circuit breaker.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger, registry *metrics.Registry) contract.MarketDataProvider {
	perMinute := cfg.Provider.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	overrides := map[string]ratelimit.Limit{}
	if cfg.Provider.ChainRequestPerMinute > 0 {
		overrides[endpointChain] = ratelimit.PerMinute(cfg.Provider.ChainRequestPerMinute)
	}

	return &marketDataRepository{
		httpClient: httpclient.New(httpclient.Options{
			BaseURL:    cfg.Provider.BaseURL,
			Timeout:    cfg.Provider.Timeout,
			APIKey:     cfg.Provider.APIKey,
			RetryCount: cfg.Provider.RetryCount,
			RetryWait:  cfg.Provider.RetryWait,
		}),
		cfg:        cfg,
		log:        log,
		limiters:   ratelimit.NewLimiterStore(ratelimit.PerMinute(perMinute), overrides),
		breaker:    breaker.New("market_data", cfg.Breaker),
		metrics:    registry,
	}
}

func (r *marketDataRepository) GetQuote(ctx context.Context, symbol string) (*dto.Quote, error) {
	var resp dto.ProviderQuoteResponse
	if err := r.get(ctx, endpointQuote, "/v1/quotes/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return nil, err
	}
	return toQuote(resp), nil
}

func (r *marketDataRepository) GetOptionQuote(ctx context.Context, optionSymbol string) (*dto.Quote, error) {
	var resp dto.ProviderQuoteResponse
	if err := r.get(ctx, endpointOptionQuote, "/v1/options/quotes/"+url.PathEscape(optionSymbol), nil, &resp); err != nil {
		return nil, err
	}
	return toQuote(resp), nil
}

func (r *marketDataRepository) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]dto.OptionContract, error) {
	params := map[string]string{}
	if !expiration.IsZero() {
		params["expiration"] = expiration.Format(time.DateOnly)
	}

	var resp dto.ProviderChainResponse
	if err := r.get(ctx, endpointChain, "/v1/options/"+url.PathEscape(symbol)+"/chain", params, &resp); err != nil {
		return nil, err
	}

	contracts := make([]dto.OptionContract, 0, len(resp.Contracts))
	for _, c := range resp.Contracts {
		exp, err := time.ParseInLocation(time.DateOnly, c.Expiration, time.UTC)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping contract with bad expiration",
				logger.StringField("symbol", c.Symbol),
				logger.StringField("expiration", c.Expiration))
			continue
		}
		contracts = append(contracts, dto.OptionContract{
			Symbol:       c.Symbol,
			Underlying:   resp.Underlying,
			ContractType: model.ContractType(strings.ToLower(c.Type)),
			Strike:       c.Strike,
			Expiration:   exp,
			Delta:        c.Delta,
			Volume:       c.Volume,
			OpenInterest: c.OpenInterest,
			Bid:          c.Bid,
			Ask:          c.Ask,
		})
	}
	return contracts, nil
}

func (r *marketDataRepository) GetIndicators(ctx context.Context, symbol string) (*dto.Indicators, error) {
	var resp dto.ProviderIndicatorsResponse
	if err := r.get(ctx, endpointIndicators, "/v1/indicators/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return nil, err
	}
	return &dto.Indicators{
		Symbol:        resp.Symbol,
		Price:         resp.Price,
		RSI:           resp.RSI,
		MACD:          resp.MACD,
		MACDSignal:    resp.MACDSignal,
		MACDHistogram: resp.MACDHistogram,
		SMA20:         resp.SMA20,
		SMA50:         resp.SMA50,
		SMA200:        resp.SMA200,
		VolumeRatio:   resp.VolumeRatio,
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
	}, nil
}

// get performs one provider call. Every failure, including breaker
// rejections and rate limiter cancellation, is reported as ErrDataUnavailable.
func (r *marketDataRepository) get(ctx context.Context, endpoint, path string, params map[string]string, result interface{}) error {
	waited, err := r.limiters.Wait(ctx, endpoint)
	if err != nil {
		r.observe(endpoint, "rate_limited")
		return fmt.Errorf("%w: %s rate limit wait: %v", dto.ErrDataUnavailable, endpoint, err)
	}
	if waited > throttleLogThreshold {
		r.log.DebugContext(ctx, "Provider call throttled",
			logger.StringField("endpoint", endpoint),
			logger.StringField("waited", waited.String()))
	}

	_, err = r.breaker.Execute(func() (any, error) {
		resp, err := r.httpClient.Get(ctx, httpclient.Request{Path: path, Query: params}, result)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))
		}
		return nil, nil
	})
	if err != nil {
		r.observe(endpoint, "error")
		r.log.WarnContext(ctx, "Market data request failed",
			logger.StringField("endpoint", endpoint),
			logger.StringField("path", path),
			logger.StringField("breaker_state", r.breaker.State()),
			logger.ErrorField(err))
		return fmt.Errorf("%w: %s %s: %v", dto.ErrDataUnavailable, endpoint, path, err)
	}

	r.observe(endpoint, "ok")
	return nil
}

func (r *marketDataRepository) observe(endpoint, result string) {
	if r.metrics != nil {
		r.metrics.ProviderRequests.WithLabelValues(endpoint, result).Inc()
	}
}

func toQuote(resp dto.ProviderQuoteResponse) *dto.Quote {
	q := &dto.Quote{
		Symbol:          resp.Symbol,
		Price:           resp.Price,
		Change:          resp.Change,
		Volume:          resp.Volume,
		High:            resp.High,
		Low:             resp.Low,
		InstrumentType:  model.InstrumentType(strings.ToLower(resp.InstrumentType)),
		Underlying:      resp.Underlying,
		UnderlyingPrice: resp.UnderlyingPrice,
	}
	if resp.Timestamp > 0 {
		q.Timestamp = time.Unix(resp.Timestamp, 0).UTC()
	}
	return q
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
