package service

import (
	"context"
	"fmt"
	"sync"
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu           sync.Mutex
	quotes       map[string]dto.Quote
	optionQuotes map[string]dto.Quote
	chains       map[string][]dto.OptionContract
	indicators   map[string]dto.Indicators
	optionErr    error

	quoteCalls  int
	optionCalls int
	chainCalls  int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		quotes:       make(map[string]dto.Quote),
		optionQuotes: make(map[string]dto.Quote),
		chains:       make(map[string][]dto.OptionContract),
		indicators:   make(map[string]dto.Indicators),
	}
}

func (f *fakeMarket) setStock(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = dto.Quote{Symbol: symbol, Price: price, InstrumentType: model.InstrumentStock}
}

func (f *fakeMarket) setOption(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionQuotes[symbol] = dto.Quote{Symbol: symbol, Price: price, InstrumentType: model.InstrumentOption}
}

func (f *fakeMarket) setOptionQuote(q dto.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionQuotes[q.Symbol] = q
}

func (f *fakeMarket) removeOption(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.optionQuotes, symbol)
}

func (f *fakeMarket) setChain(symbol string, chain ...dto.OptionContract) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chains[symbol] = chain
}

func (f *fakeMarket) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls, f.optionCalls, f.chainCalls = 0, 0, 0
}

func (f *fakeMarket) optionQuoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.optionCalls
}

func (f *fakeMarket) stockQuoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

func (f *fakeMarket) GetQuote(_ context.Context, symbol string) (*dto.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls++
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no quote for %s", dto.ErrDataUnavailable, symbol)
	}
	return &q, nil
}

func (f *fakeMarket) GetChain(_ context.Context, symbol string, expiration time.Time) ([]dto.OptionContract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls++
	chain, ok := f.chains[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no chain for %s", dto.ErrDataUnavailable, symbol)
	}
	if expiration.IsZero() {
		return append([]dto.OptionContract(nil), chain...), nil
	}
	var out []dto.OptionContract
	for _, c := range chain {
		if dto.DaysBetween(c.Expiration, expiration) == 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMarket) GetOptionQuote(_ context.Context, symbol string) (*dto.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionCalls++
	if f.optionErr != nil {
		return nil, f.optionErr
	}
	q, ok := f.optionQuotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no option quote for %s", dto.ErrDataUnavailable, symbol)
	}
	return &q, nil
}

func (f *fakeMarket) GetIndicators(_ context.Context, symbol string) (*dto.Indicators, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ind, ok := f.indicators[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no indicators for %s", dto.ErrDataUnavailable, symbol)
	}
	return &ind, nil
}

// fakeOrders fills at the market's current quote unless told otherwise.
type fakeOrders struct {
	mu        sync.Mutex
	market    *fakeMarket
	reject    string
	err       error
	fillPrice float64
	requests  []dto.OrderRequest
}

func (f *fakeOrders) SubmitOrder(_ context.Context, req dto.OrderRequest) (*dto.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	orderID := fmt.Sprintf("ord-%d", len(f.requests))

	if f.err != nil {
		return nil, f.err
	}
	if f.reject != "" {
		return &dto.OrderResult{OrderID: orderID, Status: dto.OrderStatusRejected, Reason: f.reject}, nil
	}

	price := f.fillPrice
	if price == 0 {
		f.market.mu.Lock()
		if req.Option != nil {
			price = f.market.optionQuotes[req.Option.OptionSymbol].Price
		} else {
			price = f.market.quotes[req.Symbol].Price
		}
		f.market.mu.Unlock()
	}
	return &dto.OrderResult{
		OrderID:        orderID,
		Status:         dto.OrderStatusFilled,
		FillPrice:      price,
		FilledQuantity: req.Quantity,
		FilledAt:       testNow,
	}, nil
}

func (f *fakeOrders) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeCalendar struct {
	mu   sync.Mutex
	open bool
}

func (c *fakeCalendar) IsMarketOpen(time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeCalendar) set(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

type fakeSignals struct {
	confidence float64
	direction  dto.Direction
	err        error
}

func (f *fakeSignals) Evaluate(_ context.Context, symbol string) (*dto.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.Signal{Symbol: symbol, Confidence: f.confidence, Direction: f.direction, EvaluatedAt: testNow}, nil
}

type harness struct {
	cfg      *config.Config
	repo     *repository.Repository
	market   *fakeMarket
	orders   *fakeOrders
	calendar *fakeCalendar
	signals  *fakeSignals
	clock    *clock.Mock
	registry *metrics.Registry
	svc      *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Store: config.Store{SeedAccountBalance: 100000},
		Scheduler: config.Scheduler{
			CycleInterval:       time.Hour,
			MaxConcurrency:      2,
			MaxExecutionRetries: 3,
			HistoryRetention:    30 * 24 * time.Hour,
		},
		Engine: config.Engine{
			PositionCooldown:   5 * time.Minute,
			ContractMultiplier: 100,
			DefaultAccountID:   1,
			DiagnosticsTTL:     time.Hour,
		},
		PriceGuard: config.PriceGuard{MaxOptionPremium: 50, UnderlyingMatchTolerancePct: 2},
		Selector:   config.Selector{MinVolume: 10, MinOpenInterest: 100, MaxSpreadPct: 10},
		TestTrade:  config.TestTrade{MinVolume: 0, MinOpenInterest: 0, MaxSpreadPct: 50},
		Provider:   config.Provider{QuoteCacheTTL: time.Minute},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testConfig()
	market := newFakeMarket()
	orders := &fakeOrders{market: market}
	calendar := &fakeCalendar{open: true}
	signals := &fakeSignals{confidence: 0.8, direction: dto.DirectionBullish}

	repo := repository.NewMemoryRepository()
	repo.MarketDataRepo = market
	repo.OrderRepo = orders
	repo.MarketCalendar = calendar

	clk := clock.NewMock(testNow)
	registry := metrics.New()
	svc := NewService(cfg, logger.NewNop(), repo, cache.NewCache(time.Minute, time.Minute), registry, clk, nil)
	svc.Diagnostics.signals = signals

	_, err := svc.AccountService.EnsureDefault(context.Background())
	require.NoError(t, err)

	return &harness{
		cfg:      cfg,
		repo:     repo,
		market:   market,
		orders:   orders,
		calendar: calendar,
		signals:  signals,
		clock:    clk,
		registry: registry,
		svc:      svc,
	}
}

// contractFixture is a liquid AAPL contract expiring dte days after testNow.
func contractFixture(contractType model.ContractType, strike float64, dte int, bid, ask, delta float64) dto.OptionContract {
	exp := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, dte)
	return dto.OptionContract{
		Symbol:       helper.FormatOCCSymbol("AAPL", exp, contractType, strike),
		Underlying:   "AAPL",
		ContractType: contractType,
		Strike:       strike,
		Expiration:   exp,
		Delta:        delta,
		Volume:       500,
		OpenInterest: 1000,
		Bid:          bid,
		Ask:          ask,
	}
}

// withLongCallMarket lists a 30 DTE 190 call quoted at 3.50 and returns it.
func (h *harness) withLongCallMarket() dto.OptionContract {
	c := contractFixture(model.ContractCall, 190, 30, 3.45, 3.55, 0.5)
	h.market.setChain("AAPL", c)
	h.market.setOption(c.Symbol, 3.50)
	h.market.setStock("AAPL", 188.50)
	return c
}

func (h *harness) createAutomation(t *testing.T, mutate ...func(a *model.Automation)) *model.Automation {
	t.Helper()
	a := &model.Automation{
		Name:            "aapl calls",
		AccountID:       h.cfg.Engine.DefaultAccountID,
		Symbol:          "AAPL",
		StrategyType:    model.StrategyLongCall,
		MinConfidence:   0.6,
		Quantity:        2,
		ProfitTargetPct: 50,
		StopLossPct:     30,
		PreferredDTE:    30,
		MinDTE:          21,
		MaxDTE:          60,
		IsActive:        true,
	}
	for _, m := range mutate {
		m(a)
	}
	require.NoError(t, h.repo.AutomationRepo.Create(context.Background(), a))
	return a
}

func (h *harness) openRequest(c dto.OptionContract, quantity int) dto.OpenRequest {
	spec := c.Spec()
	return dto.OpenRequest{
		AccountID: h.cfg.Engine.DefaultAccountID,
		Symbol:    c.Underlying,
		Option:    &spec,
		Side:      model.SideLong,
		Quantity:  quantity,
		Source:    model.TradeSourceManual,
	}
}

func (h *harness) balance(t *testing.T) string {
	t.Helper()
	acc, err := h.repo.AccountRepo.FindByID(context.Background(), h.cfg.Engine.DefaultAccountID)
	require.NoError(t, err)
	return acc.Balance.StringFixed(2)
}

func (h *harness) setLimits(t *testing.T, limits model.RiskLimits) {
	t.Helper()
	ctx := context.Background()
	acc, err := h.repo.AccountRepo.FindByID(ctx, h.cfg.Engine.DefaultAccountID)
	require.NoError(t, err)
	acc.RiskLimits = limits
	require.NoError(t, h.repo.AccountRepo.Update(ctx, acc))
}

// counterValue sums a counter family's samples whose labels include want.
func counterValue(t *testing.T, gatherer prometheus.Gatherer, name string, want map[string]string) float64 {
	t.Helper()
	families, err := gatherer.Gather()
	require.NoError(t, err)

	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			matched := 0
			for _, l := range m.GetLabel() {
				if v, ok := want[l.GetName()]; ok && v == l.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
