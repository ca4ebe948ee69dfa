package repository

import (
	"context"
	"fmt"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"

	"github.com/google/uuid"
)

type paperBroker struct {
	cfg      *config.Config
	log      *logger.Logger
	market   contract.MarketDataProvider
	calendar contract.MarketCalendar
	clock    clock.Clock
}

// NewPaperBroker simulates an execution venue. Orders fill in full at their
// reference price, or at the provider's current quote when none is given, and
// are declined while the market is closed.
func NewPaperBroker(cfg *config.Config, log *logger.Logger, market contract.MarketDataProvider, calendar contract.MarketCalendar, clk clock.Clock) contract.OrderProvider {
	return &paperBroker{
		cfg:      cfg,
		log:      log,
		market:   market,
		calendar: calendar,
		clock:    clk,
	}
}

func (b *paperBroker) SubmitOrder(ctx context.Context, req dto.OrderRequest) (*dto.OrderResult, error) {
	orderID := uuid.NewString()
	now := b.clock.Now()

	if b.cfg.PaperBroker.RejectWhenMarketClosed && !b.calendar.IsMarketOpen(now) {
		b.log.InfoContext(ctx, "Paper order rejected, market closed",
			logger.StringField("client_order_id", req.ClientOrderID),
			logger.StringField("symbol", req.Symbol))
		return &dto.OrderResult{OrderID: orderID, Status: dto.OrderStatusRejected, Reason: "market closed"}, nil
	}
	if req.Quantity <= 0 {
		return &dto.OrderResult{OrderID: orderID, Status: dto.OrderStatusRejected, Reason: "quantity must be positive"}, nil
	}

	symbol := req.Symbol
	switch req.InstrumentType {
	case model.InstrumentOption:
		if req.Option == nil {
			return &dto.OrderResult{OrderID: orderID, Status: dto.OrderStatusRejected, Reason: "missing option contract"}, nil
		}
		symbol = req.Option.OptionSymbol
	case model.InstrumentStock:
	default:
		return &dto.OrderResult{OrderID: orderID, Status: dto.OrderStatusRejected, Reason: fmt.Sprintf("unsupported instrument %q", req.InstrumentType)}, nil
	}

	price, err := b.fillPrice(ctx, req, symbol)
	if err != nil {
		return nil, err
	}

	b.log.InfoContext(ctx, "Paper order filled",
		logger.StringField("order_id", orderID),
		logger.StringField("client_order_id", req.ClientOrderID),
		logger.StringField("symbol", symbol),
		logger.StringField("action", string(req.Action)),
		logger.IntField("quantity", req.Quantity),
		logger.FloatField("price", price))

	return &dto.OrderResult{
		OrderID:        orderID,
		Status:         dto.OrderStatusFilled,
		FillPrice:      price,
		FilledQuantity: req.Quantity,
		FilledAt:       now,
	}, nil
}

// fillPrice uses the caller's validated reference price when there is one.
// Quote endpoints can return the wrong instrument's price, so the live quote
// is only a fallback.
func (b *paperBroker) fillPrice(ctx context.Context, req dto.OrderRequest, symbol string) (float64, error) {
	if req.ReferencePrice.IsPositive() {
		return req.ReferencePrice.InexactFloat64(), nil
	}

	var (
		quote *dto.Quote
		err   error
	)
	if req.InstrumentType == model.InstrumentOption {
		quote, err = b.market.GetOptionQuote(ctx, symbol)
	} else {
		quote, err = b.market.GetQuote(ctx, symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: paper fill quote: %v", dto.ErrExecution, err)
	}
	return quote.Price, nil
}
