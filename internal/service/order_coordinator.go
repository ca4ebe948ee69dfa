package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/internal/strategy"
	"golang-options/pkg/clock"
	"golang-options/pkg/common"
	"golang-options/pkg/keylock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCoordinator is the only writer of balances, positions and trades.
// Opens serialise on the account; closes on the position, then the account.
type OrderCoordinator struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *repository.Repository
	fetcher  *PremiumFetcher
	risk     *RiskManager
	locks    *keylock.KeyLock
	clock    clock.Clock
	metrics  *metrics.Registry
	notifier contract.Notifier
}

func NewOrderCoordinator(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	fetcher *PremiumFetcher,
	risk *RiskManager,
	locks *keylock.KeyLock,
	clk clock.Clock,
	registry *metrics.Registry,
	notifier contract.Notifier,
) *OrderCoordinator {
	return &OrderCoordinator{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		fetcher:  fetcher,
		risk:     risk,
		locks:    locks,
		clock:    clk,
		metrics:  registry,
		notifier: notifier,
	}
}

// AccountState builds the risk view of an account. A stale start-of-day
// snapshot is rolled in the returned view only; it is persisted by the next
// ledger write.
func (c *OrderCoordinator) AccountState(ctx context.Context, accountID uint, automationID *uint) (dto.AccountState, error) {
	acc, err := c.repo.AccountRepo.FindByID(ctx, accountID)
	if err != nil {
		return dto.AccountState{}, err
	}
	acc.RollStartOfDay(c.clock.Now())

	positions, err := c.repo.PositionRepo.Get(ctx, model.GetPositionsParam{AccountID: &accountID, OpenOnly: true})
	if err != nil {
		return dto.AccountState{}, err
	}

	realized, err := c.repo.TradeRepo.SumRealizedPnLSince(ctx, accountID, acc.StartOfDayDate)
	if err != nil {
		return dto.AccountState{}, err
	}

	mult := c.cfg.Engine.ContractMultiplier
	state := dto.AccountState{
		AccountID:         accountID,
		Balance:           acc.Balance,
		StartOfDayBalance: acc.StartOfDayBalance,
		RealizedPnLToday:  realized,
		UnrealizedPnL:     decimal.Zero,
		CapitalAtRisk:     decimal.Zero,
		OpenPositions:     len(positions),
		Limits:            acc.RiskLimits,
	}
	for i := range positions {
		p := &positions[i]
		state.UnrealizedPnL = state.UnrealizedPnL.Add(p.UnrealizedPnL)
		state.CapitalAtRisk = state.CapitalAtRisk.Add(p.CapitalAtRisk(mult))
		if automationID != nil && p.AutomationID != nil && *p.AutomationID == *automationID {
			state.AutomationOpenPositions++
		}
	}
	return state, nil
}

// Open prices, authorises, submits and books a new position.
func (c *OrderCoordinator) Open(ctx context.Context, req dto.OpenRequest) (*dto.Fill, error) {
	if err := validateOpenRequest(req); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(fmt.Sprintf(common.LOCK_ACCOUNT, req.AccountID))
	defer unlock()

	mult := c.cfg.Engine.ContractMultiplier
	quoted, err := c.sizeEntry(ctx, req)
	if err != nil {
		return nil, err
	}
	sizing := quoted.sizing

	state, err := c.AccountState(ctx, req.AccountID, req.AutomationID)
	if err != nil {
		return nil, err
	}
	proposed := dto.ProposedTrade{
		AutomationID:  req.AutomationID,
		AllowMultiple: req.AllowMultiple,
		Notional:      sizing.Notional,
		RequiredCash:  sizing.RequiredCash,
	}
	if err := c.risk.Authorize(state, proposed); err != nil {
		c.log.InfoContext(ctx, "Trade denied by risk manager",
			logger.StringField("symbol", req.Symbol),
			logger.ErrorField(err))
		return nil, err
	}

	action := strategy.OpenAction(req.Side)
	orderReq := dto.OrderRequest{
		ClientOrderID:  uuid.NewString(),
		AccountID:      req.AccountID,
		Symbol:         req.Symbol,
		InstrumentType: model.InstrumentStock,
		Option:         req.Option,
		Action:         action,
		Quantity:       req.Quantity,
		ReferencePrice: quoted.reference,
	}
	if req.Option != nil {
		orderReq.InstrumentType = model.InstrumentOption
	}

	result, err := c.submit(ctx, orderReq)
	if err != nil {
		return nil, err
	}

	// Once the provider has filled, the booking must complete regardless of
	// the caller's cancellation.
	txCtx := context.WithoutCancel(ctx)

	var entry decimal.Decimal
	if req.Option != nil {
		premium, err := c.fetcher.PremiumFromFill(txCtx, *req.Option, result.FillPrice, CodepathEntryFill)
		if err != nil {
			return nil, c.fillRejected(txCtx, result, err)
		}
		entry = premium.Value()
		sizing = strategy.SizeOption(req.Side, req.Option.ContractType, entry, req.Option.Strike, quoted.underlying, req.Quantity, mult)
	} else {
		price, err := c.fetcher.StockPriceFromFill(txCtx, req.Symbol, result.FillPrice, CodepathEntryFill)
		if err != nil {
			return nil, c.fillRejected(txCtx, result, err)
		}
		entry = price.Value()
		sizing = strategy.SizeStock(entry, req.Quantity)
	}

	now := c.clock.Now()
	pos := newPosition(req, entry, sizing.Collateral, now, c.cfg.Engine.PositionCooldown)
	trade := &model.Trade{
		AccountID:  req.AccountID,
		Action:     action,
		Price:      entry,
		Quantity:   req.Quantity,
		ExecutedAt: now,
		Source:     req.Source,
		OrderID:    result.OrderID,
	}

	var balance decimal.Decimal
	err = c.repo.UnitOfWork.Run(txCtx, func(txCtx context.Context, opts ...utils.DBOption) error {
		acc, err := c.repo.AccountRepo.FindByID(txCtx, req.AccountID, append(opts, utils.WithLockForUpdate())...)
		if err != nil {
			return err
		}
		acc.RollStartOfDay(now)
		if acc.Balance.LessThan(sizing.RequiredCash) {
			return dto.NewRiskDeniedError(RiskCheckFunds,
				fmt.Sprintf("Insufficient funds at fill: requires $%s but balance is $%s",
					sizing.RequiredCash.StringFixed(2), acc.Balance.StringFixed(2)),
				dto.ErrInsufficientFunds)
		}
		acc.Balance = acc.Balance.Add(sizing.CashDelta)
		if err := c.repo.AccountRepo.Update(txCtx, acc, opts...); err != nil {
			return err
		}

		if err := c.repo.PositionRepo.Create(txCtx, pos, opts...); err != nil {
			return err
		}

		trade.PositionID = pos.ID
		if err := c.repo.TradeRepo.Create(txCtx, trade, opts...); err != nil {
			return err
		}
		balance = acc.Balance
		return nil
	})
	if err != nil {
		if !errors.Is(err, dto.ErrInsufficientFunds) {
			err = fmt.Errorf("%w: open %s: %w", dto.ErrTransactionFailure, req.Symbol, err)
		}
		c.log.ErrorContextWithAlert(txCtx, "Order filled but booking failed",
			logger.StringField("order_id", result.OrderID),
			logger.StringField("symbol", req.Symbol),
			logger.ErrorField(err))
		return nil, err
	}

	fill := &dto.Fill{
		PositionID:   pos.ID,
		TradeID:      trade.ID,
		OrderID:      result.OrderID,
		Symbol:       pos.Symbol,
		OptionSymbol: pos.OptionSymbol,
		Action:       action,
		Quantity:     pos.Quantity,
		Price:        entry,
		CashDelta:    sizing.CashDelta,
		Balance:      balance,
		ExecutedAt:   now,
	}

	c.log.InfoContext(ctx, "Position opened",
		logger.PositionField(pos.ID),
		logger.StringField("symbol", pos.Symbol),
		logger.StringField("option_symbol", pos.OptionSymbol),
		logger.StringField("side", string(pos.Side)),
		logger.IntField("quantity", pos.Quantity),
		logger.DecimalField("price", entry),
		logger.StringField("cash_delta", sizing.CashDelta.StringFixed(2)))
	c.notify(txCtx, fmt.Sprintf("✅ Opened %s %s x%d @ $%s\nCash %s, balance $%s",
		pos.Side, displaySymbol(pos), pos.Quantity, entry.StringFixed(2), sizing.CashDelta.StringFixed(2), balance.StringFixed(2)))
	return fill, nil
}

// Close exits an open position at a freshly fetched price.
func (c *OrderCoordinator) Close(ctx context.Context, positionID uint, reason string, source model.TradeSource) (*dto.Fill, error) {
	unlockPos := c.locks.Lock(fmt.Sprintf(common.LOCK_POSITION, positionID))
	defer unlockPos()

	pos, err := c.repo.PositionRepo.FindByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: position %d", dto.ErrPositionClosed, positionID)
	}

	unlockAcc := c.locks.Lock(fmt.Sprintf(common.LOCK_ACCOUNT, pos.AccountID))
	defer unlockAcc()

	action := strategy.CloseAction(pos.Side)
	orderReq := dto.OrderRequest{
		ClientOrderID:  uuid.NewString(),
		AccountID:      pos.AccountID,
		Symbol:         pos.Symbol,
		InstrumentType: pos.InstrumentType,
		Action:         action,
		Quantity:       pos.Quantity,
	}

	var spec dto.OptionSpec
	if pos.IsOption() {
		spec = positionSpec(pos)
		premium, err := c.fetcher.FetchFreshPremium(ctx, spec, CodepathExitPremium)
		if err != nil {
			c.log.WarnContext(ctx, "Exit aborted, no fresh premium",
				logger.PositionField(pos.ID),
				logger.ErrorField(err))
			return nil, fmt.Errorf("close position %d: %w", pos.ID, err)
		}
		orderReq.Option = &spec
		orderReq.ReferencePrice = premium.Value()
	} else {
		quote, err := c.fetcher.CachedUnderlyingQuote(ctx, pos.Symbol, CodepathStockQuote)
		if err != nil {
			return nil, fmt.Errorf("close position %d: %w", pos.ID, err)
		}
		orderReq.ReferencePrice = quote.Value()
	}

	result, err := c.submit(ctx, orderReq)
	if err != nil {
		return nil, err
	}

	txCtx := context.WithoutCancel(ctx)

	var exit decimal.Decimal
	if pos.IsOption() {
		premium, err := c.fetcher.PremiumFromFill(txCtx, spec, result.FillPrice, CodepathExitFill)
		if err != nil {
			return nil, c.fillRejected(txCtx, result, err)
		}
		exit = premium.Value()
	} else {
		price, err := c.fetcher.StockPriceFromFill(txCtx, pos.Symbol, result.FillPrice, CodepathExitFill)
		if err != nil {
			return nil, c.fillRejected(txCtx, result, err)
		}
		exit = price.Value()
	}

	mult := c.cfg.Engine.ContractMultiplier
	realized := pos.PnL(exit, mult).Round(2)
	cash := strategy.CloseCashDelta(pos, exit, mult)
	now := c.clock.Now()
	trade := &model.Trade{
		PositionID:  pos.ID,
		AccountID:   pos.AccountID,
		Action:      action,
		Price:       exit,
		Quantity:    pos.Quantity,
		ExecutedAt:  now,
		Source:      source,
		RealizedPnL: decimal.NewNullDecimal(realized),
		OrderID:     result.OrderID,
	}

	var balance decimal.Decimal
	err = c.repo.UnitOfWork.Run(txCtx, func(txCtx context.Context, opts ...utils.DBOption) error {
		current, err := c.repo.PositionRepo.FindByID(txCtx, pos.ID, append(opts, utils.WithLockForUpdate())...)
		if err != nil {
			return err
		}
		if !current.IsOpen() {
			return fmt.Errorf("%w: position %d", dto.ErrPositionClosed, pos.ID)
		}

		acc, err := c.repo.AccountRepo.FindByID(txCtx, pos.AccountID, append(opts, utils.WithLockForUpdate())...)
		if err != nil {
			return err
		}
		acc.RollStartOfDay(now)
		acc.Balance = acc.Balance.Add(cash)
		if err := c.repo.AccountRepo.Update(txCtx, acc, opts...); err != nil {
			return err
		}

		current.Status = model.PositionStatusClosed
		current.ClosedAt = &now
		current.ExitPrice = decimal.NewNullDecimal(exit)
		current.CurrentPrice = decimal.NewNullDecimal(exit)
		current.RealizedPnL = decimal.NewNullDecimal(realized)
		current.UnrealizedPnL = decimal.Zero
		current.ExitReason = reason
		current.LastRefreshedAt = &now
		if err := c.repo.PositionRepo.Update(txCtx, current, opts...); err != nil {
			return err
		}

		if err := c.repo.TradeRepo.Create(txCtx, trade, opts...); err != nil {
			return err
		}
		balance = acc.Balance
		return nil
	})
	if err != nil {
		if !errors.Is(err, dto.ErrPositionClosed) {
			err = fmt.Errorf("%w: close position %d: %w", dto.ErrTransactionFailure, pos.ID, err)
		}
		c.log.ErrorContextWithAlert(txCtx, "Exit order filled but booking failed",
			logger.StringField("order_id", result.OrderID),
			logger.PositionField(pos.ID),
			logger.ErrorField(err))
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.PositionsClosed.WithLabelValues(reason).Inc()
	}

	c.log.InfoContext(ctx, "Position closed",
		logger.PositionField(pos.ID),
		logger.StringField("symbol", pos.Symbol),
		logger.StringField("reason", reason),
		logger.DecimalField("exit_price", exit),
		logger.DecimalField("realized_pnl", realized))
	c.notify(txCtx, fmt.Sprintf("🔒 Closed %s x%d @ $%s (%s)\nRealized P/L $%s, balance $%s",
		displaySymbol(pos), pos.Quantity, exit.StringFixed(2), reason, realized.StringFixed(2), balance.StringFixed(2)))

	return &dto.Fill{
		PositionID:   pos.ID,
		TradeID:      trade.ID,
		OrderID:      result.OrderID,
		Symbol:       pos.Symbol,
		OptionSymbol: pos.OptionSymbol,
		Action:       action,
		Quantity:     pos.Quantity,
		Price:        exit,
		CashDelta:    cash,
		Balance:      balance,
		RealizedPnL:  decimal.NewNullDecimal(realized),
		ExitReason:   reason,
		ExecutedAt:   now,
	}, nil
}

// entryQuote is the pre-trade sizing at the freshly quoted price.
type entryQuote struct {
	sizing     strategy.Sizing
	reference  decimal.Decimal
	underlying float64
}

func (c *OrderCoordinator) sizeEntry(ctx context.Context, req dto.OpenRequest) (entryQuote, error) {
	mult := c.cfg.Engine.ContractMultiplier
	if req.Option == nil {
		quote, err := c.fetcher.CachedUnderlyingQuote(ctx, req.Symbol, CodepathStockQuote)
		if err != nil {
			return entryQuote{}, err
		}
		return entryQuote{sizing: strategy.SizeStock(quote.Value(), req.Quantity), reference: quote.Value()}, nil
	}

	premium, err := c.fetcher.FetchFreshPremium(ctx, *req.Option, CodepathEntryPremium)
	if err != nil {
		return entryQuote{}, err
	}

	// Covered calls are collateralised by the shares' value.
	underlying := 0.0
	if req.Side == model.SideShort && req.Option.ContractType == model.ContractCall {
		quote, err := c.fetcher.CachedUnderlyingQuote(ctx, req.Option.Underlying, CodepathStockQuote)
		if err != nil {
			return entryQuote{}, err
		}
		underlying = quote.Value().InexactFloat64()
	}
	return entryQuote{
		sizing:     strategy.SizeOption(req.Side, req.Option.ContractType, premium.Value(), req.Option.Strike, underlying, req.Quantity, mult),
		reference:  premium.Value(),
		underlying: underlying,
	}, nil
}

func (c *OrderCoordinator) submit(ctx context.Context, req dto.OrderRequest) (*dto.OrderResult, error) {
	result, err := c.repo.OrderRepo.SubmitOrder(ctx, req)
	if err != nil {
		c.observeOrder(req.Action, "error")
		if !errors.Is(err, dto.ErrExecution) {
			err = fmt.Errorf("%w: %w", dto.ErrExecution, err)
		}
		return nil, err
	}
	if result == nil {
		c.observeOrder(req.Action, "error")
		return nil, fmt.Errorf("%w: empty order result", dto.ErrExecution)
	}
	if result.Status != dto.OrderStatusFilled {
		c.observeOrder(req.Action, "rejected")
		return nil, fmt.Errorf("%w: %s", dto.ErrProviderRejected, result.Reason)
	}
	if result.FilledQuantity != 0 && result.FilledQuantity != req.Quantity {
		c.observeOrder(req.Action, "error")
		return nil, fmt.Errorf("%w: partial fill %d of %d", dto.ErrExecution, result.FilledQuantity, req.Quantity)
	}
	c.observeOrder(req.Action, "filled")
	return result, nil
}

func (c *OrderCoordinator) fillRejected(ctx context.Context, result *dto.OrderResult, err error) error {
	c.log.ErrorContextWithAlert(ctx, "Provider fill price failed validation",
		logger.StringField("order_id", result.OrderID),
		logger.FloatField("fill_price", result.FillPrice),
		logger.ErrorField(err))
	return fmt.Errorf("%w: invalid fill price for order %s: %w", dto.ErrExecution, result.OrderID, err)
}

func (c *OrderCoordinator) observeOrder(action model.TradeAction, result string) {
	if c.metrics != nil {
		c.metrics.OrdersTotal.WithLabelValues(string(action), result).Inc()
	}
}

func (c *OrderCoordinator) notify(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}
	utils.GoSafe(func() {
		if err := c.notifier.SendMessage(ctx, message); err != nil {
			c.log.DebugContext(ctx, "Notification not sent", logger.ErrorField(err))
		}
	})
}

func validateOpenRequest(req dto.OpenRequest) error {
	var problems []string
	if req.AccountID == 0 {
		problems = append(problems, "account id is required")
	}
	if !model.IsValidTicker(req.Symbol) {
		problems = append(problems, fmt.Sprintf("symbol %q must be 1-5 uppercase letters", req.Symbol))
	}
	if req.Quantity < 1 {
		problems = append(problems, "quantity must be at least 1")
	}
	if req.Side != model.SideLong && req.Side != model.SideShort {
		problems = append(problems, fmt.Sprintf("unknown side %q", req.Side))
	}
	if req.Option == nil && req.Side == model.SideShort {
		problems = append(problems, "short stock positions are not supported")
	}
	if req.Option != nil && req.Option.Underlying != req.Symbol {
		problems = append(problems, "option underlying must match symbol")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", dto.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func newPosition(req dto.OpenRequest, entry, collateral decimal.Decimal, now time.Time, cooldown time.Duration) *model.Position {
	pos := &model.Position{
		AutomationID:     req.AutomationID,
		AccountID:        req.AccountID,
		Symbol:           req.Symbol,
		InstrumentType:   model.InstrumentStock,
		Side:             req.Side,
		Quantity:         req.Quantity,
		EntryPrice:       entry,
		CurrentPrice:     decimal.NewNullDecimal(entry),
		CollateralAmount: collateral,
		OpenedAt:         now,
		CooldownUntil:    now.Add(cooldown),
		Status:           model.PositionStatusCooldown,
		UnrealizedPnL:    decimal.Zero,
		LastRefreshedAt:  &now,
	}
	if req.Option != nil {
		exp := req.Option.Expiration
		pos.InstrumentType = model.InstrumentOption
		pos.OptionSymbol = req.Option.OptionSymbol
		pos.ContractType = req.Option.ContractType
		pos.Strike = decimal.NewNullDecimal(decimal.NewFromFloat(req.Option.Strike))
		pos.Expiration = &exp
	}
	if req.Signal != nil {
		if raw, err := json.Marshal(req.Signal); err == nil {
			pos.EntrySignal = raw
		}
	}
	return pos
}

func positionSpec(pos *model.Position) dto.OptionSpec {
	spec := dto.OptionSpec{
		Underlying:   pos.Symbol,
		OptionSymbol: pos.OptionSymbol,
		ContractType: pos.ContractType,
	}
	if pos.Strike.Valid {
		spec.Strike = pos.Strike.Decimal.InexactFloat64()
	}
	if pos.Expiration != nil {
		spec.Expiration = *pos.Expiration
	}
	return spec
}

func displaySymbol(pos *model.Position) string {
	if pos.OptionSymbol != "" {
		return pos.OptionSymbol
	}
	return pos.Symbol
}
