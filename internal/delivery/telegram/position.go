package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/strategy"
	"golang-options/pkg/utils"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handlePositions(ctx context.Context, c telebot.Context) error {
	positions, err := t.service.PositionService.List(ctx, dto.ListPositionsQuery{Status: "open"})
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatPositions(positions))
}

func (t *TelegramBotHandler) handleClose(ctx context.Context, c telebot.Context) error {
	id, ok := idArg(c)
	if !ok {
		return t.reply(ctx, c, "Usage: /close &lt;position id&gt;")
	}

	fill, err := t.service.PositionService.Close(ctx, id, model.ExitReasonManual)
	switch {
	case errors.Is(err, dto.ErrNotFound):
		return t.reply(ctx, c, fmt.Sprintf("Position #%d not found.", id))
	case errors.Is(err, dto.ErrPositionClosed):
		return t.reply(ctx, c, fmt.Sprintf("Position #%d is already closed.", id))
	case errors.Is(err, dto.ErrPriceFetchFailed):
		return t.reply(ctx, c, fmt.Sprintf("No valid premium for position #%d right now, it stays open.", id))
	case err != nil:
		return t.replyError(ctx, c, err)
	}

	message := fmt.Sprintf("✅ Closed position #%d at $%s", id, fill.Price.StringFixed(2))
	if fill.RealizedPnL.Valid {
		message += fmt.Sprintf("\nRealized PnL: $%s", fill.RealizedPnL.Decimal.StringFixed(2))
	}
	return t.reply(ctx, c, message)
}

func formatPositions(positions []model.Position) string {
	if len(positions) == 0 {
		return "📭 No open positions."
	}

	sb := &strings.Builder{}
	sb.WriteString(fmt.Sprintf("📊 <b>Open positions</b> (%d)\n", len(positions)))
	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("\n<b>#%d %s</b> %s\n", p.ID, positionLabel(p), p.Status))
		sb.WriteString(fmt.Sprintf(" • %s %d @ $%s", p.Side, p.Quantity, p.EntryPrice.StringFixed(2)))
		if p.CurrentPrice.Valid {
			sb.WriteString(fmt.Sprintf(" ➜ $%s (%s)", p.CurrentPrice.Decimal.StringFixed(2),
				utils.FormatPercentage(strategy.ReturnPct(&p, p.CurrentPrice.Decimal))))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(" • Unrealized: %s $%s\n", pnlIcon(p.UnrealizedPnL.Sign()), p.UnrealizedPnL.StringFixed(2)))
		if p.AutomationID != nil {
			sb.WriteString(fmt.Sprintf(" • Automation #%d\n", *p.AutomationID))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func positionLabel(p model.Position) string {
	if p.IsOption() {
		return p.OptionSymbol
	}
	return p.Symbol
}

func pnlIcon(sign int) string {
	if sign > 0 {
		return "🟢"
	}
	if sign < 0 {
		return "🔴"
	}
	return "⚪"
}

func escape(s string) string {
	return html.EscapeString(s)
}
