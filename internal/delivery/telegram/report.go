package telegram

import (
	"context"
	"fmt"
	"strings"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"github.com/shopspring/decimal"
	"gopkg.in/telebot.v3"
)

// reportDetailLimit caps the per position lines of /report.
const reportDetailLimit = 10

func (t *TelegramBotHandler) handleReport(ctx context.Context, c telebot.Context) error {
	positions, err := t.service.PositionService.List(ctx, dto.ListPositionsQuery{Status: string(model.PositionStatusClosed)})
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatReport(positions))
}

func formatReport(positions []model.Position) string {
	if len(positions) == 0 {
		return "📭 <b>No closed positions yet</b>\n\nThe report fills in once a position has been exited."
	}

	var (
		wins, losses int
		total        = decimal.Zero
	)
	body := &strings.Builder{}
	body.WriteString("\n\n🔎 Latest exits:\n")
	for i := len(positions) - 1; i >= 0; i-- {
		p := positions[i]
		pnl := p.RealizedPnL.Decimal
		total = total.Add(pnl)
		if pnl.IsPositive() {
			wins++
		} else {
			losses++
		}

		if len(positions)-1-i >= reportDetailLimit {
			continue
		}
		exitPrice := "-"
		if p.ExitPrice.Valid {
			exitPrice = p.ExitPrice.Decimal.StringFixed(2)
		}
		body.WriteString(fmt.Sprintf("\n<b>#%d %s</b>\n", p.ID, positionLabel(p)))
		body.WriteString(fmt.Sprintf("💰 %s ➜ %s (%s)\n", p.EntryPrice.StringFixed(2), exitPrice, p.ExitReason))
		body.WriteString(fmt.Sprintf("📈 PnL: %s $%s\n", pnlIcon(pnl.Sign()), pnl.StringFixed(2)))
	}

	sb := &strings.Builder{}
	sb.WriteString("📊 <b>Trading report</b>\n")
	sb.WriteString(fmt.Sprintf("\n🟢 <b>Win</b>: %d | 🔴 Lose: %d", wins, losses))
	sb.WriteString(fmt.Sprintf("\n📈 <b>Realized PnL</b>: $%s", total.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("\n🏆 <b>Win rate</b>: %.2f%%", float64(wins)/float64(len(positions))*100))
	sb.WriteString(body.String())
	return strings.TrimRight(sb.String(), "\n")
}
