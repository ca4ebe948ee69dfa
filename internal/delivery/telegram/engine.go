package telegram

import (
	"context"
	"fmt"
	"strings"

	"golang-options/internal/dto"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleStatus(ctx context.Context, c telebot.Context) error {
	status := t.service.SchedulerService.Status(ctx)
	state, err := t.service.AccountService.State(ctx, t.cfg.Engine.DefaultAccountID)
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatStatus(status, state))
}

func (t *TelegramBotHandler) handleRun(ctx context.Context, c telebot.Context) error {
	result, err := t.service.SchedulerService.RunCycleNow(ctx)
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatCycle(result))
}

func formatStatus(status dto.EngineStatus, state dto.AccountState) string {
	sb := &strings.Builder{}
	engine := "🔴 stopped"
	if status.Running {
		engine = "🟢 running"
	}
	sb.WriteString("⚙️ <b>Engine</b>\n")
	sb.WriteString(fmt.Sprintf(" • State: %s\n", engine))
	sb.WriteString(fmt.Sprintf(" • Market: %s\n", status.MarketStatus))
	sb.WriteString(fmt.Sprintf(" • Cycles completed: %d\n", status.CyclesCompleted))
	if status.CycleInProgress {
		sb.WriteString(" • A cycle is running now\n")
	}
	if status.LastCycleAt != nil {
		sb.WriteString(fmt.Sprintf(" • Last cycle: %s\n", status.LastCycleAt.UTC().Format("01/02 15:04 MST")))
	}
	if status.NextCycleAt != nil {
		sb.WriteString(fmt.Sprintf(" • Next cycle: %s\n", status.NextCycleAt.UTC().Format("01/02 15:04 MST")))
	}

	sb.WriteString("\n💰 <b>Account</b>\n")
	sb.WriteString(fmt.Sprintf(" • Balance: $%s\n", state.Balance.StringFixed(2)))
	sb.WriteString(fmt.Sprintf(" • Open positions: %d\n", state.OpenPositions))
	sb.WriteString(fmt.Sprintf(" • Capital at risk: $%s\n", state.CapitalAtRisk.StringFixed(2)))
	sb.WriteString(fmt.Sprintf(" • Unrealized PnL: $%s\n", state.UnrealizedPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf(" • Realized today: $%s", state.RealizedPnLToday.StringFixed(2)))
	return sb.String()
}

func formatCycle(result *dto.CycleResult) string {
	sb := &strings.Builder{}
	sb.WriteString(fmt.Sprintf("🔄 <b>Cycle %s</b>\n", shortID(result.CycleID)))
	if !result.MarketOpen {
		sb.WriteString("Market is closed, no orders were submitted.\n")
	}
	if len(result.Outcomes) == 0 {
		sb.WriteString("\nNo active automations.")
		return sb.String()
	}

	sb.WriteString("\n")
	for _, o := range result.Outcomes {
		sb.WriteString(fmt.Sprintf("%s #%d %s", outcomeIcon(o.Outcome), o.AutomationID, o.Outcome))
		if o.PositionID != 0 {
			sb.WriteString(fmt.Sprintf(" (position #%d)", o.PositionID))
		}
		if o.PositionsClosed > 0 {
			sb.WriteString(fmt.Sprintf(", closed %d", o.PositionsClosed))
		}
		sb.WriteString("\n")
		for _, reason := range o.BlockingReasons {
			sb.WriteString(fmt.Sprintf("   • %s\n", escape(reason)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func outcomeIcon(outcome string) string {
	switch outcome {
	case dto.OutcomeOpened:
		return "🟢"
	case dto.OutcomeFailed:
		return "🔴"
	case dto.OutcomeNotReady:
		return "🟡"
	default:
		return "⚪"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
