package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleAutomations(ctx context.Context, c telebot.Context) error {
	automations, err := t.service.AutomationService.List(ctx, model.GetAutomationsParam{})
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatAutomations(automations))
}

func (t *TelegramBotHandler) handleDiagnostics(ctx context.Context, c telebot.Context) error {
	id, ok := idArg(c)
	if !ok {
		return t.reply(ctx, c, "Usage: /diagnostics &lt;automation id&gt;")
	}

	report, err := t.service.AutomationService.Diagnostics(ctx, id)
	if errors.Is(err, dto.ErrNotFound) {
		return t.reply(ctx, c, fmt.Sprintf("Automation #%d not found.", id))
	}
	if err != nil {
		return t.replyError(ctx, c, err)
	}
	return t.reply(ctx, c, formatDiagnostics(report))
}

func formatAutomations(automations []model.Automation) string {
	if len(automations) == 0 {
		return "📭 No automations yet."
	}

	sb := &strings.Builder{}
	sb.WriteString(fmt.Sprintf("🤖 <b>Automations</b> (%d)\n\n", len(automations)))
	for _, a := range automations {
		icon := "⏸"
		if a.IsActive {
			icon = "▶️"
		}
		sb.WriteString(fmt.Sprintf("%s #%d %s %s x%d", icon, a.ID, a.Symbol, a.StrategyType, a.Quantity))
		if a.ConsecutiveFailures > 0 {
			sb.WriteString(fmt.Sprintf(" ⚠️ %d failures", a.ConsecutiveFailures))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDiagnostics(report *dto.DiagnosticsReport) string {
	sb := &strings.Builder{}
	if report.IsReady {
		sb.WriteString(fmt.Sprintf("✅ <b>Automation #%d is ready to trade</b>\n", report.AutomationID))
	} else {
		sb.WriteString(fmt.Sprintf("🚫 <b>Automation #%d is blocked</b>\n", report.AutomationID))
	}

	if report.Signal != nil {
		sb.WriteString(fmt.Sprintf("\nSignal: %s %.2f\n", report.Signal.Direction, report.Signal.Confidence))
	}
	if report.SelectedContract != nil {
		sb.WriteString(fmt.Sprintf("Contract: %s\n", report.SelectedContract.Symbol))
	}

	if len(report.BlockingReasons) > 0 {
		sb.WriteString("\nBlocking reasons:\n")
		for _, reason := range report.BlockingReasons {
			sb.WriteString(fmt.Sprintf(" • %s\n", escape(reason)))
		}
	}

	sb.WriteString("\nChecks:\n")
	for _, check := range report.Checks {
		icon := "✅"
		if !check.Passed {
			icon = "❌"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", icon, check.Name))
	}
	sb.WriteString(fmt.Sprintf("\n<i>%s</i>", report.GeneratedAt.UTC().Format("01/02 15:04 MST")))
	return sb.String()
}
