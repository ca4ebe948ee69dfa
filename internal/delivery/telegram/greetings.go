package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

const helpCommands = `/status - engine state, market and account
/run - run one cycle now
/automations - list automations
/diagnostics &lt;id&gt; - why an automation is or is not trading
/positions - open positions
/close &lt;id&gt; - close a position at a fresh premium
/report - realized performance of closed positions
/help - show this message`

func (t *TelegramBotHandler) handleStart(ctx context.Context, c telebot.Context) error {
	message := "👋 <b>Options engine console</b>\n\nI report fills and exits here and take a few operator commands:\n\n" + helpCommands
	return t.reply(ctx, c, message)
}

func (t *TelegramBotHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	message := "❓ <b>Commands</b>\n\n" + helpCommands +
		"\n\n💡 Diagnostics come from the last cycle when one ran recently, otherwise they are evaluated on demand."
	return t.reply(ctx, c, message)
}
