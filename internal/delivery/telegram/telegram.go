package telegram

import (
	"context"

	"golang-options/config"
	"golang-options/internal/service"
	"golang-options/pkg/logger"
	"golang-options/pkg/telegram"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

// TelegramBotHandler is the operator console: engine status, positions and
// manual actions for the configured chat only.
type TelegramBotHandler struct {
	ctx      context.Context
	cfg      *config.Config
	bot      *telebot.Bot
	log      *logger.Logger
	notifier *telegram.Notifier
	echo     *echo.Echo
	service  *service.Service
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	notifier *telegram.Notifier,
	echo *echo.Echo,
	service *service.Service,
) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:      ctx,
		cfg:      cfg,
		log:      log,
		bot:      bot,
		notifier: notifier,
		echo:     echo,
		service:  service,
	}
}

func (t *TelegramBotHandler) Start() {
	if t.bot == nil {
		t.log.Info("Telegram bot is disabled")
		return
	}
	if t.cfg.Telegram.WebhookURL == "" {
		t.log.Info("Telegram webhook is disabled")
		return
	}

	t.log.Info("Setting webhook URL", logger.StringField("webhook_url", t.cfg.Telegram.WebhookURL))
	err := t.bot.SetWebhook(&telebot.Webhook{
		Endpoint: &telebot.WebhookEndpoint{
			PublicURL: t.cfg.Telegram.WebhookURL,
		},
	})
	if err != nil {
		t.log.Error("Failed to set telegram webhook", logger.ErrorField(err))
		return
	}

	t.RegisterHandlers()
}

// Stop only logs. Updates arrive through the echo webhook route and no
// poller is started, so there is nothing on the bot to stop.
func (t *TelegramBotHandler) Stop() {
	if t.bot == nil {
		return
	}
	t.log.Info("Telegram bot shutdown completed")
}
