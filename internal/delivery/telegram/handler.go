package telegram

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang-options/internal/dto"
	"golang-options/pkg/logger"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

const (
	commonErrorInternal = "Something went wrong, please try again."
	commonUnknown       = "I do not recognise that command. Use /help to see what I can do."
)

func (t *TelegramBotHandler) WithContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(t.ctx, 5*time.Minute)
		defer cancel()

		return handler(ctx, c)
	}
}

// OperatorOnly drops updates from any chat other than the configured one.
func (t *TelegramBotHandler) OperatorOnly() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil || chat.ID != t.cfg.Telegram.ChatID {
				var chatID int64
				if chat != nil {
					chatID = chat.ID
				}
				t.log.Warn("Ignoring telegram update from unknown chat", logger.Field("chat_id", chatID))
				return nil
			}
			return next(c)
		}
	}
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.echo.POST("/api/v1/telegram/webhook", func(c echo.Context) error {
		var update telebot.Update
		if err := c.Bind(&update); err != nil {
			t.log.ErrorContext(t.ctx, "Cannot bind JSON", logger.ErrorField(err))
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		t.bot.ProcessUpdate(update)
		return c.JSON(http.StatusOK, dto.NewBaseResponse(http.StatusOK, "ok", nil))
	})

	t.bot.Use(t.OperatorOnly())
	t.bot.Handle("/start", t.WithContext(t.handleStart))
	t.bot.Handle("/help", t.WithContext(t.handleHelp))
	t.bot.Handle("/status", t.WithContext(t.handleStatus))
	t.bot.Handle("/run", t.WithContext(t.handleRun))
	t.bot.Handle("/positions", t.WithContext(t.handlePositions))
	t.bot.Handle("/close", t.WithContext(t.handleClose))
	t.bot.Handle("/automations", t.WithContext(t.handleAutomations))
	t.bot.Handle("/diagnostics", t.WithContext(t.handleDiagnostics))
	t.bot.Handle("/report", t.WithContext(t.handleReport))
	t.bot.Handle(telebot.OnText, t.WithContext(t.handleText))
}

func (t *TelegramBotHandler) reply(ctx context.Context, c telebot.Context, message string) error {
	if err := t.notifier.Reply(ctx, c, message, telebot.ModeHTML); err != nil {
		t.log.ErrorContext(ctx, "Failed to reply on telegram", logger.ErrorField(err))
		return err
	}
	return nil
}

func (t *TelegramBotHandler) replyError(ctx context.Context, c telebot.Context, err error) error {
	t.log.ErrorContext(ctx, "Telegram command failed", logger.StringField("command", c.Text()), logger.ErrorField(err))
	return t.reply(ctx, c, commonErrorInternal)
}

// idArg parses the first command argument as a record id.
func idArg(c telebot.Context) (uint, bool) {
	args := c.Args()
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (t *TelegramBotHandler) handleText(ctx context.Context, c telebot.Context) error {
	return t.reply(ctx, c, commonUnknown)
}
