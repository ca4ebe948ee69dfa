package telegram

import (
	"context"
	"errors"

	"golang-options/config"
	"golang-options/pkg/logger"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

var ErrNotConfigured = errors.New("telegram notifier is not configured")

// Sender is the subset of *telebot.Bot used for outgoing messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Notifier pushes operator messages (fills, exits, alerts) to a single chat.
// It implements logger.AlertSink.
type Notifier struct {
	cfg     *config.TelegramConfig
	log     *logger.Logger
	sender  Sender
	limiter *rate.Limiter
}

func NewNotifier(cfg *config.TelegramConfig, log *logger.Logger, sender Sender) *Notifier {
	perSecond := cfg.MaxPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Notifier{
		cfg:     cfg,
		log:     log,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// NewBot builds a send-only bot. An empty token yields nil so callers can
// run without Telegram.
func NewBot(cfg *config.TelegramConfig) (*telebot.Bot, error) {
	if cfg.BotToken == "" {
		return nil, nil
	}
	return telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil && n.cfg.ChatID != 0
}

func (n *Notifier) SendMessage(ctx context.Context, message string) error {
	if !n.Enabled() {
		return ErrNotConfigured
	}

	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := n.sender.Send(&telebot.Chat{ID: n.cfg.ChatID}, message, &telebot.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}

// SendAlert is called by the logger alert core, so failures are only
// written to stderr through the underlying zap core and never re-alerted.
func (n *Notifier) SendAlert(ctx context.Context, message string) error {
	if err := n.SendMessage(ctx, message); err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			n.log.Warn("Failed to send telegram alert", logger.ErrorField(err))
		}
		return err
	}
	return nil
}

// Replier is the subset of telebot.Context used to answer a command.
type Replier interface {
	Send(what interface{}, opts ...interface{}) error
}

// Reply answers an incoming command under the same rate limit as outgoing
// notifications.
func (n *Notifier) Reply(ctx context.Context, c Replier, message string, opts ...interface{}) error {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.Send(message, opts...)
}

func (n *Notifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.cfg.TimeoutDuration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.cfg.TimeoutDuration)
}
