// Package telegram hosts the Telegram client, long polling, and the
// supervised restart loop around it.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"career_support_bot/internal/config"
	"career_support_bot/internal/dispatch"
	"career_support_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
}

// updateHandler routes one update; *dispatch.Dispatcher satisfies it.
type updateHandler interface {
	Handle(ctx context.Context, sender dispatch.Sender, update *models.Update)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}

	// restartBase is a var so tests can shrink the supervision delays.
	restartBase = 5 * time.Second
)

const (
	maxRestartDelay = 5 * time.Minute

	// A polling run that lasts at least this long counts as healthy and
	// resets the restart backoff.
	healthyRunThreshold = time.Minute
)

// Client wraps the Telegram bot instance and keeps it polling until the
// context is canceled, restarting after crashes with a growing delay.
type Client struct {
	bot    botRunner
	logger *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling and wires every
// message update into the dispatcher.
func NewClient(cfg config.Config, handler updateHandler, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(defaultHandler(handler, logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Client{
		bot:    tgBot,
		logger: logger,
	}, nil
}

// Start runs long polling until ctx is canceled. A run that ends or panics
// while the context is still live is restarted after a delay that grows
// linearly up to maxRestartDelay; a run that stays up past
// healthyRunThreshold resets the delay.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	delay := restartBase
	for {
		began := time.Now()
		c.runOnce(ctx)

		if ctx.Err() != nil {
			c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
			return
		}

		if time.Since(began) >= healthyRunThreshold {
			delay = restartBase
		}

		c.logger.WithFields(logging.Fields{
			"event":    "telegram_restart",
			"delay_ms": delay.Milliseconds(),
		}).Warn("telegram polling ended unexpectedly, restarting")

		if !wait(ctx, delay) {
			c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
			return
		}

		delay += restartBase
		if delay > maxRestartDelay {
			delay = maxRestartDelay
		}
	}
}

func (c *Client) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logging.Fields{
				"event": "telegram_panic",
				"panic": fmt.Sprint(r),
			}).Error("telegram polling panicked")
		}
	}()

	c.bot.Start(ctx)
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func defaultHandler(handler updateHandler, logger *logrus.Entry) bot.HandlerFunc {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update == nil || update.Message == nil {
			return
		}

		fields := logging.Fields{
			"event":   "telegram_update",
			"chat_id": update.Message.Chat.ID,
		}
		if text := strings.TrimSpace(update.Message.Text); text != "" {
			fields["text"] = text
		}
		if update.Message.From != nil {
			fields["user_id"] = update.Message.From.ID
		}
		logger.WithFields(fields).Info("telegram update received")

		if handler != nil {
			handler.Handle(ctx, b, update)
		}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
