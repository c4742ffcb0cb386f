package notify

// Package notify delivers outbound messages to monitor owners. Delivery is
// best effort: a blocked bot or a dead chat is the recipient's problem, not
// the crawler's.

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"xsn-monitor/internal/infra/log"
)

// Channel sends a message to one owner. Errors are advisory only.
type Channel interface {
	Send(ownerID int64, text string) error
}

// PhotoChannel extends Channel with photo delivery, used by the balance
// chart command.
type PhotoChannel interface {
	Channel
	SendPhoto(ownerID int64, path, caption string) error
}

// Telegram delivers messages through a Telegram bot. A shared rate limiter
// keeps the bot under Telegram's global sending limits.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewTelegram(bot *tgbotapi.BotAPI) *Telegram {
	return &Telegram{
		bot: bot,
		// Telegram allows ~30 messages per second bot-wide.
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
}

func (t *Telegram) Send(ownerID int64, text string) error {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	msg := tgbotapi.NewMessage(ownerID, text)
	if _, err := t.bot.Send(msg); err != nil {
		// Typical case: the user blocked the bot.
		log.LogWarn("Failed to deliver message",
			zap.Int64("owner_id", ownerID),
			zap.Error(err))
		return fmt.Errorf("failed to deliver message to %d: %w", ownerID, err)
	}
	return nil
}

func (t *Telegram) SendPhoto(ownerID int64, path, caption string) error {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	photo := tgbotapi.NewPhoto(ownerID, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := t.bot.Send(photo); err != nil {
		log.LogWarn("Failed to deliver photo",
			zap.Int64("owner_id", ownerID),
			zap.Error(err))
		return fmt.Errorf("failed to deliver photo to %d: %w", ownerID, err)
	}
	return nil
}
