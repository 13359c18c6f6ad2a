package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quantbench/newswatch/internal/config"
	"github.com/quantbench/newswatch/internal/types"
)

// TelegramSink sends plain-text messages directly to configured chat or
// group IDs.
type TelegramSink struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *slog.Logger
}

// NewTelegramSink authenticates the bot once at startup.
func NewTelegramSink(cfg config.TelegramConfig, logger *slog.Logger) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &TelegramSink{
		bot:     bot,
		chatIDs: cfg.ChatIDs,
		logger:  logger.With("component", "telegram_sink"),
	}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// Send delivers the message to every configured chat ID. Individual
// chat failures are collected, not short-circuited.
func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, chatID := range s.chatIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		m := tgbotapi.NewMessage(chatID, msg.Text())
		if _, err := s.bot.Send(m); err != nil {
			s.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		return &types.NotifyError{Sink: s.Name(), Err: errors.Join(errs...)}
	}
	return nil
}
