package notifier

import (
	"context"
	"fmt"
	"guestbook-backend/internal/entity"
	"guestbook-backend/internal/metrics"
	"guestbook-backend/internal/usecase"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type Telegram struct {
	bot    messageSender
	chatID int64
}

func NewTelegram(token string, chatID int64) (usecase.Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	// getMe при старте не нужен: бот только отправляет сообщения
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
	}, nil
}

func (t *Telegram) NotifyNewComment(ctx context.Context, comment *entity.Comment) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   Subject + "\n\n" + renderComment(comment),
	})
	if err != nil {
		metrics.Notifications.WithLabelValues("telegram", "error").Inc()
		return fmt.Errorf("send telegram message: %w", err)
	}
	metrics.Notifications.WithLabelValues("telegram", "ok").Inc()
	return nil
}
