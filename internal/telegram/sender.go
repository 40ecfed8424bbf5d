package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/set-night/questbot/internal/domain"
)

// Sender is the outbound sink: at-least-once delivery of plain messages.
// A chat that permanently rejects delivery (user blocked the bot) surfaces
// as domain.ErrUserUnreachable so callers can retire the record.
type Sender struct {
	bot *bot.Bot
}

func NewSender(b *bot.Bot) *Sender {
	return &Sender{bot: b}
}

func (s *Sender) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		if errors.Is(err, bot.ErrorForbidden) {
			return fmt.Errorf("send to %d: %w", chatID, domain.ErrUserUnreachable)
		}
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
