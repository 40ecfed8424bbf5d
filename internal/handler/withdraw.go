package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/middleware"
	"github.com/shopspring/decimal"
)

func (h *Handler) handleWithdrawStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	rec := actor.Record

	if rec.Balance.LessThan(config.MinWithdrawal) {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: actor.ChatID,
			Text: fmt.Sprintf("🚫 Минимальная сумма вывода: %s₽\nВаш баланс: %s₽",
				config.MinWithdrawal.StringFixed(2), rec.Balance.StringFixed(2)),
		})
		return
	}

	h.setPending(actor.ID, pendingWithdrawalAmount)
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text: fmt.Sprintf("💳 Введите сумму для вывода, и ждите ответа от администратора.\nВаш баланс: %s₽",
			rec.Balance.StringFixed(2)),
	})
}

func (h *Handler) handleWithdrawAmount(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(update.Message.Text))
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: actor.ChatID,
			Text:   "❌ Введите корректную сумму",
		})
		return
	}

	req, err := h.rewards.Withdraw(ctx, actor.ID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrBelowMinimum):
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: actor.ChatID,
				Text:   fmt.Sprintf("🚫 Минимальная сумма: %s₽", config.MinWithdrawal.StringFixed(2)),
			})
		case errors.Is(err, domain.ErrInsufficientBalance):
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: actor.ChatID,
				Text:   "🚫 Недостаточно средств.",
			})
		default:
			slog.Error("withdrawal failed", "error", err, "user_id", actor.ID)
		}
		return
	}

	// The ledger is flushed before either side hears about the payout.
	for _, adminID := range h.cfg.AdminIDs {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: adminID,
			Text: fmt.Sprintf("📥 Новая заявка на вывод:\n\n🆔 Заявка: %s\n👤 Пользователь: %d\n💳 Сумма: %s₽",
				req.ID, actor.ID, req.Amount.StringFixed(2)),
		})
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text:   fmt.Sprintf("✅ Заявка на %s₽ отправлена!", req.Amount.StringFixed(2)),
	})
}
