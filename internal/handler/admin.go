package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/middleware"
	"github.com/shopspring/decimal"
)

func (h *Handler) handleAddTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	if !h.cfg.IsAdmin(actor.ID) {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: actor.ChatID,
			Text:   "❌ Эта команда доступна только администратору!",
		})
		return
	}

	h.setPending(actor.ID, pendingTaskSpec)
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text: "Введите данные нового задания в формате:\n" +
			"ссылка количество_активаций цена\n" +
			"Пример: https://t.me/examplechat 100 2.50",
	})
}

func (h *Handler) handleTaskSpec(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}

	reject := func(text string) {
		// Keep waiting for a corrected spec.
		h.setPending(actor.ID, pendingTaskSpec)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: actor.ChatID, Text: text})
	}

	fields := strings.Fields(update.Message.Text)
	if len(fields) != 3 {
		reject("❌ Неверный формат! Используйте: ссылка количество_активаций цена")
		return
	}
	link := fields[0]
	activations, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		reject("❌ Ошибка в числах! Используйте формат: ссылка количество_активаций цена")
		return
	}
	price, err := decimal.NewFromString(fields[2])
	if err != nil {
		reject("❌ Ошибка в числах! Используйте формат: ссылка количество_активаций цена")
		return
	}

	task, added, err := h.rewards.AddSpecialTask(ctx, actor.ID, link, activations, price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotAuthorized):
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: actor.ChatID,
				Text:   "❌ Эта команда доступна только администратору!",
			})
		case errors.Is(err, domain.ErrInvalidTaskSpec):
			reject("❌ Ссылка должна начинаться с https://t.me/, активации должны быть положительными!")
		case errors.Is(err, domain.ErrInvalidAmount):
			reject("❌ Цена должна быть положительной!")
		default:
			slog.Error("add special task failed", "error", err, "user_id", actor.ID)
		}
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text: fmt.Sprintf("✅ Задание успешно добавлено!\nСсылка: %s\nАктиваций: %d\nЦена: %s₽\nДобавлено пользователям: %d",
			task.Link, task.MaxActivations, task.Reward.StringFixed(2), added),
	})
}
