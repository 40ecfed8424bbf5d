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
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/middleware"
	tg "github.com/set-night/questbot/internal/telegram"
	"github.com/shopspring/decimal"
)

func (h *Handler) handleTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}

	loading, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text:   "🔄 Загрузка заданий...",
	})
	if err != nil {
		return
	}
	h.showTasks(ctx, b, actor, loading.ID)
}

// showTasks refreshes the user's task list from the provider and renders it
// into the given message.
func (h *Handler) showTasks(ctx context.Context, b *bot.Bot, actor *middleware.Actor, messageID int) {
	if _, err := h.reconciler.RefreshUser(ctx, actor.ID); err != nil {
		slog.Error("refresh tasks failed", "error", err, "user_id", actor.ID)
	}

	rec, err := h.ledger.Users.Get(actor.ID)
	if err != nil {
		return
	}

	total := decimal.Zero
	var rows [][]models.InlineKeyboardButton

	for _, p := range rec.SpecialTasks {
		if p.Completed {
			continue
		}
		if _, err := h.ledger.Pool.Get(p.TaskID); err != nil {
			continue
		}
		total = total.Add(p.Reward)
		rows = append(rows, tg.ButtonRow(
			tg.URLButton(fmt.Sprintf("🌟 Канал (+%s₽)", p.Reward.StringFixed(2)), p.Link),
			tg.InlineButton("✅ Проверить", fmt.Sprintf("check_special_%d", p.TaskID)),
		))
	}

	for link, task := range rec.Tasks {
		if task.PermanentlyCompleted {
			continue
		}
		if !task.Completed {
			total = total.Add(task.Reward)
		}
		rows = append(rows, tg.ButtonRow(
			tg.URLButton(fmt.Sprintf("📢 Канал (+%s₽)", task.Reward.StringFixed(2)), link),
		))
	}

	if len(rows) == 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "🚫 Нет доступных заданий.",
		})
		return
	}

	rows = append(rows,
		tg.ButtonRow(tg.InlineButton("✅ Проверить все задания", "check_all_tasks")),
		tg.ButtonRow(tg.InlineButton("🔄 Обновить задания", "refresh_tasks")),
	)
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      actor.ChatID,
		MessageID:   messageID,
		Text:        fmt.Sprintf("📝 Ваши задания:\n💰 Вы заработаете %s₽, выполнив все задания!", total.StringFixed(2)),
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

func (h *Handler) handleRefreshTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	actor := middleware.GetActor(ctx)
	if actor == nil || update.CallbackQuery.Message.Message == nil {
		return
	}
	h.showTasks(ctx, b, actor, update.CallbackQuery.Message.Message.ID)
}

func (h *Handler) handleCheckAllTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	actor := middleware.GetActor(ctx)
	if actor == nil || update.CallbackQuery.Message.Message == nil {
		return
	}
	messageID := update.CallbackQuery.Message.Message.ID

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            "⏳ Проверяем выполнение всех заданий...",
	})

	// Verification happens outside any ledger lock.
	out := h.checker.Check(ctx, actor.ID, actor.ChatID, "", 10)
	switch out.Kind {
	case gateway.OutcomeUnavailable:
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
			Text:            "🔴 Сервис проверки недоступен, попробуйте позже",
			ShowAlert:       true,
		})
		return
	case gateway.OutcomeUnverified:
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "❌ Не все задания выполнены!\nТребуется подписка на все каналы",
			ReplyMarkup: tg.InlineKeyboard(
				tg.ButtonRow(tg.InlineButton("📝 К заданиям", "refresh_tasks")),
			),
		})
		return
	}

	res, err := h.rewards.CompleteAll(ctx, actor.ID)
	if err != nil {
		slog.Error("bulk completion failed", "error", err, "user_id", actor.ID)
		return
	}
	if res.Completed == 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "✅ Все задания уже выполнены.",
		})
		return
	}

	text := fmt.Sprintf("✅ Все задания выполнены!\n+%s₽ +%dXP", res.TotalReward.StringFixed(2), res.XPGained)
	if res.LevelsUp > 0 {
		text += fmt.Sprintf("\n🎉 Новый уровень: %d!", res.NewLevel)
	}
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    actor.ChatID,
		MessageID: messageID,
		Text:      text,
	})
}

func (h *Handler) handleCheckSpecial(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	actor := middleware.GetActor(ctx)
	if actor == nil || update.CallbackQuery.Message.Message == nil {
		return
	}
	messageID := update.CallbackQuery.Message.Message.ID

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	taskID, err := strconv.ParseInt(strings.TrimPrefix(update.CallbackQuery.Data, "check_special_"), 10, 64)
	if err != nil {
		return
	}

	rec, err := h.ledger.Users.Get(actor.ID)
	if err != nil {
		return
	}
	p := rec.Participation(taskID)
	if p == nil {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "❌ Задание не найдено!",
		})
		return
	}
	if p.Completed {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "❌ Это задание уже выполнено вами!",
		})
		return
	}

	out := h.checker.Check(ctx, actor.ID, actor.ChatID, p.Link, 1)
	switch out.Kind {
	case gateway.OutcomeUnavailable:
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
			Text:            "🔴 Сервис проверки недоступен, попробуйте позже",
			ShowAlert:       true,
		})
		return
	case gateway.OutcomeUnverified:
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    actor.ChatID,
			MessageID: messageID,
			Text:      "❌ Задание не выполнено: вы не подписаны на канал!",
			ReplyMarkup: tg.InlineKeyboard(tg.ButtonRow(
				tg.URLButton("🔔 Подписаться", p.Link),
				tg.InlineButton("Проверить снова", fmt.Sprintf("check_special_%d", taskID)),
			)),
		})
		return
	}

	res, err := h.rewards.ClaimSpecial(ctx, actor.ID, taskID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCapReached):
			b.EditMessageText(ctx, &bot.EditMessageTextParams{
				ChatID:    actor.ChatID,
				MessageID: messageID,
				Text:      "❌ Это задание больше недоступно - лимит активаций достигнут!",
			})
		case errors.Is(err, domain.ErrTaskAlreadyDone):
			b.EditMessageText(ctx, &bot.EditMessageTextParams{
				ChatID:    actor.ChatID,
				MessageID: messageID,
				Text:      "❌ Это задание уже выполнено вами!",
			})
		default:
			slog.Error("special claim failed", "error", err, "user_id", actor.ID, "task_id", taskID)
		}
		return
	}

	text := fmt.Sprintf("✅ Вы подписаны! +%s₽ +%dXP", res.Reward.StringFixed(2), res.XPGained)
	if res.LevelsUp > 0 {
		text += fmt.Sprintf("\n🎉 Новый уровень: %d!", res.NewLevel)
	}
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    actor.ChatID,
		MessageID: messageID,
		Text:      text,
	})
}
