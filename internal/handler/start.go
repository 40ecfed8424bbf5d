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
	tg "github.com/set-night/questbot/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}

	// Deep-link referral payload: /start ref<id>
	parts := strings.SplitN(update.Message.Text, " ", 2)
	if len(parts) > 1 && strings.HasPrefix(parts[1], "ref") {
		if referrerID, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref"), 10, 64); err == nil {
			_, err := h.rewards.RegisterReferral(ctx, actor.ID, referrerID)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrAlreadyReferred),
				errors.Is(err, domain.ErrSelfReferral),
				errors.Is(err, domain.ErrUserNotFound):
				// Invalid or repeated code: ignored, registration is once ever.
			default:
				slog.Error("referral registration failed", "error", err, "user_id", actor.ID)
			}
		}
	}

	// Seed the active special tasks and pre-warm the provider task list.
	h.rewards.SeedSpecials(actor.ID)
	if _, err := h.reconciler.RefreshUser(ctx, actor.ID); err != nil {
		slog.Error("refresh on start failed", "error", err, "user_id", actor.ID)
	}
	if err := h.rewards.Flush(); err != nil {
		slog.Error("flush on start failed", "error", err, "user_id", actor.ID)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text:   fmt.Sprintf("Привет, %s! 🚀\nВыполняй задания и получай деньги!", actor.Name),
		ReplyMarkup: tg.ReplyKeyboard(
			[]string{menuTasks, menuProfile},
			[]string{menuReferrals, menuWithdraw},
			[]string{menuContact},
		),
	})
}

func (h *Handler) handleContact(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: actor.ChatID,
		Text:   fmt.Sprintf("📞 Связь с администратором:\nПо всем вопросам пишите @%s", h.cfg.SupportHandle),
		ReplyMarkup: tg.InlineKeyboard(
			tg.ButtonRow(tg.URLButton("📱 Написать администратору", "https://t.me/"+h.cfg.SupportHandle)),
		),
	})
}
