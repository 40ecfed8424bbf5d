package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/middleware"
	tg "github.com/set-night/questbot/internal/telegram"
)

func (h *Handler) handleProfile(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	rec := actor.Record

	text := fmt.Sprintf(
		"💼 *Ваш профиль*\n\n"+
			"💰 Баланс: %s₽\n"+
			"🏆 Уровень: %d\n"+
			"🔋 Прогресс:\n`%s`\n\n"+
			"👥 Рефералов: %d\n"+
			"💸 Заработано с рефералов: %s₽\n"+
			"💵 Всего заработано: %s₽",
		rec.Balance.StringFixed(2),
		rec.Level,
		progressBar(rec, 10),
		rec.Referrals,
		rec.ReferralEarnings.StringFixed(2),
		rec.TotalEarned.StringFixed(2),
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    actor.ChatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
}

// progressBar renders the XP bar toward the next level.
func progressBar(rec *domain.UserRecord, length int) string {
	maxXP := config.LevelThreshold(rec.Level)
	filled := rec.XP * length / maxXP
	if filled > length {
		filled = length
	}
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", length-filled)
	reward := config.LevelReward(rec.Level + 1)
	return fmt.Sprintf("%s %d/%d XP +%s₽", bar, rec.XP, maxXP, reward.StringFixed(2))
}

func (h *Handler) handleReferrals(ctx context.Context, b *bot.Bot, update *models.Update) {
	actor := middleware.GetActor(ctx)
	if actor == nil {
		return
	}
	rec := actor.Record

	refLink := fmt.Sprintf("https://t.me/%s?start=ref%d", h.botUsername, actor.ID)
	text := fmt.Sprintf(
		"👥 *Реферальная система*\n\n"+
			"🔗 Ваша ссылка: `%s`\n\n"+
			"💎 За каждого приглашенного:\n"+
			"• +%s₽ на баланс\n"+
			"• +%d%% опыта\n\n"+
			"📊 *Статистика:*\n"+
			"👥 Приглашено: %d\n"+
			"💸 Заработано: %s₽",
		refLink,
		config.ReferralBonus.StringFixed(2),
		config.ReferralXPPercent,
		rec.Referrals,
		rec.ReferralEarnings.StringFixed(2),
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    actor.ChatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		ReplyMarkup: tg.InlineKeyboard(
			tg.ButtonRow(tg.URLButton("🔗 Поделиться ссылкой", "https://t.me/share/url?url="+refLink)),
		),
	})
}
