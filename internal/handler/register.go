package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/addtask", bot.MatchTypePrefix, h.handleAddTask)

	// Main menu buttons
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, menuTasks, bot.MatchTypeExact, h.handleTasks)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, menuProfile, bot.MatchTypeExact, h.handleProfile)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, menuReferrals, bot.MatchTypeExact, h.handleReferrals)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, menuWithdraw, bot.MatchTypeExact, h.handleWithdrawStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, menuContact, bot.MatchTypeExact, h.handleContact)

	// Task callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "check_all_tasks", bot.MatchTypeExact, h.handleCheckAllTasks)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "refresh_tasks", bot.MatchTypeExact, h.handleRefreshTasks)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "check_special_", bot.MatchTypePrefix, h.handleCheckSpecial)
}

// HandleText routes free-form text to whatever input the bot is waiting for
// from this user (withdrawal amount, admin task spec).
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	switch h.takePending(update.Message.From.ID) {
	case pendingWithdrawalAmount:
		h.handleWithdrawAmount(ctx, b, update)
	case pendingTaskSpec:
		h.handleTaskSpec(ctx, b, update)
	}
}
