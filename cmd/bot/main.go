package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/handler"
	"github.com/set-night/questbot/internal/middleware"
	"github.com/set-night/questbot/internal/repository"
	"github.com/set-night/questbot/internal/service"
	"github.com/set-night/questbot/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the ledger from the last snapshot
	ledger, err := repository.Open(cfg.SnapshotPath)
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	slog.Info("ledger loaded", "users", ledger.Users.Len(), "special_tasks", len(ledger.Pool.Active()))

	checker := gateway.NewClient(cfg.GatewayURL, cfg.GatewayKey, config.GatewayTimeout)

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.UserLoader(ledger),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil || update.Message == nil {
				return
			}
			if len(update.Message.Text) > 0 && update.Message.Text[0] == '/' {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	sender := telegram.NewSender(b)
	rewards := service.NewRewards(ledger, cfg, sender)
	reconciler := service.NewReconciler(ledger, checker)
	notifications := service.NewNotifications(ledger, checker, sender)

	h = handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Ledger:      ledger,
		Rewards:     rewards,
		Reconciler:  reconciler,
		Checker:     checker,
		BotUsername: me.Username,
	})
	h.Register()

	sweeper, err := service.NewSweeper(reconciler, notifications)
	if err != nil {
		slog.Error("failed to create sweeper", "error", err)
		os.Exit(1)
	}
	if err := sweeper.Start(ctx); err != nil {
		slog.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	slog.Info("bot stopped gracefully")
}
