package handler

import (
	"sync"

	"github.com/go-telegram/bot"
	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/repository"
	"github.com/set-night/questbot/internal/service"
)

// Main menu labels, also matched as inbound text.
const (
	menuTasks     = "🎯 Задания"
	menuProfile   = "👤 Профиль"
	menuReferrals = "👥 Рефералы"
	menuWithdraw  = "💳 Вывод"
	menuContact   = "📞 Связь"
)

// pendingInput marks what free-form text the bot expects from a user next.
type pendingInput int

const (
	pendingNone pendingInput = iota
	pendingWithdrawalAmount
	pendingTaskSpec
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	ledger      *repository.Ledger
	rewards     *service.Rewards
	reconciler  *service.Reconciler
	checker     gateway.Checker
	botUsername string

	mu      sync.Mutex
	pending map[int64]pendingInput
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Ledger      *repository.Ledger
	Rewards     *service.Rewards
	Reconciler  *service.Reconciler
	Checker     gateway.Checker
	BotUsername string
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		ledger:      deps.Ledger,
		rewards:     deps.Rewards,
		reconciler:  deps.Reconciler,
		checker:     deps.Checker,
		botUsername: deps.BotUsername,
		pending:     make(map[int64]pendingInput),
	}
}

func (h *Handler) setPending(userID int64, state pendingInput) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if state == pendingNone {
		delete(h.pending, userID)
		return
	}
	h.pending[userID] = state
}

func (h *Handler) takePending(userID int64) pendingInput {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.pending[userID]
	if !ok {
		return pendingNone
	}
	delete(h.pending, userID)
	return state
}
