package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/repository"
)

type ctxKey string

const actorKey ctxKey = "actor"

// Actor is the inbound event's subject: the user's identity, the chat to
// answer on, and a snapshot copy of their ledger record.
type Actor struct {
	ID     int64
	ChatID int64
	Name   string
	Record *domain.UserRecord
}

// GetActor extracts the actor from context.
func GetActor(ctx context.Context) *Actor {
	a, ok := ctx.Value(actorKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// UserLoader returns middleware that lazily creates the user's ledger record
// on first contact, captures the chat address, and puts the actor into
// context. Record creation is flushed before the handler runs.
func UserLoader(ledger *repository.Ledger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatID int64

			if update.Message != nil {
				from = update.Message.From
				chatID = update.Message.Chat.ID
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chatID = update.CallbackQuery.Message.Message.Chat.ID
				}
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			_, created := ledger.Users.GetOrCreate(from.ID)

			addressChanged := false
			ledger.Users.WithExistingRecord(from.ID, func(rec *domain.UserRecord) error {
				if chatID != 0 && rec.ChatID != chatID {
					rec.ChatID = chatID
					addressChanged = true
				}
				return nil
			})
			if created || addressChanged {
				if err := ledger.Flush(); err != nil {
					slog.Error("flush after user load", "error", err, "user_id", from.ID)
				}
			}

			rec, err := ledger.Users.Get(from.ID)
			if err != nil {
				next(ctx, b, update)
				return
			}

			ctx = context.WithValue(ctx, actorKey, &Actor{
				ID:     from.ID,
				ChatID: chatID,
				Name:   from.FirstName,
				Record: rec,
			})
			next(ctx, b, update)
		}
	}
}
