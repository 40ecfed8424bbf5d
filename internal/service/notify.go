package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/repository"
	"golang.org/x/sync/semaphore"
)

// Notifications pushes "you have new tasks" messages, throttled to one per
// cooldown window per user. A user whose outbound channel is permanently
// dead is removed from the ledger, freeing their referral slot.
type Notifications struct {
	ledger   *repository.Ledger
	checker  gateway.Checker
	notifier Notifier
	cooldown time.Duration

	now func() time.Time
}

func NewNotifications(ledger *repository.Ledger, checker gateway.Checker, notifier Notifier) *Notifications {
	return &Notifications{
		ledger:   ledger,
		checker:  checker,
		notifier: notifier,
		cooldown: config.NotificationCooldown,
		now:      time.Now,
	}
}

// SweepAll checks every known user for actionable new work and notifies the
// ones whose throttle window has passed. Per-user failures are isolated.
func (n *Notifications) SweepAll(ctx context.Context) {
	ids := n.ledger.Users.IDs()
	sem := semaphore.NewWeighted(config.SweepConcurrency)

	var wg sync.WaitGroup
	dirty := false
	var mu sync.Mutex

	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			defer sem.Release(1)
			if n.sweepUser(ctx, userID) {
				mu.Lock()
				dirty = true
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if dirty {
		if err := n.ledger.Flush(); err != nil {
			slog.Error("flush after notification sweep", "error", err)
		}
	}
}

// sweepUser reports whether it mutated the ledger.
func (n *Notifications) sweepUser(ctx context.Context, userID int64) bool {
	rec, err := n.ledger.Users.Get(userID)
	if err != nil {
		return false
	}
	chatID := rec.ChatID
	if chatID == 0 {
		chatID = userID
	}

	out := n.checker.Check(ctx, userID, chatID, "", config.GatewayMaxResults)
	if out.Kind == gateway.OutcomeUnavailable {
		return false
	}

	newLinks := 0
	for _, raw := range out.Links {
		st, ok := rec.Tasks[raw]
		if !ok || !st.PermanentlyCompleted {
			newLinks++
		}
	}

	var newSpecials []*domain.GlobalSpecialTask
	for _, t := range n.ledger.Pool.Active() {
		if rec.Participation(t.TaskID) == nil {
			newSpecials = append(newSpecials, t)
		}
	}

	total := newLinks + len(newSpecials)
	if total == 0 {
		return false
	}
	if n.now().Unix()-rec.LastNotifiedAt < int64(n.cooldown.Seconds()) {
		return false
	}

	text := fmt.Sprintf("✨ У вас есть %d новых заданий!\nНажмите '🎯 Задания', чтобы посмотреть.", total)
	if err := n.notifier.Notify(ctx, chatID, text); err != nil {
		if errors.Is(err, domain.ErrUserUnreachable) {
			slog.Info("removing unreachable user", "user_id", userID)
			n.ledger.Users.Remove(userID)
			return true
		}
		slog.Warn("new-task notification failed", "user_id", userID, "error", err)
		return false
	}

	n.ledger.Users.WithExistingRecord(userID, func(r *domain.UserRecord) error {
		r.LastNotifiedAt = n.now().Unix()
		for _, t := range newSpecials {
			if r.Participation(t.TaskID) == nil {
				r.SpecialTasks = append(r.SpecialTasks, t.Participation())
			}
		}
		return nil
	})
	return true
}
