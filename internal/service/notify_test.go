package service

import (
	"context"
	"testing"
	"time"

	"github.com/set-night/questbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifications(t *testing.T, checker *fakeChecker) (*Notifications, *fakeNotifier, *fakeClock) {
	t.Helper()
	ledger := newTestLedger(t)
	notifier := newFakeNotifier()
	n := NewNotifications(ledger, checker, notifier)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	n.now = clock.Now
	return n, notifier, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestNotificationsThrottledToOncePerWindow(t *testing.T) {
	checker := newFakeChecker(verified("https://t.me/new"))
	n, notifier, clock := newTestNotifications(t, checker)
	ctx := context.Background()

	n.ledger.Users.WithRecord(1, func(rec *domain.UserRecord) error {
		rec.ChatID = 100
		return nil
	})

	n.SweepAll(ctx)
	assert.Equal(t, 1, notifier.sentTo(100))

	// Within the hour: throttled even though the task is still new.
	clock.Advance(30 * time.Minute)
	n.SweepAll(ctx)
	assert.Equal(t, 1, notifier.sentTo(100))

	clock.Advance(31 * time.Minute)
	n.SweepAll(ctx)
	assert.Equal(t, 2, notifier.sentTo(100))
}

func TestNotificationsSkipUsersWithNothingNew(t *testing.T) {
	checker := newFakeChecker(verified("https://t.me/seen"))
	n, notifier, _ := newTestNotifications(t, checker)
	ctx := context.Background()

	n.ledger.Users.WithRecord(1, func(rec *domain.UserRecord) error {
		rec.ChatID = 100
		rec.Tasks["https://t.me/seen"] = &domain.TaskState{
			Completed:            true,
			PermanentlyCompleted: true,
			Status:               domain.TaskStatusOK,
		}
		return nil
	})

	n.SweepAll(ctx)
	assert.Equal(t, 0, notifier.sentTo(100))
}

func TestNotificationsSeedNewSpecials(t *testing.T) {
	checker := newFakeChecker(verified())
	n, notifier, _ := newTestNotifications(t, checker)
	ctx := context.Background()

	n.ledger.Users.WithRecord(1, func(rec *domain.UserRecord) error {
		rec.ChatID = 100
		return nil
	})
	task := n.ledger.Pool.Add("https://t.me/promo", decimal.NewFromInt(1), 5)

	n.SweepAll(ctx)
	require.Equal(t, 1, notifier.sentTo(100))

	rec, _ := n.ledger.Users.Get(1)
	assert.NotNil(t, rec.Participation(task.TaskID))
}

func TestNotificationsRemoveUnreachableUser(t *testing.T) {
	checker := newFakeChecker(verified("https://t.me/new"))
	n, notifier, _ := newTestNotifications(t, checker)
	ctx := context.Background()

	n.ledger.Users.WithRecord(1, func(rec *domain.UserRecord) error {
		rec.ChatID = 100
		return nil
	})
	notifier.failWith[100] = domain.ErrUserUnreachable

	n.SweepAll(ctx)
	assert.False(t, n.ledger.Users.Exists(1))
}

func TestNotificationsTransientSendFailureKeepsUser(t *testing.T) {
	checker := newFakeChecker(verified("https://t.me/new"))
	n, notifier, _ := newTestNotifications(t, checker)
	ctx := context.Background()

	n.ledger.Users.WithRecord(1, func(rec *domain.UserRecord) error {
		rec.ChatID = 100
		return nil
	})
	notifier.failWith[100] = assert.AnError

	n.SweepAll(ctx)
	assert.True(t, n.ledger.Users.Exists(1))

	// Throttle was not consumed by the failed push.
	rec, _ := n.ledger.Users.Get(1)
	assert.EqualValues(t, 0, rec.LastNotifiedAt)
}
