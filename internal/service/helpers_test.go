package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/repository"
	"github.com/stretchr/testify/require"
)

const adminID = int64(900)

func unavailable() gateway.Outcome {
	return gateway.Outcome{Kind: gateway.OutcomeUnavailable}
}

func verified(links ...string) gateway.Outcome {
	return gateway.Outcome{Kind: gateway.OutcomeVerified, Links: links}
}

type fakeChecker struct {
	mu       sync.Mutex
	byUser   map[int64]gateway.Outcome
	fallback gateway.Outcome
	calls    int
}

func newFakeChecker(fallback gateway.Outcome) *fakeChecker {
	return &fakeChecker{
		byUser:   make(map[int64]gateway.Outcome),
		fallback: fallback,
	}
}

func (f *fakeChecker) set(userID int64, out gateway.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = out
}

func (f *fakeChecker) Check(_ context.Context, userID, _ int64, _ string, _ int) gateway.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if out, ok := f.byUser[userID]; ok {
		return out
	}
	return f.fallback
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failWith: make(map[int64]error)}
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failWith[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeNotifier) sentTo(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.chatID == chatID {
			n++
		}
	}
	return n
}

func newTestLedger(t *testing.T) *repository.Ledger {
	t.Helper()
	ledger, err := repository.Open(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)
	return ledger
}

func newTestRewards(t *testing.T) (*Rewards, *repository.Ledger, *fakeNotifier) {
	t.Helper()
	ledger := newTestLedger(t)
	notifier := newFakeNotifier()
	cfg := &config.Config{AdminIDs: []int64{adminID}}
	return NewRewards(ledger, cfg, notifier), ledger, notifier
}
