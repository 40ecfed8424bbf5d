package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/gateway"
	"github.com/set-night/questbot/internal/repository"
	"golang.org/x/sync/semaphore"
)

// Reconciler merges provider-returned task links into per-user task state.
// Merging never touches an existing entry: re-observing a raw link is a
// no-op, so a permanently completed task can never be reopened.
type Reconciler struct {
	ledger  *repository.Ledger
	checker gateway.Checker

	mu         sync.RWMutex
	advertised []string
}

func NewReconciler(ledger *repository.Ledger, checker gateway.Checker) *Reconciler {
	return &Reconciler{ledger: ledger, checker: checker}
}

// NormalizeLink canonicalizes an invite link for the aggregate advertised
// view. Per-user task keys stay raw: the provider's exact string is the
// source of truth there.
func NormalizeLink(raw string) string {
	link := raw
	if i := strings.Index(link, "?"); i >= 0 {
		link = link[:i]
	}
	link = strings.ReplaceAll(link, "https://t.me//", "https://t.me/+")
	if !strings.HasPrefix(link, "https://t.me/+") {
		link = strings.Replace(link, "https://t.me/", "https://t.me/+", 1)
	}
	link = strings.TrimRight(link, "/")
	for strings.Contains(link, "++") {
		link = strings.ReplaceAll(link, "++", "+")
	}
	return link
}

// MergeLinks inserts a fresh pending TaskState for every unseen raw link and
// reports how many were added. Existing entries are never overwritten,
// whatever their state.
func (r *Reconciler) MergeLinks(userID int64, links []string) int {
	added := 0
	r.ledger.Users.WithRecord(userID, func(rec *domain.UserRecord) error {
		now := time.Now().Unix()
		for _, raw := range links {
			if _, ok := rec.Tasks[raw]; ok {
				continue
			}
			rec.Tasks[raw] = &domain.TaskState{
				Reward:        config.BaseReward,
				Status:        domain.TaskStatusPending,
				LastCheckedAt: now,
			}
			added++
		}
		return nil
	})
	return added
}

// RefreshUser is the on-demand reconciliation path: fetch the advertised
// links for one user (outside any lock), merge them, flush if anything
// changed. An unavailable gateway is a no-op, never a failure.
func (r *Reconciler) RefreshUser(ctx context.Context, userID int64) (gateway.Outcome, error) {
	rec, err := r.ledger.Users.Get(userID)
	if err != nil {
		return gateway.Outcome{Kind: gateway.OutcomeUnavailable}, err
	}
	chatID := rec.ChatID
	if chatID == 0 {
		chatID = userID
	}

	out := r.checker.Check(ctx, userID, chatID, "", config.GatewayMaxResults)
	if out.Kind == gateway.OutcomeUnavailable {
		return out, nil
	}

	if added := r.MergeLinks(userID, out.Links); added > 0 {
		if err := r.ledger.Flush(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// SweepAll is the periodic pre-warm path: fan out one gateway call per known
// user with bounded concurrency, merge each user's links independently, and
// rebuild the aggregate advertised view. One user's failure never aborts the
// sweep for the rest.
func (r *Reconciler) SweepAll(ctx context.Context) {
	ids := r.ledger.Users.IDs()
	sem := semaphore.NewWeighted(config.SweepConcurrency)

	var mu sync.Mutex
	seen := make(map[string]struct{})
	merged := 0

	var wg sync.WaitGroup
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			defer sem.Release(1)

			rec, err := r.ledger.Users.Get(userID)
			if err != nil {
				return
			}
			chatID := rec.ChatID
			if chatID == 0 {
				chatID = userID
			}
			out := r.checker.Check(ctx, userID, chatID, "", config.GatewayMaxResults)
			if out.Kind == gateway.OutcomeUnavailable {
				return
			}

			added := r.MergeLinks(userID, out.Links)
			mu.Lock()
			merged += added
			for _, raw := range out.Links {
				seen[NormalizeLink(raw)] = struct{}{}
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	aggregate := make([]string, 0, len(seen))
	for link := range seen {
		aggregate = append(aggregate, link)
	}
	sort.Strings(aggregate)

	r.mu.Lock()
	r.advertised = aggregate
	r.mu.Unlock()

	if merged > 0 {
		if err := r.ledger.Flush(); err != nil {
			slog.Error("flush after reconciliation sweep", "error", err)
		}
	}
	slog.Info("reconciliation sweep finished", "users", len(ids), "advertised", len(aggregate), "merged", merged)
}

// Advertised returns the deduplicated, normalized view of currently
// advertised links, as of the last sweep.
func (r *Reconciler) Advertised() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.advertised))
	copy(out, r.advertised)
	return out
}
