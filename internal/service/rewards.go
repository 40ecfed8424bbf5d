package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/questbot/internal/config"
	"github.com/set-night/questbot/internal/domain"
	"github.com/set-night/questbot/internal/repository"
	"github.com/shopspring/decimal"
)

// Notifier delivers out-of-band messages to users, at-least-once. A
// permanently unreachable destination is reported as domain.ErrUserUnreachable.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

var referralShare = decimal.NewFromInt(config.ReferralSharePercent).Div(decimal.NewFromInt(100))

// Rewards is the transactional core of the ledger. Every balance, XP and
// activation mutation goes through it; no other component writes these
// fields. Each operation flushes the snapshot before returning and before
// any externally observable confirmation.
type Rewards struct {
	ledger   *repository.Ledger
	cfg      *config.Config
	notifier Notifier
}

func NewRewards(ledger *repository.Ledger, cfg *config.Config, notifier Notifier) *Rewards {
	return &Rewards{ledger: ledger, cfg: cfg, notifier: notifier}
}

// BulkResult reports a bulk completion.
type BulkResult struct {
	Completed   int
	TotalReward decimal.Decimal
	XPGained    int
	LevelsUp    int
	NewLevel    int

	referralBonus decimal.Decimal
}

// ClaimOutcome reports a granted special task claim.
type ClaimOutcome struct {
	Reward   decimal.Decimal
	XPGained int
	LevelsUp int
	NewLevel int
	Retired  bool

	referralBonus decimal.Decimal
}

// RegistrationResult reports a referral registration.
type RegistrationResult struct {
	Bonus     decimal.Decimal
	XPGranted int
}

// WithdrawalRequest is handed to the admin for manual payout.
type WithdrawalRequest struct {
	ID     string
	UserID int64
	Amount decimal.Decimal
}

// CompleteAll transitions every non-terminal task of the user to its terminal
// completed state and credits the aggregate reward. The caller must have a
// Verified gateway outcome in hand. Calling it again with nothing new to
// complete is a no-op with a zero result.
func (s *Rewards) CompleteAll(ctx context.Context, userID int64) (BulkResult, error) {
	referrerID := s.referrerOf(userID)

	var res BulkResult
	apply := func(rec, referrer *domain.UserRecord) error {
		now := time.Now().Unix()
		total := decimal.Zero
		count := 0
		for _, task := range rec.Tasks {
			if task.Completed || task.PermanentlyCompleted {
				continue
			}
			task.Completed = true
			task.PermanentlyCompleted = true
			task.Status = domain.TaskStatusOK
			task.LastCheckedAt = now
			total = total.Add(task.Reward)
			count++
		}
		if count == 0 {
			return nil
		}

		rec.Balance = rec.Balance.Add(total)
		rec.TotalEarned = rec.TotalEarned.Add(total)
		xp := config.XPPerTask * count
		levels, _ := applyXP(rec, xp)

		res = BulkResult{
			Completed:   count,
			TotalReward: total,
			XPGained:    xp,
			LevelsUp:    levels,
			NewLevel:    rec.Level,
		}
		if referrer != nil {
			res.referralBonus = cascadeReferral(referrer, total)
		}
		return nil
	}

	if err := s.withReferee(userID, referrerID, apply); err != nil {
		return BulkResult{}, err
	}
	if res.Completed == 0 {
		return BulkResult{TotalReward: decimal.Zero}, nil
	}

	if err := s.ledger.Flush(); err != nil {
		return BulkResult{}, err
	}
	s.notifyReferrer(ctx, referrerID, fmt.Sprintf(
		"🎉 Ваш реферал выполнил задания! +%s₽ (%d%%)",
		res.referralBonus.StringFixed(2), config.ReferralSharePercent))
	return res, nil
}

// ClaimSpecial consumes one activation slot of a special task for the user.
// The caller must have verified the subscription first. On the claim that
// fills the cap the task is retired and purged from every user record; a
// claim against an exhausted or retired task drops the user's stale
// participation entry and returns domain.ErrCapReached.
func (s *Rewards) ClaimSpecial(ctx context.Context, userID, taskID int64) (ClaimOutcome, error) {
	// Reserve the user's participation entry first so a double-tap cannot
	// consume two slots.
	var reward decimal.Decimal
	err := s.ledger.Users.WithExistingRecord(userID, func(rec *domain.UserRecord) error {
		p := rec.Participation(taskID)
		if p == nil {
			return domain.ErrTaskNotFound
		}
		if p.Completed {
			return domain.ErrTaskAlreadyDone
		}
		p.Completed = true
		reward = p.Reward
		return nil
	})
	if err != nil {
		return ClaimOutcome{}, err
	}

	claim, err := s.ledger.Pool.Claim(taskID)
	if err != nil {
		// Exhausted or already retired: the participation entry is stale.
		s.dropParticipation(userID, taskID)
		if flushErr := s.ledger.Flush(); flushErr != nil {
			slog.Error("flush after stale claim cleanup", "error", flushErr)
		}
		if errors.Is(err, domain.ErrTaskNotFound) {
			err = domain.ErrCapReached
		}
		return ClaimOutcome{}, err
	}

	referrerID := s.referrerOf(userID)
	var res ClaimOutcome
	apply := func(rec, referrer *domain.UserRecord) error {
		rec.Balance = rec.Balance.Add(reward)
		rec.TotalEarned = rec.TotalEarned.Add(reward)
		levels, _ := applyXP(rec, config.XPPerTask)
		res = ClaimOutcome{
			Reward:   reward,
			XPGained: config.XPPerTask,
			LevelsUp: levels,
			NewLevel: rec.Level,
			Retired:  claim.Retired,
		}
		if referrer != nil {
			res.referralBonus = cascadeReferral(referrer, reward)
		}
		return nil
	}
	if err := s.withReferee(userID, referrerID, apply); err != nil {
		return ClaimOutcome{}, err
	}

	if claim.Retired {
		s.purgeEverywhere(taskID)
	} else {
		s.syncMirrors(taskID, claim.Activations)
	}

	if err := s.ledger.Flush(); err != nil {
		return ClaimOutcome{}, err
	}
	s.notifyReferrer(ctx, referrerID, fmt.Sprintf(
		"🎉 Ваш реферал выполнил специальное задание! +%s₽ (%d%%)",
		res.referralBonus.StringFixed(2), config.ReferralSharePercent))
	return res, nil
}

// RegisterReferral binds a new user to their referrer and credits the
// registration bonus. All four effects (referrer counter, bonus credit,
// referrer XP, referee marking) apply atomically; a record that already used
// a referral can never be re-bound.
func (s *Rewards) RegisterReferral(ctx context.Context, userID, referrerID int64) (RegistrationResult, error) {
	if userID == referrerID {
		return RegistrationResult{}, domain.ErrSelfReferral
	}
	if !s.ledger.Users.Exists(referrerID) {
		return RegistrationResult{}, domain.ErrUserNotFound
	}

	var res RegistrationResult
	err := s.ledger.Users.WithTwoRecords(userID, referrerID, func(referee, referrer *domain.UserRecord) error {
		if referee.UsedReferral {
			return domain.ErrAlreadyReferred
		}
		referrer.Referrals++
		referrer.Balance = referrer.Balance.Add(config.ReferralBonus)
		referrer.TotalEarned = referrer.TotalEarned.Add(config.ReferralBonus)
		referrer.ReferralEarnings = referrer.ReferralEarnings.Add(config.ReferralBonus)

		// XP share computed against the referrer's level at this moment.
		xp := config.LevelThreshold(referrer.Level) * config.ReferralXPPercent / 100
		applyXP(referrer, xp)

		referee.UsedReferral = true
		id := referrerID
		referee.ReferrerID = &id

		res = RegistrationResult{Bonus: config.ReferralBonus, XPGranted: xp}
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	if err := s.ledger.Flush(); err != nil {
		return RegistrationResult{}, err
	}
	s.notifyReferrer(ctx, &referrerID, fmt.Sprintf(
		"🎉 Новый реферал! +%s₽ и +%d XP!", res.Bonus.StringFixed(2), res.XPGranted))
	return res, nil
}

// Withdraw debits the user's balance and returns a payout request for the
// admin. TotalEarned is lifetime earnings and is never decremented.
func (s *Rewards) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return WithdrawalRequest{}, domain.ErrInvalidAmount
	}
	if amount.LessThan(config.MinWithdrawal) {
		return WithdrawalRequest{}, domain.ErrBelowMinimum
	}

	err := s.ledger.Users.WithExistingRecord(userID, func(rec *domain.UserRecord) error {
		if rec.Balance.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}
		rec.Balance = rec.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		return WithdrawalRequest{}, err
	}

	if err := s.ledger.Flush(); err != nil {
		return WithdrawalRequest{}, err
	}
	return WithdrawalRequest{ID: uuid.NewString(), UserID: userID, Amount: amount}, nil
}

// AddSpecialTask creates a capped special task and fans it out to every known
// user. Only a configured admin identity may call it.
func (s *Rewards) AddSpecialTask(ctx context.Context, actorID int64, link string, activations int64, price decimal.Decimal) (*domain.GlobalSpecialTask, int, error) {
	if !s.cfg.IsAdmin(actorID) {
		return nil, 0, domain.ErrNotAuthorized
	}
	if !strings.HasPrefix(link, "https://t.me/") {
		return nil, 0, domain.ErrInvalidTaskSpec
	}
	if activations <= 0 {
		return nil, 0, domain.ErrInvalidTaskSpec
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, 0, domain.ErrInvalidAmount
	}

	task := s.ledger.Pool.Add(link, price, activations)
	added := 0
	for _, id := range s.ledger.Users.IDs() {
		err := s.ledger.Users.WithExistingRecord(id, func(rec *domain.UserRecord) error {
			if rec.Participation(task.TaskID) != nil {
				return nil
			}
			rec.SpecialTasks = append(rec.SpecialTasks, task.Participation())
			added++
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, 0, err
		}
	}

	if err := s.ledger.Flush(); err != nil {
		return nil, 0, err
	}
	return task, added, nil
}

// SeedSpecials adds every active special task the user does not yet carry.
func (s *Rewards) SeedSpecials(userID int64) int {
	added := 0
	s.ledger.Users.WithRecord(userID, func(rec *domain.UserRecord) error {
		for _, t := range s.ledger.Pool.Active() {
			if rec.Participation(t.TaskID) == nil {
				rec.SpecialTasks = append(rec.SpecialTasks, t.Participation())
				added++
			}
		}
		return nil
	})
	return added
}

// Flush exposes the ledger flush for callers that mutate adjacent state
// (first contact, chat address capture).
func (s *Rewards) Flush() error {
	return s.ledger.Flush()
}

// referrerOf reads the user's referrer; safe outside the lock because the
// binding is write-once.
func (s *Rewards) referrerOf(userID int64) *int64 {
	rec, err := s.ledger.Users.Get(userID)
	if err != nil || rec.ReferrerID == nil {
		return nil
	}
	if !s.ledger.Users.Exists(*rec.ReferrerID) {
		return nil
	}
	return rec.ReferrerID
}

// withReferee runs fn with the referee's record locked, and the referrer's
// too when one exists. Lock order is fixed by ascending identity.
func (s *Rewards) withReferee(userID int64, referrerID *int64, fn func(rec, referrer *domain.UserRecord) error) error {
	if referrerID == nil {
		return s.ledger.Users.WithExistingRecord(userID, func(rec *domain.UserRecord) error {
			return fn(rec, nil)
		})
	}
	return s.ledger.Users.WithTwoRecords(userID, *referrerID, fn)
}

func (s *Rewards) notifyReferrer(ctx context.Context, referrerID *int64, text string) {
	if referrerID == nil || s.notifier == nil {
		return
	}
	rec, err := s.ledger.Users.Get(*referrerID)
	if err != nil || rec.ChatID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, rec.ChatID, text); err != nil {
		slog.Warn("referrer notification failed", "referrer_id", *referrerID, "error", err)
	}
}

func (s *Rewards) dropParticipation(userID, taskID int64) {
	s.ledger.Users.WithExistingRecord(userID, func(rec *domain.UserRecord) error {
		rec.DropParticipation(taskID)
		return nil
	})
}

// purgeEverywhere removes a retired task from every participation list.
func (s *Rewards) purgeEverywhere(taskID int64) {
	for _, id := range s.ledger.Users.IDs() {
		s.dropParticipation(id, taskID)
	}
}

// syncMirrors refreshes the display-only activation counters on every
// participation entry for the task.
func (s *Rewards) syncMirrors(taskID, activations int64) {
	for _, id := range s.ledger.Users.IDs() {
		s.ledger.Users.WithExistingRecord(id, func(rec *domain.UserRecord) error {
			if p := rec.Participation(taskID); p != nil {
				p.CurrentActivations = activations
			}
			return nil
		})
	}
}

// applyXP credits XP and runs the level-up cascade. The loop terminates
// because the threshold grows with every crossing.
func applyXP(rec *domain.UserRecord, xp int) (levels int, bonus decimal.Decimal) {
	rec.XP += xp
	bonus = decimal.Zero
	for rec.XP >= config.LevelThreshold(rec.Level) {
		rec.XP -= config.LevelThreshold(rec.Level)
		rec.Level++
		r := config.LevelReward(rec.Level)
		rec.Balance = rec.Balance.Add(r)
		rec.TotalEarned = rec.TotalEarned.Add(r)
		bonus = bonus.Add(r)
		levels++
	}
	return levels, bonus
}

// cascadeReferral credits the referrer's share of a rewarding event. The
// share is computed from the event's reward, never from the referee's
// post-credit balance.
func cascadeReferral(referrer *domain.UserRecord, reward decimal.Decimal) decimal.Decimal {
	share := reward.Mul(referralShare).Round(2)
	referrer.Balance = referrer.Balance.Add(share)
	referrer.TotalEarned = referrer.TotalEarned.Add(share)
	referrer.ReferralEarnings = referrer.ReferralEarnings.Add(share)
	return share
}
