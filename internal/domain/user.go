package domain

import (
	"github.com/shopspring/decimal"
)

// TaskStatus is the gateway-reported state of a provider-sourced task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusOK      TaskStatus = "ok"
	TaskStatusWarning TaskStatus = "warning"
)

// TaskState is the per-user state of one provider-sourced task, keyed by the
// raw link exactly as the provider returned it. Once PermanentlyCompleted is
// set the entry is terminal and must never change again.
type TaskState struct {
	Completed            bool            `json:"completed"`
	PermanentlyCompleted bool            `json:"permanently_completed"`
	Reward               decimal.Decimal `json:"reward"`
	Status               TaskStatus      `json:"status"`
	LastCheckedAt        int64           `json:"last_checked"`
}

// SpecialTaskParticipation is a user's shadow copy of a global special task.
// CurrentActivations here is a display mirror; the authoritative counter
// lives on the pool's GlobalSpecialTask.
type SpecialTaskParticipation struct {
	TaskID             int64           `json:"task_id"`
	Link               string          `json:"link"`
	Reward             decimal.Decimal `json:"reward"`
	MaxActivations     int64           `json:"max_activations"`
	CurrentActivations int64           `json:"current_activations"`
	Completed          bool            `json:"completed"`
}

// UserRecord is one user's slice of the ledger. All reads-then-writes of its
// fields happen inside the repository's per-record critical section.
type UserRecord struct {
	Balance          decimal.Decimal             `json:"balance"`
	TotalEarned      decimal.Decimal             `json:"total_earned"`
	Level            int                         `json:"level"`
	XP               int                         `json:"xp"`
	Referrals        int                         `json:"referrals"`
	ReferralEarnings decimal.Decimal             `json:"referral_earnings"`
	ReferralCode     string                      `json:"referral_code"`
	UsedReferral     bool                        `json:"used_referral"`
	ReferrerID       *int64                      `json:"referrer_id"`
	ChatID           int64                       `json:"chat_id"`
	LastNotifiedAt   int64                       `json:"last_notification"`
	Tasks            map[string]*TaskState       `json:"tasks"`
	SpecialTasks     []*SpecialTaskParticipation `json:"special_tasks"`
}

// NewUserRecord returns the default-initialized record created on first contact.
func NewUserRecord() *UserRecord {
	return &UserRecord{
		Balance:          decimal.Zero,
		TotalEarned:      decimal.Zero,
		Level:            1,
		ReferralEarnings: decimal.Zero,
		Tasks:            make(map[string]*TaskState),
		SpecialTasks:     []*SpecialTaskParticipation{},
	}
}

// Participation returns the user's entry for the given special task, or nil.
func (u *UserRecord) Participation(taskID int64) *SpecialTaskParticipation {
	for _, p := range u.SpecialTasks {
		if p.TaskID == taskID {
			return p
		}
	}
	return nil
}

// DropParticipation removes the user's entry for the given special task.
func (u *UserRecord) DropParticipation(taskID int64) {
	kept := u.SpecialTasks[:0]
	for _, p := range u.SpecialTasks {
		if p.TaskID != taskID {
			kept = append(kept, p)
		}
	}
	u.SpecialTasks = kept
}

// Clone deep-copies the record so iteration never observes a mid-mutation state.
func (u *UserRecord) Clone() *UserRecord {
	c := *u
	if u.ReferrerID != nil {
		id := *u.ReferrerID
		c.ReferrerID = &id
	}
	c.Tasks = make(map[string]*TaskState, len(u.Tasks))
	for link, st := range u.Tasks {
		stc := *st
		c.Tasks[link] = &stc
	}
	c.SpecialTasks = make([]*SpecialTaskParticipation, len(u.SpecialTasks))
	for i, p := range u.SpecialTasks {
		pc := *p
		c.SpecialTasks[i] = &pc
	}
	return &c
}
