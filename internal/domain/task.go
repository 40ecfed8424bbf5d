package domain

import (
	"github.com/shopspring/decimal"
)

// GlobalSpecialTask is a promotional task with a finite activation cap shared
// across all users. CurrentActivations is mutated only through the pool's
// compare-and-increment claim; once it reaches MaxActivations the task is
// retired and purged from every participation list.
type GlobalSpecialTask struct {
	TaskID             int64           `json:"task_id"`
	Link               string          `json:"link"`
	Reward             decimal.Decimal `json:"reward"`
	MaxActivations     int64           `json:"max_activations"`
	CurrentActivations int64           `json:"current_activations"`
}

// Participation builds a user's fresh shadow copy of the task.
func (t *GlobalSpecialTask) Participation() *SpecialTaskParticipation {
	return &SpecialTaskParticipation{
		TaskID:             t.TaskID,
		Link:               t.Link,
		Reward:             t.Reward,
		MaxActivations:     t.MaxActivations,
		CurrentActivations: t.CurrentActivations,
	}
}
