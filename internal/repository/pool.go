package repository

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/set-night/questbot/internal/domain"
	"github.com/shopspring/decimal"
)

type poolTask struct {
	task        *domain.GlobalSpecialTask
	activations atomic.Int64
}

// Pool owns the finite-activation special tasks shared across all users.
// Claims serialize through a per-task compare-and-increment counter, so
// exactly MaxActivations claims ever succeed and each successful claim
// observes a distinct counter value.
type Pool struct {
	mu     sync.RWMutex
	tasks  map[int64]*poolTask
	nextID atomic.Int64
}

// ClaimResult reports a granted activation slot.
type ClaimResult struct {
	// Activations is the post-increment counter, a total order over claims.
	Activations int64
	// Retired is set on the claim that reaches the cap; the caller must
	// purge the task's participation entries from every user record.
	Retired bool
	Task    domain.GlobalSpecialTask
}

func NewPool(tasks []*domain.GlobalSpecialTask, nextID int64) *Pool {
	p := &Pool{tasks: make(map[int64]*poolTask, len(tasks))}
	if nextID < 1 {
		nextID = 1
	}
	for _, t := range tasks {
		pt := &poolTask{task: t}
		pt.activations.Store(t.CurrentActivations)
		p.tasks[t.TaskID] = pt
		if t.TaskID >= nextID {
			nextID = t.TaskID + 1
		}
	}
	p.nextID.Store(nextID)
	return p
}

// Add registers a new special task under a fresh monotonically increasing ID.
func (p *Pool) Add(link string, reward decimal.Decimal, maxActivations int64) *domain.GlobalSpecialTask {
	id := p.nextID.Add(1) - 1
	t := &domain.GlobalSpecialTask{
		TaskID:         id,
		Link:           link,
		Reward:         reward,
		MaxActivations: maxActivations,
	}
	p.mu.Lock()
	p.tasks[id] = &poolTask{task: t}
	p.mu.Unlock()
	out := *t
	return &out
}

// Claim consumes one activation slot. Concurrent claims for the same task
// serialize on the counter: the (MaxActivations+1)th and later claims always
// get ErrCapReached. On the claim that fills the cap the task is retired.
func (p *Pool) Claim(taskID int64) (ClaimResult, error) {
	p.mu.RLock()
	pt, ok := p.tasks[taskID]
	p.mu.RUnlock()
	if !ok {
		return ClaimResult{}, domain.ErrTaskNotFound
	}

	for {
		cur := pt.activations.Load()
		if cur >= pt.task.MaxActivations {
			return ClaimResult{}, domain.ErrCapReached
		}
		if !pt.activations.CompareAndSwap(cur, cur+1) {
			continue
		}
		granted := cur + 1
		res := ClaimResult{Activations: granted, Task: *pt.task}
		res.Task.CurrentActivations = granted
		if granted >= pt.task.MaxActivations {
			res.Retired = true
			p.mu.Lock()
			delete(p.tasks, taskID)
			p.mu.Unlock()
		}
		return res, nil
	}
}

// Get returns a copy of an active task.
func (p *Pool) Get(taskID int64) (*domain.GlobalSpecialTask, error) {
	p.mu.RLock()
	pt, ok := p.tasks[taskID]
	p.mu.RUnlock()
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t := *pt.task
	t.CurrentActivations = pt.activations.Load()
	return &t, nil
}

// Active returns copies of all unretired tasks, ordered by ID.
func (p *Pool) Active() []*domain.GlobalSpecialTask {
	p.mu.RLock()
	out := make([]*domain.GlobalSpecialTask, 0, len(p.tasks))
	for _, pt := range p.tasks {
		t := *pt.task
		t.CurrentActivations = pt.activations.Load()
		out = append(out, &t)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// State returns the serializable pool contents and the next ID to assign.
func (p *Pool) State() ([]*domain.GlobalSpecialTask, int64) {
	return p.Active(), p.nextID.Load()
}
