package repository

import (
	"fmt"
	"sync"
)

// Ledger bundles the user repository and the special task pool with their
// durable store. Flush serializes the whole ledger and publishes it
// atomically; callers flush before confirming anything to the outside world.
type Ledger struct {
	Users *Users
	Pool  *Pool

	store   *Store
	flushMu sync.Mutex
}

// Open loads the last snapshot and builds the in-memory ledger from it.
func Open(path string) (*Ledger, error) {
	store := NewStore(path)
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return &Ledger{
		Users: NewUsers(state.Users),
		Pool:  NewPool(state.SpecialTasks, state.NextTaskID),
		store: store,
	}, nil
}

// Flush writes the full ledger state. Serialized so concurrent mutators
// cannot interleave partially written snapshots.
func (l *Ledger) Flush() error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	tasks, nextID := l.Pool.State()
	state := &LedgerState{
		Users:        l.Users.State(),
		SpecialTasks: tasks,
		NextTaskID:   nextID,
	}
	if err := l.store.Save(state); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}
