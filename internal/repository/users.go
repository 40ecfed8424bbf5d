package repository

import (
	"sort"
	"strconv"
	"sync"

	"github.com/set-night/questbot/internal/domain"
)

type userEntry struct {
	mu  sync.Mutex
	rec *domain.UserRecord
}

// Users owns the user ID to record mapping. Records are mutated only inside
// WithRecord / WithTwoRecords critical sections; everything handed out of the
// repository is a deep copy.
type Users struct {
	mu      sync.RWMutex
	entries map[int64]*userEntry
}

func NewUsers(initial map[string]*domain.UserRecord) *Users {
	u := &Users{entries: make(map[int64]*userEntry, len(initial))}
	for key, rec := range initial {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		u.entries[id] = &userEntry{rec: rec}
	}
	return u
}

func (u *Users) entry(id int64, create bool) (*userEntry, bool) {
	u.mu.RLock()
	e, ok := u.entries[id]
	u.mu.RUnlock()
	if ok || !create {
		return e, false
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if e, ok = u.entries[id]; ok {
		return e, false
	}
	e = &userEntry{rec: domain.NewUserRecord()}
	e.rec.ReferralCode = "ref" + strconv.FormatInt(id, 10)
	u.entries[id] = e
	return e, true
}

// GetOrCreate returns a copy of the user's record, default-constructing it on
// first contact. The created flag tells the caller a flush is due.
func (u *Users) GetOrCreate(id int64) (*domain.UserRecord, bool) {
	e, created := u.entry(id, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), created
}

// Get returns a copy of an existing record, or ErrUserNotFound.
func (u *Users) Get(id int64) (*domain.UserRecord, error) {
	e, _ := u.entry(id, false)
	if e == nil {
		return nil, domain.ErrUserNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Exists reports whether a live record exists for the identity.
func (u *Users) Exists(id int64) bool {
	e, _ := u.entry(id, false)
	return e != nil
}

// WithRecord runs fn as the record's exclusive critical section, creating the
// record if absent. fn must not block on external I/O.
func (u *Users) WithRecord(id int64, fn func(rec *domain.UserRecord) error) error {
	e, _ := u.entry(id, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rec)
}

// WithExistingRecord is WithRecord without lazy creation.
func (u *Users) WithExistingRecord(id int64, fn func(rec *domain.UserRecord) error) error {
	e, _ := u.entry(id, false)
	if e == nil {
		return domain.ErrUserNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rec)
}

// WithTwoRecords locks both records in ascending-ID order and runs fn.
// The fixed order keeps crossing referral chains deadlock-free.
func (u *Users) WithTwoRecords(a, b int64, fn func(recA, recB *domain.UserRecord) error) error {
	if a == b {
		return u.WithRecord(a, func(rec *domain.UserRecord) error { return fn(rec, rec) })
	}
	ea, _ := u.entry(a, true)
	eb, _ := u.entry(b, true)
	first, second := ea, eb
	if b < a {
		first, second = eb, ea
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	return fn(ea.rec, eb.rec)
}

// Remove deletes the record, freeing its referral slot. Dangling ReferrerID
// references on other records stay behind as inert.
func (u *Users) Remove(id int64) {
	u.mu.Lock()
	delete(u.entries, id)
	u.mu.Unlock()
}

// IDs returns all known identities in ascending order.
func (u *Users) IDs() []int64 {
	u.mu.RLock()
	ids := make([]int64, 0, len(u.entries))
	for id := range u.entries {
		ids = append(ids, id)
	}
	u.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ForEach visits a snapshot-consistent copy of every record.
func (u *Users) ForEach(fn func(id int64, rec *domain.UserRecord)) {
	for _, id := range u.IDs() {
		e, _ := u.entry(id, false)
		if e == nil {
			continue
		}
		e.mu.Lock()
		rec := e.rec.Clone()
		e.mu.Unlock()
		fn(id, rec)
	}
}

// Len returns the number of known users.
func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.entries)
}

// State deep-copies every record for serialization.
func (u *Users) State() map[string]*domain.UserRecord {
	out := make(map[string]*domain.UserRecord)
	u.ForEach(func(id int64, rec *domain.UserRecord) {
		out[strconv.FormatInt(id, 10)] = rec
	})
	return out
}
