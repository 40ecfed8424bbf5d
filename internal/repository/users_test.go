package repository

import (
	"sync"
	"testing"

	"github.com/set-night/questbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersGetOrCreateDefaults(t *testing.T) {
	users := NewUsers(nil)

	rec, created := users.GetOrCreate(42)
	assert.True(t, created)
	assert.Equal(t, 1, rec.Level)
	assert.Equal(t, 0, rec.XP)
	assert.True(t, rec.Balance.IsZero())
	assert.False(t, rec.UsedReferral)
	assert.Equal(t, "ref42", rec.ReferralCode)

	_, created = users.GetOrCreate(42)
	assert.False(t, created)
	assert.Equal(t, 1, users.Len())
}

func TestUsersHandedOutRecordsAreCopies(t *testing.T) {
	users := NewUsers(nil)
	users.GetOrCreate(1)

	rec, err := users.Get(1)
	require.NoError(t, err)
	rec.Balance = decimal.NewFromInt(1000)
	rec.Tasks["hacked"] = &domain.TaskState{}

	fresh, err := users.Get(1)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.IsZero())
	assert.NotContains(t, fresh.Tasks, "hacked")
}

func TestUsersWithRecordMutates(t *testing.T) {
	users := NewUsers(nil)

	err := users.WithRecord(5, func(rec *domain.UserRecord) error {
		rec.Balance = decimal.NewFromFloat(2.50)
		return nil
	})
	require.NoError(t, err)

	rec, err := users.Get(5)
	require.NoError(t, err)
	assert.True(t, rec.Balance.Equal(decimal.NewFromFloat(2.50)))
}

func TestUsersWithExistingRecordMissing(t *testing.T) {
	users := NewUsers(nil)
	err := users.WithExistingRecord(404, func(rec *domain.UserRecord) error { return nil })
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUsersRemove(t *testing.T) {
	users := NewUsers(nil)
	users.GetOrCreate(1)
	users.Remove(1)

	assert.False(t, users.Exists(1))
	_, err := users.Get(1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUsersWithTwoRecordsConcurrentCrossing(t *testing.T) {
	users := NewUsers(nil)
	users.GetOrCreate(1)
	users.GetOrCreate(2)

	// Crossing referral chains: 1→2 and 2→1 concurrently. Ascending-ID lock
	// order keeps this deadlock-free; the test hangs on regression.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			users.WithTwoRecords(1, 2, func(a, b *domain.UserRecord) error {
				a.XP++
				b.XP++
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			users.WithTwoRecords(2, 1, func(a, b *domain.UserRecord) error {
				a.XP++
				b.XP++
				return nil
			})
		}()
	}
	wg.Wait()

	rec1, _ := users.Get(1)
	rec2, _ := users.Get(2)
	assert.Equal(t, 200, rec1.XP)
	assert.Equal(t, 200, rec2.XP)
}

func TestUsersForEachSnapshotConsistent(t *testing.T) {
	users := NewUsers(nil)
	users.GetOrCreate(3)
	users.GetOrCreate(1)
	users.GetOrCreate(2)

	var seen []int64
	users.ForEach(func(id int64, rec *domain.UserRecord) {
		seen = append(seen, id)
		rec.Level = 99 // mutating the copy must not leak back
	})
	assert.Equal(t, []int64{1, 2, 3}, seen)

	rec, _ := users.Get(2)
	assert.Equal(t, 1, rec.Level)
}

func TestUsersStateKeys(t *testing.T) {
	users := NewUsers(map[string]*domain.UserRecord{
		"10":  domain.NewUserRecord(),
		"bad": domain.NewUserRecord(),
	})
	assert.Equal(t, 1, users.Len())

	state := users.State()
	assert.Contains(t, state, "10")
	assert.NotContains(t, state, "bad")
}
