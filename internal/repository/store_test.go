package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/set-night/questbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := tempStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Users)
	assert.Empty(t, state.SpecialTasks)
	assert.EqualValues(t, 1, state.NextTaskID)
}

func TestStoreRoundTrip(t *testing.T) {
	store := tempStore(t)

	rec := domain.NewUserRecord()
	rec.Balance = decimal.NewFromFloat(12.50)
	rec.Level = 3
	rec.XP = 42
	rec.Tasks["https://t.me/foo?x=1"] = &domain.TaskState{
		Completed:            true,
		PermanentlyCompleted: true,
		Reward:               decimal.NewFromFloat(2.00),
		Status:               domain.TaskStatusOK,
	}
	referrer := int64(7)
	rec.ReferrerID = &referrer

	state := &LedgerState{
		Users: map[string]*domain.UserRecord{"42": rec},
		SpecialTasks: []*domain.GlobalSpecialTask{{
			TaskID:         3,
			Link:           "https://t.me/promo",
			Reward:         decimal.NewFromFloat(1.00),
			MaxActivations: 10,
		}},
		NextTaskID: 4,
	}
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, loaded.Users, "42")

	got := loaded.Users["42"]
	assert.True(t, got.Balance.Equal(decimal.NewFromFloat(12.50)))
	assert.Equal(t, 3, got.Level)
	require.NotNil(t, got.ReferrerID)
	assert.EqualValues(t, 7, *got.ReferrerID)

	task := got.Tasks["https://t.me/foo?x=1"]
	require.NotNil(t, task)
	assert.True(t, task.PermanentlyCompleted)

	require.Len(t, loaded.SpecialTasks, 1)
	assert.EqualValues(t, 4, loaded.NextTaskID)
}

func TestStoreSaveReplacesAtomically(t *testing.T) {
	store := tempStore(t)

	require.NoError(t, store.Save(emptyState()))
	first, err := os.ReadFile(store.path)
	require.NoError(t, err)

	state := emptyState()
	state.Users["1"] = domain.NewUserRecord()
	require.NoError(t, store.Save(state))

	second, err := os.ReadFile(store.path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, json.Valid(second))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(store.path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreLoadLegacyFlatMap(t *testing.T) {
	store := tempStore(t)

	// Old snapshots were a flat user map with a scalar special_task field
	// and no permanently_completed flag.
	legacy := `{
        "42": {
            "balance": "3.00",
            "level": 2,
            "xp": 10,
            "tasks": {
                "https://t.me/old": {"completed": true, "reward": "2.00", "status": "ok"}
            },
            "special_task": {"task_id": 1, "link": "https://t.me/promo", "reward": "1.00", "max_activations": 5}
        }
    }`
	require.NoError(t, os.WriteFile(store.path, []byte(legacy), 0o644))

	state, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, state.Users, "42")

	rec := state.Users["42"]
	assert.Equal(t, 2, rec.Level)
	assert.False(t, rec.Tasks["https://t.me/old"].PermanentlyCompleted)
	require.Len(t, rec.SpecialTasks, 1)
	assert.EqualValues(t, 1, rec.SpecialTasks[0].TaskID)
	assert.EqualValues(t, 1, state.NextTaskID)
}

func TestStoreLoadRepairsDefaults(t *testing.T) {
	store := tempStore(t)

	raw := `{"users": {"7": {"balance": "0"}}, "special_tasks": [{"task_id": 9, "link": "x", "reward": "1", "max_activations": 2}]}`
	require.NoError(t, os.WriteFile(store.path, []byte(raw), 0o644))

	state, err := store.Load()
	require.NoError(t, err)

	rec := state.Users["7"]
	assert.Equal(t, 1, rec.Level)
	assert.NotNil(t, rec.Tasks)
	assert.NotNil(t, rec.SpecialTasks)

	// NextTaskID advances past the highest stored task.
	assert.EqualValues(t, 10, state.NextTaskID)
}
