package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/set-night/questbot/internal/domain"
)

// LedgerState is the whole-ledger snapshot: every user record keyed by the
// stringified numeric identity, plus the special task pool and its ID counter.
type LedgerState struct {
	Users        map[string]*domain.UserRecord `json:"users"`
	SpecialTasks []*domain.GlobalSpecialTask   `json:"special_tasks"`
	NextTaskID   int64                         `json:"next_task_id"`
}

// Store persists the ledger as one human-diffable JSON file, rewritten
// atomically (temp file and rename) on every flush.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// userRecordJSON accepts the legacy scalar special_task field alongside the
// current list form so old snapshots load cleanly.
type userRecordJSON struct {
	domain.UserRecord
	LegacySpecial *domain.SpecialTaskParticipation `json:"special_task,omitempty"`
}

// Load reads the last snapshot, migrating legacy shapes. A missing file
// yields an empty ledger.
func (s *Store) Load() (*LedgerState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyState(), nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var state LedgerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if state.Users == nil {
		// Legacy format: a flat map of user ID to record, no pool section.
		var legacy map[string]json.RawMessage
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy snapshot: %w", err)
		}
		state.Users = make(map[string]*domain.UserRecord, len(legacy))
		for key, msg := range legacy {
			rec, err := decodeUser(msg)
			if err != nil {
				return nil, fmt.Errorf("decode legacy user %s: %w", key, err)
			}
			state.Users[key] = rec
		}
	}

	for _, rec := range state.Users {
		migrateRecord(rec)
	}
	if state.SpecialTasks == nil {
		state.SpecialTasks = []*domain.GlobalSpecialTask{}
	}
	for _, t := range state.SpecialTasks {
		if t.TaskID >= state.NextTaskID {
			state.NextTaskID = t.TaskID + 1
		}
	}
	if state.NextTaskID < 1 {
		state.NextTaskID = 1
	}
	return &state, nil
}

// Save atomically replaces the snapshot file with the given state.
func (s *Store) Save(state *LedgerState) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func decodeUser(msg json.RawMessage) (*domain.UserRecord, error) {
	var u userRecordJSON
	if err := json.Unmarshal(msg, &u); err != nil {
		return nil, err
	}
	rec := u.UserRecord
	if u.LegacySpecial != nil && len(rec.SpecialTasks) == 0 {
		rec.SpecialTasks = []*domain.SpecialTaskParticipation{u.LegacySpecial}
	}
	return &rec, nil
}

func migrateRecord(rec *domain.UserRecord) {
	if rec.Level < 1 {
		rec.Level = 1
	}
	if rec.Tasks == nil {
		rec.Tasks = make(map[string]*domain.TaskState)
	}
	if rec.SpecialTasks == nil {
		rec.SpecialTasks = []*domain.SpecialTaskParticipation{}
	}
}

func emptyState() *LedgerState {
	return &LedgerState{
		Users:        make(map[string]*domain.UserRecord),
		SpecialTasks: []*domain.GlobalSpecialTask{},
		NextTaskID:   1,
	}
}
