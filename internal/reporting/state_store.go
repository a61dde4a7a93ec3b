package reporting

import (
	"sync"
	"time"
)

// StageSnapshot is the latest known state of a stage.
type StageSnapshot struct {
	Stage       string
	Status      Status
	Message     string
	Err         error
	LastUpdated time.Time
}

// StateStore keeps the latest snapshot per stage of the current run.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]StageSnapshot
	order  []string
	runID  string
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]StageSnapshot)}
}

// SetStageState records the update and reports whether the stage's status or
// message changed. An update for a new run clears the store.
func (s *StateStore) SetStageState(update StageUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.RunID != s.runID {
		s.runID = update.RunID
		s.states = make(map[string]StageSnapshot)
		s.order = nil
	}

	old, exists := s.states[update.Stage]
	if !exists {
		s.order = append(s.order, update.Stage)
	}
	snap := StageSnapshot{
		Stage:       update.Stage,
		Status:      update.Status,
		Message:     update.Message,
		Err:         update.Err,
		LastUpdated: update.Timestamp,
	}
	s.states[update.Stage] = snap
	return !exists || old.Status != snap.Status || old.Message != snap.Message
}

// GetStageState returns the snapshot of one stage.
func (s *StateStore) GetStageState(stage string) (StageSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.states[stage]
	return snap, ok
}

// Stages returns every snapshot in first-seen order.
func (s *StateStore) Stages() []StageSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StageSnapshot, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.states[name])
	}
	return out
}
