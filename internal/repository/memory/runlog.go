package memory

import (
	"context"
	"sync"
	"time"

	"auto_update_reviews/internal/domain"
)

// RunLogRepository is an in-memory, append-only run log
type RunLogRepository struct {
	mu      sync.RWMutex
	entries []domain.RunLog
}

// NewRunLogRepository creates a new in-memory run log
func NewRunLogRepository() *RunLogRepository {
	return &RunLogRepository{}
}

// AppendLog stores a copy of the entry and assigns its id
func (r *RunLogRepository) AppendLog(_ context.Context, entry *domain.RunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

// ListLogs returns up to limit entries, newest first
func (r *RunLogRepository) ListLogs(_ context.Context, limit int) ([]*domain.RunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.RunLog, 0, n)
	for i := len(r.entries) - 1; i >= 0 && len(out) < n; i-- {
		entry := r.entries[i]
		out = append(out, &entry)
	}
	return out, nil
}

// LastSuccess returns the newest successful entry, or nil
func (r *RunLogRepository) LastSuccess(_ context.Context) (*domain.RunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Status == domain.RunStatusSuccess {
			entry := r.entries[i]
			return &entry, nil
		}
	}
	return nil, nil
}

// SettingsStore keeps scheduler settings in memory
type SettingsStore struct {
	mu      sync.RWMutex
	enabled *bool
}

// NewSettingsStore creates an empty settings store
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{}
}

// SchedulerEnabled returns the stored flag
func (s *SettingsStore) SchedulerEnabled(_ context.Context) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enabled == nil {
		return false, false, nil
	}
	return *s.enabled, true, nil
}

// SetSchedulerEnabled stores the flag
func (s *SettingsStore) SetSchedulerEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = &enabled
	return nil
}
