package tasks

import (
	"sync"
	"time"
)

// RunStatus tracks the outcome of the most recent pipeline runs. It is
// shared between the scheduler worker and the HTTP handlers.
type RunStatus struct {
	mu            sync.RWMutex
	lastRunAt     *time.Time
	lastSuccessAt *time.Time
	lastPublishAt *time.Time
	lastError     string
	items         int
	runs          int
	failures      int
}

type RunStatusSnapshot struct {
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastPublishAt *time.Time `json:"last_publish_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	Items         int        `json:"items"`
	Runs          int        `json:"runs"`
	Failures      int        `json:"failures"`
}

func NewRunStatus() *RunStatus {
	return &RunStatus{}
}

func (s *RunStatus) record(items int, published bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.lastRunAt = &now
	s.runs++

	if err != nil {
		s.lastError = err.Error()
		s.failures++
		return
	}

	s.lastSuccessAt = &now
	s.lastError = ""
	s.items = items
	if published {
		s.lastPublishAt = &now
	}
}

func (s *RunStatus) Snapshot() RunStatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return RunStatusSnapshot{
		LastRunAt:     s.lastRunAt,
		LastSuccessAt: s.lastSuccessAt,
		LastPublishAt: s.lastPublishAt,
		LastError:     s.lastError,
		Items:         s.items,
		Runs:          s.runs,
		Failures:      s.failures,
	}
}

// Healthy reports whether the last run, if any, succeeded.
func (s *RunStatus) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError == ""
}
