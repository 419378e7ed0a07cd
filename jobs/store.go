// Package jobs tracks the status of asynchronous reel renders.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"reelbot/reel"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrJobActive is returned when a request reuses the ID of a job that is
// still queued or running. Each reel owns WORK_DIR/<id> while it renders.
var ErrJobActive = errors.New("a job with this id is already queued or running")

// Job is the stored record of one render.
type Job struct {
	ID        string       `json:"id"`
	Status    Status       `json:"status"`
	Source    string       `json:"source,omitempty"`
	Request   reel.Request `json:"request"`
	Result    *reel.Result `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	Stage     string       `json:"stage,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Done reports whether the job reached a terminal state.
func (j Job) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Store persists jobs.
type Store interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
}

// MemoryStore keeps jobs in process memory. Used when no Redis is configured
// and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Put(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}
