package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
)

// InMemoryConfigStore is an in-memory implementation of repository.ConfigStore.
type InMemoryConfigStore struct {
	jobs  map[int][]repository.ConfigRecord
	tasks map[int][]repository.ConfigRecord
	mu    sync.RWMutex
}

// NewInMemoryConfigStore creates an empty store.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{
		jobs:  make(map[int][]repository.ConfigRecord),
		tasks: make(map[int][]repository.ConfigRecord),
	}
}

// AddJob appends a job configuration row.
func (s *InMemoryConfigStore) AddJob(jobID int, record repository.ConfigRecord) *InMemoryConfigStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = append(s.jobs[jobID], record)
	return s
}

// AddTask appends a task configuration row.
func (s *InMemoryConfigStore) AddTask(jobID int, record repository.ConfigRecord) *InMemoryConfigStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[jobID] = append(s.tasks[jobID], record)
	return s
}

// FindJobConfigRecords implements repository.ConfigStore.
func (s *InMemoryConfigStore) FindJobConfigRecords(ctx context.Context, jobID int) ([]repository.ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.jobs[jobID]), nil
}

// FindTaskConfigRecords implements repository.ConfigStore.
func (s *InMemoryConfigStore) FindTaskConfigRecords(ctx context.Context, jobID int) ([]repository.ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := copyRecords(s.tasks[jobID])
	sort.SliceStable(out, func(i, j int) bool { return taskID(out[i]) < taskID(out[j]) })
	for _, r := range out {
		if r["task_parameter"] == nil {
			r["task_parameter"] = map[string]interface{}{}
		}
	}
	return out, nil
}

func taskID(r repository.ConfigRecord) float64 {
	switch v := r["task_id"].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func copyRecords(in []repository.ConfigRecord) []repository.ConfigRecord {
	out := make([]repository.ConfigRecord, len(in))
	for i, r := range in {
		c := make(repository.ConfigRecord, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

var _ repository.ConfigStore = (*InMemoryConfigStore)(nil)
