// Package inmemory provides in-memory implementations of the AuditLog and ConfigStore ports.
// Everything is held in maps, suitable for tests and for local runs without a process database.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
)

// InMemoryAuditLog is an in-memory implementation of repository.AuditLog.
type InMemoryAuditLog struct {
	jobLogs  map[string]*model.JobLogEntry
	taskLogs map[string]*model.TaskLogEntry
	now      func() time.Time
	mu       sync.RWMutex
}

// NewInMemoryAuditLog creates and initializes a new instance of InMemoryAuditLog.
func NewInMemoryAuditLog() *InMemoryAuditLog {
	return &InMemoryAuditLog{
		jobLogs:  make(map[string]*model.JobLogEntry),
		taskLogs: make(map[string]*model.TaskLogEntry),
		now:      time.Now,
	}
}

// WithClock replaces the clock stamping dw_updated_ts.
func (r *InMemoryAuditLog) WithClock(now func() time.Time) *InMemoryAuditLog {
	r.now = now
	return r
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NextBatchSeq implements repository.AuditLog.
func (r *InMemoryAuditLog) NextBatchSeq(ctx context.Context, jobID int, batchDate time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	max := 0
	for _, e := range r.jobLogs {
		if e.JobID == jobID && sameDay(e.BatchDate, batchDate) && e.BatchSeq > max {
			max = e.BatchSeq
		}
	}
	return max + 1, nil
}

// InsertJobLog implements repository.AuditLog.
func (r *InMemoryAuditLog) InsertJobLog(ctx context.Context, entry *model.JobLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobLogs[entry.BatchID]; exists {
		return fmt.Errorf("job log '%s' already exists", entry.BatchID)
	}
	clone := *entry
	r.jobLogs[entry.BatchID] = &clone
	return nil
}

// UpdateJobLog implements repository.AuditLog.
func (r *InMemoryAuditLog) UpdateJobLog(ctx context.Context, batchID string, u model.JobLogUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobLogs[batchID]
	if !ok {
		return repository.ErrJobLogNotFound
	}
	if u.JobStatus != nil {
		e.JobStatus = *u.JobStatus
	}
	if u.ValidationStatus != nil {
		e.ValidationStatus = model.Ptr(*u.ValidationStatus)
	}
	if u.FailFast != nil {
		e.FailFast = model.Ptr(*u.FailFast)
	}
	if u.IsRestart != nil {
		e.IsRestart = model.Ptr(*u.IsRestart)
	}
	if u.JobExceptionType != nil {
		e.JobExceptionType = model.Ptr(*u.JobExceptionType)
	}
	if u.JobExceptionMessage != nil {
		e.JobExceptionMessage = model.Ptr(*u.JobExceptionMessage)
	}
	e.DWUpdatedTS = model.Ptr(r.now())
	return nil
}

// FindJobLog implements repository.AuditLog.
func (r *InMemoryAuditLog) FindJobLog(ctx context.Context, batchID string) (*model.JobLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobLogs[batchID]
	if !ok {
		return nil, repository.ErrJobLogNotFound
	}
	clone := *e
	return &clone, nil
}

// CountActiveRuns implements repository.AuditLog.
func (r *InMemoryAuditLog) CountActiveRuns(ctx context.Context, jobID int, excludeBatchID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, e := range r.jobLogs {
		if e.JobID == jobID && e.BatchID != excludeBatchID && !e.JobStatus.IsTerminal() {
			n++
		}
	}
	return n, nil
}

// DescribeActiveRunsQuery implements repository.AuditLog.
func (r *InMemoryAuditLog) DescribeActiveRunsQuery(jobID int, excludeBatchID string) string {
	return fmt.Sprintf("job logs with job_id = %d AND batch_id != '%s' AND job_status NOT IN %v",
		jobID, excludeBatchID, model.TerminalJobStatuses)
}

// FindPreviousJobLog implements repository.AuditLog.
func (r *InMemoryAuditLog) FindPreviousJobLog(ctx context.Context, jobID int, excludeBatchID string) (*model.JobLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *model.JobLogEntry
	for _, e := range r.jobLogs {
		if e.JobID != jobID || e.BatchID == excludeBatchID {
			continue
		}
		if latest == nil || e.BatchDate.After(latest.BatchDate) ||
			(e.BatchDate.Equal(latest.BatchDate) && e.BatchSeq > latest.BatchSeq) {
			latest = e
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// tasksOf returns the task logs of a job batch ordered by task_id. The caller holds the lock.
func (r *InMemoryAuditLog) tasksOf(batchID string) []*model.TaskLogEntry {
	prefix := batchID + "_"
	var out []*model.TaskLogEntry
	for id, e := range r.taskLogs {
		if strings.HasPrefix(id, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// FindFirstFailedTaskID implements repository.AuditLog.
func (r *InMemoryAuditLog) FindFirstFailedTaskID(ctx context.Context, batchID string) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.tasksOf(batchID) {
		if e.TaskStatus == model.TaskStatusFailure {
			return e.TaskID, true, nil
		}
	}
	return 0, false, nil
}

// InsertTaskLog implements repository.AuditLog.
func (r *InMemoryAuditLog) InsertTaskLog(ctx context.Context, entry *model.TaskLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.taskLogs[entry.BatchID]; exists {
		return fmt.Errorf("task log '%s' already exists", entry.BatchID)
	}
	clone := *entry
	r.taskLogs[entry.BatchID] = &clone
	return nil
}

// CountTaskStatuses implements repository.AuditLog.
func (r *InMemoryAuditLog) CountTaskStatuses(ctx context.Context, batchID string) (model.TaskStatusCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(model.TaskStatusCounts)
	for _, e := range r.tasksOf(batchID) {
		counts[e.TaskStatus]++
	}
	return counts, nil
}

// FindTaskLogs implements repository.AuditLog.
func (r *InMemoryAuditLog) FindTaskLogs(ctx context.Context, batchID string) ([]model.TaskLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := r.tasksOf(batchID)
	out := make([]model.TaskLogEntry, len(tasks))
	for i, e := range tasks {
		out[i] = *e
	}
	return out, nil
}

// JobLogs returns a snapshot of every job log row ordered by batch id.
func (r *InMemoryAuditLog) JobLogs() []model.JobLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.JobLogEntry, 0, len(r.jobLogs))
	for _, e := range r.jobLogs {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out
}

var _ repository.AuditLog = (*InMemoryAuditLog)(nil)
