package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInMemoryAuditLogJobLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	repo := NewInMemoryAuditLog().WithClock(func() time.Time { return clock })

	seq, err := repo.NextBatchSeq(ctx, 7, day(2025, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	id := model.NewBatchIdentity(7, day(2025, 3, 4), seq, model.BatchTypeManual)
	require.NoError(t, repo.InsertJobLog(ctx, &model.JobLogEntry{
		BatchID: id.BatchID, JobID: 7, BatchDate: id.BatchDate, BatchSeq: 1,
		JobStatus: model.JobStatusTriggered, DWCreatedTS: clock.Add(-time.Minute),
	}))
	assert.Error(t, repo.InsertJobLog(ctx, &model.JobLogEntry{BatchID: id.BatchID}))

	seq, _ = repo.NextBatchSeq(ctx, 7, day(2025, 3, 4))
	assert.Equal(t, 2, seq)
	seq, _ = repo.NextBatchSeq(ctx, 7, day(2025, 3, 5))
	assert.Equal(t, 1, seq)

	require.NoError(t, repo.UpdateJobLog(ctx, id.BatchID, model.JobLogUpdate{
		JobStatus:        model.Ptr(model.JobStatusCompleted),
		ValidationStatus: model.Ptr(model.TaskStatusWarning),
	}))
	got, err := repo.FindJobLog(ctx, id.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.JobStatus)
	assert.Equal(t, "WARNING", got.NotificationStatus())
	assert.Equal(t, time.Minute, got.TimeTaken())

	_, err = repo.FindJobLog(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobLogNotFound)
	assert.ErrorIs(t, repo.UpdateJobLog(ctx, "missing", model.StatusUpdate(model.JobStatusError)), repository.ErrJobLogNotFound)
}

func TestInMemoryAuditLogActiveAndPrevious(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAuditLog()
	insert := func(batchID string, date time.Time, seq int, status model.JobStatus) {
		require.NoError(t, repo.InsertJobLog(ctx, &model.JobLogEntry{
			BatchID: batchID, JobID: 7, BatchDate: date, BatchSeq: seq, JobStatus: status,
		}))
	}
	insert("20250303_7_4", day(2025, 3, 3), 4, model.JobStatusCompleted)
	insert("20250304_7_1", day(2025, 3, 4), 1, model.JobStatusWaiting)
	insert("20250304_7_2", day(2025, 3, 4), 2, model.JobStatusTriggered)

	n, err := repo.CountActiveRuns(ctx, 7, "20250304_7_2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, _ = repo.CountActiveRuns(ctx, 8, "x")
	assert.Zero(t, n)

	prev, err := repo.FindPreviousJobLog(ctx, 7, "20250304_7_2")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "20250304_7_1", prev.BatchID)

	prev, err = repo.FindPreviousJobLog(ctx, 9, "")
	require.NoError(t, err)
	assert.Nil(t, prev)

	assert.Contains(t, repo.DescribeActiveRunsQuery(7, "20250304_7_2"), "'20250304_7_2'")
	assert.Len(t, repo.JobLogs(), 3)
}

func TestInMemoryAuditLogTaskLogs(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAuditLog()
	for _, e := range []model.TaskLogEntry{
		{BatchID: "20250304_7_1_4", TaskID: 4, TaskStatus: model.TaskStatusFailure},
		{BatchID: "20250304_7_1_2", TaskID: 2, TaskStatus: model.TaskStatusSuccess},
		{BatchID: "20250304_7_1_3", TaskID: 3, TaskStatus: model.TaskStatusFailure},
		{BatchID: "20250304_7_11_1", TaskID: 1, TaskStatus: model.TaskStatusFailure},
	} {
		e := e
		require.NoError(t, repo.InsertTaskLog(ctx, &e))
	}

	first, ok, err := repo.FindFirstFailedTaskID(ctx, "20250304_7_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, first)

	_, ok, _ = repo.FindFirstFailedTaskID(ctx, "20250304_7_2")
	assert.False(t, ok)

	counts, err := repo.CountTaskStatuses(ctx, "20250304_7_1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCounts{model.TaskStatusFailure: 2, model.TaskStatusSuccess: 1}, counts)
	assert.Equal(t, model.TaskStatusFailure, counts.ValidationStatus())

	logs, err := repo.FindTaskLogs(ctx, "20250304_7_1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{logs[0].TaskID, logs[1].TaskID, logs[2].TaskID})
}

func TestInMemoryConfigStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryConfigStore().
		AddJob(7, repository.ConfigRecord{"job_id": 7, "job_name": "sales"}).
		AddTask(7, repository.ConfigRecord{"task_id": 2, "task_parameter": map[string]interface{}{"k": "v"}}).
		AddTask(7, repository.ConfigRecord{"task_id": 1})

	jobs, err := store.FindJobConfigRecords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	jobs[0]["job_name"] = "changed"
	again, _ := store.FindJobConfigRecords(ctx, 7)
	assert.Equal(t, "sales", again[0]["job_name"])

	tasks, err := store.FindTaskConfigRecords(ctx, 7)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, 1, tasks[0]["task_id"])
	assert.Equal(t, map[string]interface{}{}, tasks[0]["task_parameter"])

	none, err := store.FindJobConfigRecords(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, none)
}
