package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []runner.Request
	started  chan struct{}
	release  chan struct{}
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, req runner.Request) (*runner.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &runner.Result{BatchID: "20261018_3_1", Status: model.JobStatusCompleted}, nil
}

func (f *fakeRunner) calls() []runner.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Request(nil), f.requests...)
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, ValidateCron("*/5 * * * *"))
	assert.NoError(t, ValidateCron("0 6 * * 1-5"))

	err := ValidateCron("0 */5 * * * *")
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	_, err := New(&fakeRunner{}, []config.ScheduleConfig{{JobID: 3, Cron: "not a cron"}}, time.UTC)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))

	_, err = New(&fakeRunner{}, []config.ScheduleConfig{{JobID: 0, Cron: "* * * * *"}}, time.UTC)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
}

func TestEntryRunsScheduledRequest(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(r, []config.ScheduleConfig{{JobID: 3, Cron: "0 6 * * *"}, {JobID: 4, Cron: "30 6 * * *"}}, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	for _, e := range s.cron.Entries() {
		e.Job.Run()
	}

	assert.ElementsMatch(t, []runner.Request{
		{JobID: 3, Scheduled: true},
		{JobID: 4, Scheduled: true},
	}, r.calls())
}

func TestEntrySkipsWhilePreviousRunIsActive(t *testing.T) {
	r := &fakeRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := New(r, []config.ScheduleConfig{{JobID: 3, Cron: "* * * * *"}}, time.UTC)
	require.NoError(t, err)
	entry := s.cron.Entries()[0]

	done := make(chan struct{})
	go func() {
		entry.Job.Run()
		close(done)
	}()
	<-r.started

	entry.Job.Run()
	close(r.release)
	<-done

	assert.Len(t, r.calls(), 1)
}

func TestRunnerErrorDoesNotPanic(t *testing.T) {
	r := &fakeRunner{err: errors.New("config store unavailable")}
	s, err := New(r, []config.ScheduleConfig{{JobID: 3, Cron: "* * * * *"}}, time.UTC)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.cron.Entries()[0].Job.Run() })
	assert.Len(t, r.calls(), 1)
}

func TestTriggerAfterCancelDoesNotRun(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(r, []config.ScheduleConfig{{JobID: 3, Cron: "* * * * *"}}, time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.trigger(3)
	require.NoError(t, s.Stop(context.Background()))

	assert.Empty(t, r.calls())
}
