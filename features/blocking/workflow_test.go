package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBlockingProcessesEveryFavoriter(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"123": {"alice", "bob", "alice", "carol"}}}
	blocker := &fakeBlocker{}
	notifier := &recordingNotifier{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings(), WithNotifier(notifier))

	res, err := w.StartBlocking(context.Background(), "123", BlockTypeMute, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Merged)
	assert.Equal(t, 3, res.AddedUsers)

	w.Wait()

	op := w.Snapshot()
	require.NotNil(t, op)
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, []string{"alice", "bob", "carol"}, op.ProcessedUsers)
	assert.Empty(t, op.PendingUsers)
	assert.Equal(t, 3, op.TotalUserCount)
	assert.Equal(t, []string{"alice", "bob", "carol"}, blocker.Calls())
	assert.False(t, kv.has(StateKey), "completed operations are removed from the store")

	status := w.GetStatus()
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 3, status.ProcessedCount)
	assert.False(t, status.Running)

	assert.Equal(t, []int{3}, notifier.complete)
	require.NotEmpty(t, notifier.progress)
	last := notifier.progress[len(notifier.progress)-1]
	assert.True(t, last.IsCompleted)
	assert.Equal(t, 3, last.CurrentCount)
}

func TestTransientFailureIsRetried(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"123": {"alice", "bob", "carol"}}}
	blocker := &fakeBlocker{failTimes: map[string]int{"bob": 2}}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "123", BlockTypeMute, false)
	require.NoError(t, err)
	w.Wait()

	op := w.Snapshot()
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, []string{"alice", "bob", "carol"}, op.ProcessedUsers)
	assert.Empty(t, op.FailedUsers)
	assert.Equal(t, []string{"alice", "bob", "bob", "bob", "carol"}, blocker.Calls())
	assert.False(t, kv.has(StateKey))
}

func TestRetriesAreCappedPerUser(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"123": {"alice", "bob", "carol"}}}
	blocker := &fakeBlocker{alwaysErr: map[string]bool{"bob": true}}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "123", BlockTypeBlock, true)
	require.NoError(t, err)
	w.Wait()

	op := w.Snapshot()
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, []string{"alice", "bob", "carol"}, op.ProcessedUsers)
	assert.Equal(t, []string{"bob"}, op.FailedUsers)
	assert.Empty(t, op.RetryCounts)

	bobCalls := 0
	for _, u := range blocker.Calls() {
		if u == "bob" {
			bobCalls++
		}
	}
	assert.Equal(t, 4, bobCalls, "one attempt plus three retries")
}

func TestPanickingRequestCountsAsFailure(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"123": {"alice", "bob"}}}
	blocker := &fakeBlocker{panicFor: "alice"}
	settings := testSettings()
	settings.MaxRetries = 0
	w := newTestWorkflow(t, fetcher, blocker, kv, settings)

	_, err := w.StartBlocking(context.Background(), "123", BlockTypeMute, false)
	require.NoError(t, err)
	w.Wait()

	op := w.Snapshot()
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, []string{"alice"}, op.FailedUsers)
	assert.Equal(t, []string{"alice", "bob"}, op.ProcessedUsers)
}

func TestStartBlockingFetchFailurePersistsNothing(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{err: errors.New("status 503")}
	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	res, err := w.StartBlocking(context.Background(), "123", BlockTypeMute, false)
	require.Error(t, err)
	assert.False(t, res.Success)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "123", fetchErr.EntryID)

	assert.False(t, kv.has(StateKey))
	assert.Equal(t, StatusIdle, w.GetStatus().Status)
	assert.Empty(t, blocker.Calls())
}

func TestStartBlockingRejectsEmptyInput(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"123": {}}}
	w := newTestWorkflow(t, fetcher, &fakeBlocker{}, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "", BlockTypeMute, false)
	assert.ErrorIs(t, err, ErrEmptyEntryID)

	_, err = w.StartBlocking(context.Background(), "123", BlockType("BAN"), false)
	assert.ErrorIs(t, err, ErrInvalidBlockType)

	_, err = w.StartBlocking(context.Background(), "123", BlockTypeMute, false)
	assert.ErrorIs(t, err, ErrNoFavorites)
	assert.False(t, kv.has(StateKey))
}

func TestMergeAddsOnlyUnseenUsers(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{
		"1": {"a", "b"},
		"2": {"b", "c", "d"},
	}}
	blocker := &fakeBlocker{gate: make(chan struct{}), started: make(chan string, 32)}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	assert.Equal(t, "a", waitStarted(t, blocker.started))

	res, err := w.StartBlocking(context.Background(), "2", BlockTypeMute, false)
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, 2, res.AddedUsers)

	stored := storedOperation(t, kv)
	require.NotNil(t, stored)
	assert.Equal(t, 4, stored.TotalUserCount)
	assert.Equal(t, []string{"1", "2"}, stored.EntryIDs)

	ok, err := w.AddEntryToCurrentOperation(context.Background(), "2", BlockTypeMute, false)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	close(blocker.gate)
	w.Wait()

	op := w.Snapshot()
	assert.Equal(t, StatusCompleted, op.Status)
	assert.Equal(t, []string{"a", "b", "c", "d"}, op.ProcessedUsers)
	assert.Equal(t, []string{"a", "b", "c", "d"}, blocker.Calls())
}

func TestMergeRejectsIncompatibleSettings(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{
		"1": {"a", "b"},
		"2": {"c"},
	}}
	blocker := &fakeBlocker{gate: make(chan struct{}), started: make(chan string, 32)}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	waitStarted(t, blocker.started)

	res, err := w.StartBlocking(context.Background(), "2", BlockTypeBlock, false)
	require.Error(t, err)
	assert.False(t, res.Success)

	var rejected *MergeRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, ErrIncompatibleSettings)
	assert.Equal(t, 1, fetcher.calls, "a rejected merge does not fetch")

	ok, err := w.AddEntryToCurrentOperation(context.Background(), "2", BlockTypeMute, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrIncompatibleSettings)

	close(blocker.gate)
	w.Wait()
	assert.Equal(t, []string{"a", "b"}, w.Snapshot().ProcessedUsers)
}

func TestAddEntryWithoutRunningOperation(t *testing.T) {
	w := newTestWorkflow(t, &fakeFetcher{}, &fakeBlocker{}, newMemoryKV(), testSettings())

	ok, err := w.AddEntryToCurrentOperation(context.Background(), "9", BlockTypeMute, false)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoActiveOperation)
}

func TestStopPausesAndResumeContinues(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a", "b", "c"}}}
	blocker := &fakeBlocker{gate: make(chan struct{}), started: make(chan string, 32)}
	notifier := &recordingNotifier{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings(), WithNotifier(notifier))

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	waitStarted(t, blocker.started)

	stopped := make(chan error, 1)
	go func() { stopped <- w.StopBlocking(context.Background()) }()

	// the in-flight request completes before the loop observes the stop
	time.Sleep(50 * time.Millisecond)
	blocker.gate <- struct{}{}
	require.NoError(t, <-stopped)

	stored := storedOperation(t, kv)
	require.NotNil(t, stored)
	assert.Equal(t, StatusPaused, stored.Status)
	assert.Equal(t, []string{"a"}, stored.ProcessedUsers)
	assert.Equal(t, []string{"b", "c"}, stored.PendingUsers)
	assert.Equal(t, StatusPaused, w.GetStatus().Status)

	require.NotEmpty(t, notifier.progress)
	assert.True(t, notifier.progress[len(notifier.progress)-1].IsAborted)

	close(blocker.gate)
	res, err := w.ResumeBlocking(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)

	w.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, blocker.Calls())
	assert.False(t, kv.has(StateKey))
}

func TestForceStopClearsStoredOperation(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a", "b", "c"}}}
	blocker := &fakeBlocker{gate: make(chan struct{}), started: make(chan string, 32)}
	notifier := &recordingNotifier{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings(), WithNotifier(notifier))

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	waitStarted(t, blocker.started)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(blocker.gate)
	}()
	require.NoError(t, w.ForceStopBlocking(context.Background()))

	assert.False(t, kv.has(StateKey))
	assert.Equal(t, 1, notifier.aborts)
	assert.Equal(t, StatusFailed, w.GetStatus().Status)
	assert.Equal(t, []string{"a"}, blocker.Calls())

	_, err = w.ResumeBlocking(context.Background())
	assert.ErrorIs(t, err, ErrNoStoredOperation)
}

func TestStopWithoutOperation(t *testing.T) {
	w := newTestWorkflow(t, &fakeFetcher{}, &fakeBlocker{}, newMemoryKV(), testSettings())
	assert.ErrorIs(t, w.StopBlocking(context.Background()), ErrNoActiveOperation)
	assert.Equal(t, StatusIdle, w.GetStatus().Status)
}

func TestCheckpointFailuresEscalateToStuck(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a", "b", "c", "d"}}}
	blocker := &fakeBlocker{gate: make(chan struct{}), started: make(chan string, 32)}
	notifier := &recordingNotifier{}
	settings := testSettings()
	settings.MaxStoreFailures = 2
	w := newTestWorkflow(t, fetcher, blocker, kv, settings, WithNotifier(notifier))

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	waitStarted(t, blocker.started)

	kv.failWrites.Store(true)
	close(blocker.gate)
	w.Wait()

	status := w.GetStatus()
	assert.Equal(t, StatusStuck, status.Status)
	assert.False(t, status.Running)
	assert.Equal(t, []string{"a", "b"}, blocker.Calls(), "the loop keeps going until the failure budget is spent")
	assert.NotEmpty(t, notifier.errors)

	stored := storedOperation(t, kv)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"a", "b", "c", "d"}, stored.PendingUsers, "last successful checkpoint is kept")
}

func TestStartBlockingStorageFailureIsReported(t *testing.T) {
	kv := newMemoryKV()
	kv.failWrites.Store(true)
	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a"}}}
	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)
	assert.False(t, w.IsRunning())
	assert.Empty(t, blocker.Calls())
}

func TestCheckAndResumeSkipsProcessedUsers(t *testing.T) {
	kv := newMemoryKV()
	now := time.Now()

	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a", "b", "c", "d"}, now.Add(-time.Minute))
	op.MarkProcessed("a", OutcomeBlocked)
	op.MarkProcessed("b", OutcomeBlocked)
	seedOperation(t, kv, op)

	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, &fakeFetcher{}, blocker, kv, testSettings(), WithClock(func() time.Time { return now }))

	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	w.Wait()

	assert.Equal(t, []string{"c", "d"}, blocker.Calls())
	snapshot := w.Snapshot()
	assert.Equal(t, StatusCompleted, snapshot.Status)
	assert.Equal(t, []string{"a", "b", "c", "d"}, snapshot.ProcessedUsers)
	assert.False(t, kv.has(StateKey))
}

func TestCheckAndResumeKeepsRetryCounts(t *testing.T) {
	kv := newMemoryKV()
	now := time.Now()

	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a"}, now)
	op.RetryCounts["a"] = 3
	seedOperation(t, kv, op)

	blocker := &fakeBlocker{alwaysErr: map[string]bool{"a": true}}
	w := newTestWorkflow(t, &fakeFetcher{}, blocker, kv, testSettings(), WithClock(func() time.Time { return now }))

	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	w.Wait()

	assert.Equal(t, []string{"a"}, blocker.Calls(), "retry budget carries over a restart")
	assert.Equal(t, []string{"a"}, w.Snapshot().FailedUsers)
}

func TestStaleOperationNeedsReset(t *testing.T) {
	kv := newMemoryKV()
	now := time.Now()

	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a", "b", "c"}, now.Add(-2*time.Hour))
	op.MarkProcessed("a", OutcomeBlocked)
	seedOperation(t, kv, op)

	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a", "b", "c", "x"}}}
	blocker := &fakeBlocker{}
	settings := testSettings()
	settings.RevalidateOnReset = true
	w := newTestWorkflow(t, fetcher, blocker, kv, settings, WithClock(func() time.Time { return now }))

	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	assert.Equal(t, StatusStuck, w.GetStatus().Status)
	assert.False(t, w.IsRunning())
	assert.Empty(t, blocker.Calls())

	stored := storedOperation(t, kv)
	assert.Equal(t, StatusRunning, stored.Status, "stale detection does not touch the store")

	_, err := w.ResumeBlocking(context.Background())
	assert.ErrorIs(t, err, ErrStuckOperation)

	res, err := w.ResetStuckState(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AddedUsers)

	w.Wait()
	assert.Equal(t, []string{"b", "c", "x"}, blocker.Calls())
	assert.Equal(t, 4, w.Snapshot().TotalUserCount)
}

func TestResetClearsFinishedOperation(t *testing.T) {
	kv := newMemoryKV()
	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a"}, time.Now())
	op.MarkProcessed("a", OutcomeBlocked)
	seedOperation(t, kv, op)

	w := newTestWorkflow(t, &fakeFetcher{}, &fakeBlocker{}, kv, testSettings())

	res, err := w.ResetStuckState(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, kv.has(StateKey))

	_, err = w.ResetStuckState(context.Background())
	assert.ErrorIs(t, err, ErrNoStoredOperation)
}

func TestDetectStuckWithoutLoop(t *testing.T) {
	kv := newMemoryKV()
	now := time.Now()
	w := newTestWorkflow(t, &fakeFetcher{}, &fakeBlocker{}, kv, testSettings(), WithClock(func() time.Time { return now }))

	assert.False(t, w.DetectStuck())

	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a"}, now)
	w.mu.Lock()
	w.op = op
	w.mu.Unlock()

	assert.True(t, w.DetectStuck())
	assert.Equal(t, StatusStuck, w.GetStatus().Status)
	assert.False(t, w.DetectStuck(), "already flagged")
}

func TestStartReplacesPausedOperation(t *testing.T) {
	kv := newMemoryKV()
	old := NewBlockOperation("1", BlockTypeMute, false, []string{"a", "b"}, time.Now())
	old.Status = StatusPaused
	seedOperation(t, kv, old)

	fetcher := &fakeFetcher{entries: map[string][]string{"2": {"z"}}}
	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, fetcher, blocker, kv, testSettings())

	res, err := w.StartBlocking(context.Background(), "2", BlockTypeBlock, false)
	require.NoError(t, err)
	assert.NotEqual(t, old.OperationID, res.OperationID)

	w.Wait()
	assert.Equal(t, []string{"z"}, blocker.Calls())
	assert.False(t, kv.has(StateKey))
}

func TestRequestDelayIsCountedFromRequestEnd(t *testing.T) {
	kv := newMemoryKV()
	fetcher := &fakeFetcher{entries: map[string][]string{"1": {"a", "b", "c"}}}
	blocker := &fakeBlocker{delay: 60 * time.Millisecond}
	settings := testSettings()
	settings.RequestDelay = 40 * time.Millisecond
	w := newTestWorkflow(t, fetcher, blocker, kv, settings)

	_, err := w.StartBlocking(context.Background(), "1", BlockTypeMute, false)
	require.NoError(t, err)
	w.Wait()

	spans := blocker.Spans()
	require.Len(t, spans, 3)
	for i := 1; i < len(spans); i++ {
		gap := spans[i].start.Sub(spans[i-1].end)
		assert.GreaterOrEqual(t, gap, 35*time.Millisecond, "gap before request %d", i)
	}
}

func TestStoreReadFailureIsReported(t *testing.T) {
	kv := newMemoryKV()
	seedOperation(t, kv, NewBlockOperation("1", BlockTypeMute, false, []string{"a"}, time.Now()))
	kv.failReads.Store(true)

	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, &fakeFetcher{}, blocker, kv, testSettings())

	err := w.CheckAndResumeBlocking(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)
	assert.ErrorIs(t, err, errReadFailed)

	_, err = w.ResetStuckState(context.Background())
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)

	assert.False(t, w.IsRunning())
	assert.Empty(t, blocker.Calls())
	assert.True(t, kv.has(StateKey), "a failed read leaves the record alone")
}

func TestCheckAndResumeRejectsCorruptRecord(t *testing.T) {
	kv := newMemoryKV()
	kv.data[StateKey] = []byte("{not json")

	w := newTestWorkflow(t, &fakeFetcher{}, &fakeBlocker{}, kv, testSettings())

	err := w.CheckAndResumeBlocking(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "decode", storageErr.Op)
	assert.False(t, w.IsRunning())
	assert.Equal(t, StatusIdle, w.GetStatus().Status)
}

func TestCheckAndResumeClearsFinishedRecord(t *testing.T) {
	kv := newMemoryKV()
	op := NewBlockOperation("1", BlockTypeMute, false, []string{"a"}, time.Now())
	op.MarkProcessed("a", OutcomeBlocked)
	op.Status = StatusPaused
	seedOperation(t, kv, op)

	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, &fakeFetcher{}, blocker, kv, testSettings())

	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	assert.False(t, kv.has(StateKey))
	assert.False(t, w.IsRunning())
	assert.Equal(t, StatusCompleted, w.GetStatus().Status)
	assert.Empty(t, blocker.Calls())

	require.NoError(t, w.CheckAndResumeBlocking(context.Background()))
	assert.Equal(t, StatusCompleted, w.GetStatus().Status)
}

func TestClosedWorkflowRefusesResumeAndReset(t *testing.T) {
	kv := newMemoryKV()
	seedOperation(t, kv, NewBlockOperation("1", BlockTypeMute, false, []string{"a", "b"}, time.Now()))

	blocker := &fakeBlocker{}
	w := newTestWorkflow(t, &fakeFetcher{}, blocker, kv, testSettings())
	w.Close()
	w.Close()

	_, err := w.ResumeBlocking(context.Background())
	assert.ErrorIs(t, err, ErrWorkflowClosed)

	_, err = w.ResetStuckState(context.Background())
	assert.ErrorIs(t, err, ErrWorkflowClosed)

	assert.False(t, w.IsRunning())
	assert.Empty(t, blocker.Calls())
	assert.True(t, kv.has(StateKey))
}
