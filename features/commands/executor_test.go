package commands

import (
	"context"
	"testing"

	"eksiblock/features/blocking"
	"eksiblock/features/favorites"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkflow struct {
	started  []string
	merged   []string
	mergeErr error
	stopped  int
	forced   int
	resumed  int
	reset    int
}

func (f *fakeWorkflow) StartBlocking(_ context.Context, entryID string, _ blocking.BlockType, _ bool) (blocking.Result, error) {
	f.started = append(f.started, entryID)
	return blocking.Result{Success: true, OperationID: "op-1", AddedUsers: 3}, nil
}

func (f *fakeWorkflow) AddEntryToCurrentOperation(_ context.Context, entryID string, _ blocking.BlockType, _ bool) (bool, error) {
	if f.mergeErr != nil {
		return false, f.mergeErr
	}
	f.merged = append(f.merged, entryID)
	return true, nil
}

func (f *fakeWorkflow) StopBlocking(context.Context) error { f.stopped++; return nil }

func (f *fakeWorkflow) ForceStopBlocking(context.Context) error { f.forced++; return nil }

func (f *fakeWorkflow) ResumeBlocking(context.Context) (blocking.Result, error) {
	f.resumed++
	return blocking.Result{}, blocking.ErrNoStoredOperation
}

func (f *fakeWorkflow) ResetStuckState(context.Context) (blocking.Result, error) {
	f.reset++
	return blocking.Result{Success: true}, nil
}

func (f *fakeWorkflow) GetStatus() blocking.StatusReport {
	return blocking.StatusReport{Status: blocking.StatusRunning, TotalCount: 3}
}

func TestExecuteStartNormalizesEntryID(t *testing.T) {
	wf := &fakeWorkflow{}
	ex := NewExecutor(wf)

	res, err := ex.Execute(context.Background(), StartBlocking{
		EntryID:   "https://eksisozluk.com/entry/123",
		BlockType: blocking.BlockTypeMute,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"123"}, wf.started)

	data, ok := res.Data.(blocking.Result)
	require.True(t, ok)
	assert.Equal(t, "op-1", data.OperationID)
}

func TestExecuteValidates(t *testing.T) {
	wf := &fakeWorkflow{}
	ex := NewExecutor(wf)

	_, err := ex.Execute(context.Background(), StartBlocking{EntryID: "123", BlockType: "BAN"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = ex.Execute(context.Background(), MergeEntry{BlockType: blocking.BlockTypeBlock})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = ex.Execute(context.Background(), StartBlocking{EntryID: "abc", BlockType: blocking.BlockTypeBlock})
	assert.ErrorIs(t, err, favorites.ErrInvalidEntryID)

	_, err = ex.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	assert.Empty(t, wf.started)
	assert.Empty(t, wf.merged)
}

func TestExecuteMergeRejection(t *testing.T) {
	wf := &fakeWorkflow{mergeErr: &blocking.MergeRejectedError{EntryID: "5", Reason: blocking.ErrIncompatibleSettings}}
	ex := NewExecutor(wf)

	res, err := ex.Execute(context.Background(), MergeEntry{EntryID: "5", BlockType: blocking.BlockTypeMute})
	assert.ErrorIs(t, err, blocking.ErrIncompatibleSettings)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestExecuteLifecycleCommands(t *testing.T) {
	wf := &fakeWorkflow{}
	ex := NewExecutor(wf)
	ctx := context.Background()

	res, err := ex.Execute(ctx, StopBlocking{})
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = ex.Execute(ctx, ForceStopBlocking{})
	require.NoError(t, err)

	res, err = ex.Execute(ctx, ResumeBlocking{})
	assert.ErrorIs(t, err, blocking.ErrNoStoredOperation)
	assert.False(t, res.Success)

	_, err = ex.Execute(ctx, ResetStuckState{})
	require.NoError(t, err)

	res, err = ex.Execute(ctx, GetStatus{})
	require.NoError(t, err)
	assert.Equal(t, blocking.StatusRunning, res.Data.(blocking.StatusReport).Status)

	assert.Equal(t, 1, wf.stopped)
	assert.Equal(t, 1, wf.forced)
	assert.Equal(t, 1, wf.resumed)
	assert.Equal(t, 1, wf.reset)
}
