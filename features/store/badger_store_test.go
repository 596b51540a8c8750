package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data, found, err := s.GetItem(ctx, "eksiBlockerState")
	assert.NoError(t, err)
	assert.False(t, found, "missing key should not be found")
	assert.Nil(t, data)

	require.NoError(t, s.SetItem(ctx, "eksiBlockerState", []byte(`{"entryId":"1"}`)))

	data, found, err = s.GetItem(ctx, "eksiBlockerState")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"entryId":"1"}`, string(data))

	require.NoError(t, s.RemoveItem(ctx, "eksiBlockerState"))
	_, found, err = s.GetItem(ctx, "eksiBlockerState")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.RemoveItem(ctx, "eksiBlockerState"), "removing twice is fine")
}

func TestEmptyKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.GetItem(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, s.SetItem(ctx, "", nil), ErrEmptyKey)
	assert.ErrorIs(t, s.RemoveItem(ctx, ""), ErrEmptyKey)
}

func TestIteratePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetItem(ctx, "known:MUTE:alice", []byte("1")))
	require.NoError(t, s.SetItem(ctx, "known:MUTE:bob", []byte("1")))
	require.NoError(t, s.SetItem(ctx, "known:BLOCK:carol", []byte("1")))
	require.NoError(t, s.SetItem(ctx, "eksiBlockerState", []byte("{}")))

	var keys []string
	err := s.Iterate(ctx, "known:MUTE:", func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"known:MUTE:alice", "known:MUTE:bob"}, keys)

	count, err := s.Count(ctx, "known:")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.GetItem(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreNotInitialized)
	assert.ErrorIs(t, s.SetItem(ctx, "k", nil), ErrStoreNotInitialized)
	assert.NoError(t, s.Close())
}
