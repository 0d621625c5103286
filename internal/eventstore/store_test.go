package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndGetByQueryID(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "q-1", "build_finished", []byte(`{"kind":"build_finished"}`), map[string]string{"root_file": "/doc/main.tex"}))
	require.NoError(t, store.Append(ctx, "q-2", "build_finished", nil, nil))
	require.NoError(t, store.Append(ctx, "q-1", "stopped", []byte(`{}`), nil))

	events, err := store.GetByQueryID(ctx, "q-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "build_finished", events[0].Type)
	assert.Equal(t, "/doc/main.tex", events[0].Metadata["root_file"])
	assert.JSONEq(t, `{"kind":"build_finished"}`, string(events[0].Payload))
	assert.Equal(t, "stopped", events[1].Type)
	assert.Nil(t, events[1].Metadata)
	assert.Less(t, events[0].ID, events[1].ID)

	events, err = store.GetByQueryID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSQLiteStore_GetRange(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	now := time.Now()

	require.NoError(t, store.appendAt(ctx, now.Add(-2*time.Hour), "q-old", "query_started", nil, nil))
	for range 3 {
		require.NoError(t, store.Append(ctx, "q-new", "query_started", nil, nil))
	}

	events, err := store.GetRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	now := time.Now()

	require.NoError(t, store.appendAt(ctx, now.Add(-48*time.Hour), "q-old", "query_started", nil, nil))
	require.NoError(t, store.appendAt(ctx, now.Add(-47*time.Hour), "q-old", "build_finished", nil, nil))
	require.NoError(t, store.Append(ctx, "q-new", "query_started", nil, nil))

	n, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	old, err := store.GetByQueryID(ctx, "q-old")
	require.NoError(t, err)
	assert.Empty(t, old)
	fresh, err := store.GetByQueryID(ctx, "q-new")
	require.NoError(t, err)
	assert.Len(t, fresh, 1)

	n, err = store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_ClosedStoreReportsHistoryError(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(t.Context(), "q-1", "query_started", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryHistory))
}
