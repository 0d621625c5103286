package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/eventstore"
)

func TestRetention_Prune(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "q-1", eventstore.EventQueryStarted, nil, nil))

	r, err := NewRetention(store, time.Hour, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop() })

	n, err := r.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh events are kept")

	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = r.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRetention_RunsOnStart(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Append(t.Context(), "q-1", eventstore.EventQueryStarted, nil, nil))

	r, err := NewRetention(store, time.Millisecond, time.Hour)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	r.Start()
	t.Cleanup(func() { _ = r.Stop() })

	require.Eventually(t, func() bool {
		events, err := store.GetByQueryID(t.Context(), "q-1")
		return err == nil && len(events) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
