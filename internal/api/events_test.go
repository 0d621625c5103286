package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

func TestEventHub_SubscribePublish(t *testing.T) {
	hub := NewEventHub()
	ch, unsubscribe := hub.Subscribe()
	assert.Equal(t, 1, hub.SubscriberCount())

	q := query.New("/doc/a.tex", query.JobBuildLatex)
	require.NoError(t, hub.EmitQueryStarted(t.Context(), q))
	require.NoError(t, hub.EmitQueryEvent(t.Context(), buildsystem.Event{
		Kind:    buildsystem.EventBuildFinished,
		QueryID: q.ID(),
		Build:   &query.BuildResult{Passes: 1},
	}))

	started := <-ch
	assert.Equal(t, "query_started", started.Type)
	assert.Equal(t, q.ID(), started.QueryID)
	finished := <-ch
	assert.Equal(t, string(buildsystem.EventBuildFinished), finished.Type)
	require.NotNil(t, finished.Event)
	assert.Equal(t, 1, finished.Event.Build.Passes)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestEventHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewEventHub()
	_, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for range subscriberBuffer * 2 {
			hub.Publish(StreamEvent{Type: "stopped"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestEventHub_Close(t *testing.T) {
	hub := NewEventHub()
	ch, unsubscribe := hub.Subscribe()
	hub.Close()
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()

	late, _ := hub.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestEventStream(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan StreamEvent)
	go func() {
		defer close(frames)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var ev StreamEvent
			if json.Unmarshal([]byte(data), &ev) == nil {
				frames <- ev
			}
		}
	}()

	first := <-frames
	assert.Equal(t, "connected", first.Type)

	require.Eventually(t, func() bool { return srv.Hub().SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Hub().EmitQueryEvent(ctx, buildsystem.Event{Kind: buildsystem.EventStopped, QueryID: "q-9"}))

	next := <-frames
	assert.Equal(t, string(buildsystem.EventStopped), next.Type)
	assert.Equal(t, "q-9", next.QueryID)
}
