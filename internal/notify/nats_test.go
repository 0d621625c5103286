package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, message{subject: subject, data: data})
	return nil
}

func TestNotifier_Subjects(t *testing.T) {
	assert.Equal(t, "texbuilder.build_finished", New(&fakePublisher{}, "").Subject("build_finished"))
	assert.Equal(t, "editor.tex.stopped", New(&fakePublisher{}, ".editor.tex.").Subject("stopped"))
}

func TestNotifier_PublishesStartAndResult(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, "tb")
	ctx := t.Context()

	q := query.New("/doc/main.tex", query.JobBuildLatex)
	require.NoError(t, n.EmitQueryStarted(ctx, q))
	require.NoError(t, n.EmitQueryEvent(ctx, buildsystem.Event{
		Kind:     buildsystem.EventBuildFinished,
		QueryID:  q.ID(),
		RootFile: q.RootFile(),
		Build:    &query.BuildResult{PDFFilename: "/doc/main.pdf", Passes: 1},
	}))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "tb.query_started", pub.msgs[0].subject)
	var started startedMessage
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &started))
	assert.Equal(t, q.ID(), started.QueryID)
	assert.Equal(t, []query.JobID{query.JobBuildLatex}, started.Jobs)

	assert.Equal(t, "tb.build_finished", pub.msgs[1].subject)
	var ev buildsystem.Event
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &ev))
	require.NotNil(t, ev.Build)
	assert.Equal(t, "/doc/main.pdf", ev.Build.PDFFilename)
}

func TestNotifier_Errors(t *testing.T) {
	pub := &fakePublisher{err: stderrors.New("connection closed")}
	n := New(pub, "")

	err := n.EmitQueryEvent(t.Context(), buildsystem.Event{Kind: buildsystem.EventStopped})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = New(&fakePublisher{}, "").EmitQueryEvent(ctx, buildsystem.Event{Kind: buildsystem.EventStopped})
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, n.Close())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}
