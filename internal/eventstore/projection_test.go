package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

func TestRecorder_BuildHistory(t *testing.T) {
	store := newMemoryStore(t)
	rec := NewRecorder(store)
	ctx := t.Context()

	q := query.New("/doc/main.tex", query.JobBuildLatex, query.JobForwardSync)
	q.Build.Interpreter = query.InterpreterXelatex
	require.NoError(t, rec.EmitQueryStarted(ctx, q))
	require.NoError(t, rec.EmitQueryEvent(ctx, buildsystem.Event{
		Kind:      buildsystem.EventBuildFinished,
		QueryID:   q.ID(),
		RootFile:  q.RootFile(),
		Timestamp: time.Now(),
		Build:     &query.BuildResult{PDFFilename: "/doc/main.pdf", ErrorCount: 1, Passes: 2},
	}))
	require.NoError(t, rec.EmitQueryEvent(ctx, buildsystem.Event{
		Kind:     buildsystem.EventForwardSyncFinished,
		QueryID:  q.ID(),
		RootFile: q.RootFile(),
		Forward:  &query.ForwardSyncResult{Rectangles: []query.Rect{{Page: 2}}},
	}))

	s, err := LoadSummary(ctx, store, q.ID())
	require.NoError(t, err)
	assert.Equal(t, q.ID(), s.QueryID)
	assert.Equal(t, "/doc/main.tex", s.RootFile)
	assert.Equal(t, []query.JobID{query.JobBuildLatex, query.JobForwardSync}, s.Jobs)
	assert.Equal(t, query.InterpreterXelatex, s.Interpreter)
	assert.Equal(t, StatusErrors, s.Status)
	require.NotNil(t, s.Build)
	assert.Equal(t, 2, s.Build.Passes)
	require.NotNil(t, s.Forward)
	assert.Equal(t, 2, s.Forward.Rectangles[0].Page)
	require.NotNil(t, s.FinishedAt)
}

func TestLoadSummary_UnknownQuery(t *testing.T) {
	_, err := LoadSummary(t.Context(), newMemoryStore(t), "nope")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSummarize_Status(t *testing.T) {
	started := Event{QueryID: "q", Type: EventQueryStarted, Payload: []byte(`{"root_file":"/doc/a.tex"}`), Timestamp: time.Unix(100, 0)}
	finished := func(kind buildsystem.EventKind, payload string) Event {
		return Event{QueryID: "q", Type: string(kind), Payload: []byte(payload), Timestamp: time.Unix(103, 0)}
	}

	tests := []struct {
		name   string
		events []Event
		want   string
	}{
		{"running", []Event{started}, StatusRunning},
		{"succeeded", []Event{started, finished(buildsystem.EventBuildFinished, `{"build":{"passes":1}}`)}, StatusSucceeded},
		{"failed", []Event{started, finished(buildsystem.EventBuildFinished, `{"build":{"error":"interpreter_missing"}}`)}, StatusFailed},
		{"stopped", []Event{started, finished(buildsystem.EventStopped, `{"kind":"stopped"}`)}, StatusStopped},
		{"sync only", []Event{started, finished(buildsystem.EventBackwardSyncFinished, `{"backward":{"filename":"/doc/a.tex","line":3}}`)}, StatusSucceeded},
		{"sync tool missing", []Event{started, finished(buildsystem.EventForwardSyncFinished, `{"forward":{"rectangles":null,"error":"interpreter_missing","error_arg":"synctex"}}`)}, StatusFailed},
		{"bad payload skipped", []Event{started, finished(buildsystem.EventBuildFinished, `{`)}, StatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Summarize(tt.events)
			require.True(t, ok)
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, "/doc/a.tex", s.RootFile)
		})
	}

	s, _ := Summarize([]Event{started, finished(buildsystem.EventBuildFinished, `{}`)})
	assert.Equal(t, 3*time.Second, s.Duration)

	_, ok := Summarize(nil)
	assert.False(t, ok)
}
