package eventstore

import (
	"context"
	"encoding/json"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// startedPayload is the payload of EventQueryStarted.
type startedPayload struct {
	RootFile    string            `json:"root_file"`
	Jobs        []query.JobID     `json:"jobs"`
	Interpreter query.Interpreter `json:"interpreter"`
	UseLatexmk  bool              `json:"use_latexmk,omitempty"`
}

// Recorder appends query lifecycle events to a Store. It implements
// buildsystem.EventEmitter.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// EmitQueryStarted records that q was handed to the build system.
func (r *Recorder) EmitQueryStarted(ctx context.Context, q *query.Query) error {
	payload, err := json.Marshal(startedPayload{
		RootFile:    q.RootFile(),
		Jobs:        q.PendingJobs(),
		Interpreter: q.Build.Interpreter,
		UseLatexmk:  q.Build.UseLatexmk,
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "marshal query started payload").Build()
	}
	return r.store.Append(ctx, q.ID(), EventQueryStarted, payload, map[string]string{"root_file": q.RootFile()})
}

// EmitQueryEvent records one finished result, or a stop.
func (r *Recorder) EmitQueryEvent(ctx context.Context, ev buildsystem.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "marshal query event").
			WithContext("kind", string(ev.Kind)).Build()
	}
	return r.store.Append(ctx, ev.QueryID, string(ev.Kind), payload, map[string]string{"root_file": ev.RootFile})
}
