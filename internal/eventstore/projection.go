// Package eventstore keeps a history of query lifecycle events in SQLite and
// projects them into per-query summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusErrors    = "errors" // finished with LaTeX errors in the log
	StatusFailed    = "failed" // interpreter missing or not working
	StatusStopped   = "stopped"
)

// QuerySummary is the read model of one query's history.
type QuerySummary struct {
	QueryID     string                    `json:"query_id"`
	RootFile    string                    `json:"root_file"`
	Status      string                    `json:"status"`
	Jobs        []query.JobID             `json:"jobs,omitempty"`
	Interpreter query.Interpreter         `json:"interpreter,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	FinishedAt  *time.Time                `json:"finished_at,omitempty"`
	Duration    time.Duration             `json:"duration,omitempty"`
	Build       *query.BuildResult        `json:"build,omitempty"`
	Forward     *query.ForwardSyncResult  `json:"forward,omitempty"`
	Backward    *query.BackwardSyncResult `json:"backward,omitempty"`
}

// Summarize folds the events of one query into a summary. Events are applied
// in order; unreadable payloads are skipped.
func Summarize(events []Event) (*QuerySummary, bool) {
	if len(events) == 0 {
		return nil, false
	}
	s := &QuerySummary{
		QueryID:   events[0].QueryID,
		Status:    StatusRunning,
		StartedAt: events[0].Timestamp,
	}
	for _, e := range events {
		s.apply(e)
	}
	return s, true
}

func (s *QuerySummary) apply(e Event) {
	if s.RootFile == "" {
		s.RootFile = e.Metadata["root_file"]
	}

	if e.Type == EventQueryStarted {
		var p startedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return
		}
		s.StartedAt = e.Timestamp
		s.RootFile = p.RootFile
		s.Jobs = p.Jobs
		s.Interpreter = p.Interpreter
		return
	}

	var ev buildsystem.Event
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return
	}
	finished := e.Timestamp
	s.FinishedAt = &finished
	s.Duration = finished.Sub(s.StartedAt)

	switch buildsystem.EventKind(e.Type) {
	case buildsystem.EventBuildFinished:
		s.Build = ev.Build
		s.Status = buildStatus(ev.Build)
	case buildsystem.EventForwardSyncFinished:
		s.Forward = ev.Forward
		s.Status = syncStatus(s.Status, ev.Forward.Failed())
	case buildsystem.EventBackwardSyncFinished:
		s.Backward = ev.Backward
		s.Status = syncStatus(s.Status, ev.Backward.Failed())
	case buildsystem.EventStopped:
		s.Status = StatusStopped
	}
}

func syncStatus(current string, failed bool) string {
	switch {
	case failed:
		return StatusFailed
	case current == StatusRunning:
		return StatusSucceeded
	default:
		return current
	}
}

func buildStatus(r *query.BuildResult) string {
	switch {
	case r == nil:
		return StatusSucceeded
	case r.Failed():
		return StatusFailed
	case r.ErrorCount > 0:
		return StatusErrors
	default:
		return StatusSucceeded
	}
}

// LoadSummary reads the history of queryID from store and summarizes it.
// A query without events is a NotFound error.
func LoadSummary(ctx context.Context, store Store, queryID string) (*QuerySummary, error) {
	events, err := store.GetByQueryID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	s, ok := Summarize(events)
	if !ok {
		return nil, errors.NotFoundError("no history for query").
			WithContext("query_id", queryID).Build()
	}
	return s, nil
}
