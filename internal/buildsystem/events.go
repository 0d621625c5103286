package buildsystem

import (
	"context"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// EventKind identifies what an Event reports.
type EventKind string

const (
	EventBuildFinished        EventKind = "build_finished"
	EventForwardSyncFinished  EventKind = "forward_sync_finished"
	EventBackwardSyncFinished EventKind = "backward_sync_finished"
	EventStopped              EventKind = "stopped"
)

// Event carries one result of a finished query to the editor and viewer.
// Exactly one of the result pointers is set, except for EventStopped.
type Event struct {
	Kind      EventKind                 `json:"kind"`
	QueryID   string                    `json:"query_id"`
	RootFile  string                    `json:"root_file"`
	Timestamp time.Time                 `json:"timestamp"`
	Build     *query.BuildResult        `json:"build,omitempty"`
	Forward   *query.ForwardSyncResult  `json:"forward,omitempty"`
	Backward  *query.BackwardSyncResult `json:"backward,omitempty"`
}

// EventEmitter receives query lifecycle events. Implementations must not
// block for long; they run on the caller's goroutine.
type EventEmitter interface {
	EmitQueryStarted(ctx context.Context, q *query.Query) error
	EmitQueryEvent(ctx context.Context, ev Event) error
}

// eventsFor returns one event per filled result slot of a done query, in
// build, forward, backward order.
func eventsFor(q *query.Query, now time.Time) []Event {
	base := Event{QueryID: q.ID(), RootFile: q.RootFile(), Timestamp: now}
	var events []Event
	if r, ok := q.BuildResult(); ok {
		ev := base
		ev.Kind, ev.Build = EventBuildFinished, r
		events = append(events, ev)
	}
	if r, ok := q.ForwardSyncResult(); ok {
		ev := base
		ev.Kind, ev.Forward = EventForwardSyncFinished, r
		events = append(events, ev)
	}
	if r, ok := q.BackwardSyncResult(); ok {
		ev := base
		ev.Kind, ev.Backward = EventBackwardSyncFinished, r
		events = append(events, ev)
	}
	return events
}
