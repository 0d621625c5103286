// Package buildsystem dispatches queries to builders. It keeps at most one
// query in flight, runs its jobs on a background worker and hands results to
// callers through polling and typed events.
package buildsystem

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/builders"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/observability"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	MaxPollInterval     = 100 * time.Millisecond
	eventBuffer         = 32
)

// Options configure a BuildSystem.
type Options struct {
	Builders     []builders.Builder
	Recorder     metrics.Recorder
	Emitters     []EventEmitter
	PollInterval time.Duration
}

// BuildSystem owns the builders and the active query.
type BuildSystem struct {
	builders     map[query.JobID]builders.Builder
	order        []builders.Builder
	recorder     metrics.Recorder
	emitters     []EventEmitter
	pollInterval time.Duration
	events       chan Event

	mu         sync.Mutex
	active     *query.Query
	cancel     context.CancelFunc
	workerDone chan struct{}
	latest     []Event
}

// New creates a BuildSystem. Builders are required.
func New(opts Options) *BuildSystem {
	if len(opts.Builders) == 0 {
		panic("buildsystem.New: builders are required")
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	opts.PollInterval = min(opts.PollInterval, MaxPollInterval)

	b := &BuildSystem{
		builders:     make(map[query.JobID]builders.Builder, len(opts.Builders)),
		order:        slices.Clone(opts.Builders),
		recorder:     opts.Recorder,
		emitters:     slices.Clone(opts.Emitters),
		pollInterval: opts.PollInterval,
		events:       make(chan Event, eventBuffer),
	}
	for _, bld := range opts.Builders {
		b.builders[bld.Name()] = bld
	}
	return b
}

// AddQuery stops the query in flight, if any, waits for its worker to exit
// and starts a worker for q.
func (b *BuildSystem) AddQuery(q *query.Query) {
	b.mu.Lock()
	b.stopLocked()
	if b.workerDone != nil {
		<-b.workerDone
	}

	ctx := observability.WithQueryID(context.Background(), q.ID())
	ctx = observability.WithRootFile(ctx, q.RootFile())
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.active = q
	b.cancel = cancel
	b.workerDone = done
	b.mu.Unlock()

	observability.InfoContext(ctx, "Query started", slog.Any("jobs", q.PendingJobs()))
	for _, em := range b.emitters {
		if err := em.EmitQueryStarted(ctx, q); err != nil {
			observability.WarnContext(ctx, "Failed to emit query start", logfields.Error(err))
		}
	}
	go b.executeQuery(ctx, q, done)
}

// StopBuilding cancels the active query. A cancelled query never becomes
// done. With notify set an EventStopped is emitted.
func (b *BuildSystem) StopBuilding(notify bool) {
	b.mu.Lock()
	q := b.active
	stopped := b.stopLocked()
	b.mu.Unlock()

	if !stopped || !notify {
		return
	}
	ev := Event{Kind: EventStopped, QueryID: q.ID(), RootFile: q.RootFile(), Timestamp: time.Now()}
	b.publish(context.Background(), []Event{ev})
	select {
	case b.events <- ev:
	default:
		slog.Warn("Event buffer full, dropping stop notification", logfields.QueryID(q.ID()))
	}
}

// stopLocked cancels the active query and kills every builder's process.
// Callers hold b.mu.
func (b *BuildSystem) stopLocked() bool {
	q := b.active
	if q == nil {
		return false
	}
	q.ClearJobs()
	b.cancel()
	for _, bld := range b.order {
		bld.StopRunning()
	}
	b.active = nil
	if !q.IsDone() {
		b.recorder.IncQueryOutcome(metrics.OutcomeCanceled)
		slog.Info("Query cancelled", logfields.QueryID(q.ID()))
	}
	return true
}

// executeQuery runs q's jobs one at a time until the queue is empty or ctx
// is cancelled.
func (b *BuildSystem) executeQuery(ctx context.Context, q *query.Query, done chan struct{}) {
	defer close(done)
	start := time.Now()
	b.recorder.SetBuilding(true)
	defer b.recorder.SetBuilding(false)

	for ctx.Err() == nil {
		id, ok := q.PopJob()
		if !ok {
			break
		}
		bld, found := b.builders[id]
		if !found {
			observability.WarnContext(ctx, "Skipping unknown job", logfields.Job(string(id)))
			continue
		}

		jobCtx := observability.WithJob(ctx, string(id))
		jobStart := time.Now()
		bld.Run(jobCtx, q)
		elapsed := time.Since(jobStart)
		b.recorder.ObserveJobDuration(string(id), elapsed)
		b.recorder.IncJobResult(string(id), jobResult(ctx, q))
		observability.DebugContext(jobCtx, "Job finished", logfields.Duration(elapsed))
	}
	if ctx.Err() != nil {
		return
	}

	q.MarkDone()
	b.recorder.ObserveQueryDuration(time.Since(start))
	b.recorder.IncQueryOutcome(outcome(q))
	if r, ok := q.BuildResult(); ok {
		b.recorder.ObservePasses(r.Passes)
	}
	observability.InfoContext(ctx, "Query done", logfields.Duration(time.Since(start)))
}

func jobResult(ctx context.Context, q *query.Query) metrics.ResultLabel {
	if ctx.Err() != nil {
		return metrics.ResultCanceled
	}
	if r, ok := q.BuildResult(); ok && r.Failed() {
		return metrics.ResultFatal
	}
	return metrics.ResultSuccess
}

func outcome(q *query.Query) metrics.QueryOutcome {
	r, ok := q.BuildResult()
	switch {
	case !ok:
		return metrics.OutcomeSuccess
	case r.Failed():
		return metrics.OutcomeFailed
	case r.ErrorCount > 0:
		return metrics.OutcomeErrors
	default:
		return metrics.OutcomeSuccess
	}
}

// Poll checks the active query. Once it is done, Poll returns one event per
// filled result slot and forgets the query; otherwise it returns nil.
func (b *BuildSystem) Poll() []Event {
	b.mu.Lock()
	q := b.active
	if q == nil || !q.IsDone() {
		b.mu.Unlock()
		return nil
	}
	b.active = nil
	b.cancel()
	b.mu.Unlock()

	events := eventsFor(q, time.Now())
	b.publish(context.Background(), events)
	return events
}

func (b *BuildSystem) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	b.latest = events
	b.mu.Unlock()

	for _, ev := range events {
		for _, em := range b.emitters {
			if err := em.EmitQueryEvent(ctx, ev); err != nil {
				slog.Warn("Failed to emit query event",
					logfields.QueryID(ev.QueryID),
					slog.String("kind", string(ev.Kind)),
					logfields.Error(err))
			}
		}
	}
}

// Run polls on a ticker until ctx is done, delivering events on Events.
func (b *BuildSystem) Run(ctx context.Context) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range b.Poll() {
				select {
				case b.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Events delivers the events found by Run.
func (b *BuildSystem) Events() <-chan Event { return b.events }

// Active returns the query in flight, or nil.
func (b *BuildSystem) Active() *query.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// IsBuilding reports whether a query is in flight and not yet done.
func (b *BuildSystem) IsBuilding() bool {
	q := b.Active()
	return q != nil && !q.IsDone()
}

// Latest returns the events of the most recently published query.
func (b *BuildSystem) Latest() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.latest)
}

// Shutdown cancels the active query and waits for its worker to exit.
func (b *BuildSystem) Shutdown() {
	b.mu.Lock()
	b.stopLocked()
	done := b.workerDone
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}
