package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/texbuilder/internal/eventstore"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

const pruneTimeout = 30 * time.Second

// Retention periodically deletes history older than maxAge.
type Retention struct {
	scheduler gocron.Scheduler
	store     eventstore.Store
	maxAge    time.Duration
	now       func() time.Time
}

// NewRetention schedules a prune of store every interval, starting on Start.
func NewRetention(store eventstore.Store, maxAge, interval time.Duration) (*Retention, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to create scheduler").Build()
	}
	r := &Retention{scheduler: s, store: store, maxAge: maxAge, now: time.Now}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.run),
		gocron.WithName("history-retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to schedule history retention").Build()
	}
	return r, nil
}

// Start begins the scheduler.
func (r *Retention) Start() {
	slog.Info("Starting history retention", logfields.Duration(r.maxAge))
	r.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running prune.
func (r *Retention) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	if _, err := r.Prune(ctx); err != nil {
		slog.Error("History prune failed", logfields.Error(err))
	}
}

// Prune deletes events older than the retention window now.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Pruned query history", slog.Int64("events", n), slog.Time("cutoff", cutoff))
	}
	return n, nil
}
