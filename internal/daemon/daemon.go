// Package daemon runs texbuilder in watch mode: it rebuilds the root document
// when sources change, serves the control API and keeps the query history.
package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/texbuilder/internal/api"
	"git.home.luguber.info/inful/texbuilder/internal/builders"
	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/eventstore"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/notify"
	"git.home.luguber.info/inful/texbuilder/internal/pdfinfo"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/retry"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

const shutdownTimeout = 5 * time.Second

// Options configure a Daemon.
type Options struct {
	Config   *config.Config
	RootFile string
	Runner   toolchain.Runner    // nil runs the configured binaries
	Pages    pdfinfo.PageCounter // nil reads page counts with pdfcpu
	Registry *prometheus.Registry
	// NATSRetry bounds the initial broker connection attempts.
	NATSRetry *retry.Policy
}

// Daemon owns the long-lived components of watch mode.
type Daemon struct {
	cfg      *config.Config
	rootFile string
	params   query.BuildParams

	bs        *buildsystem.BuildSystem
	server    *api.Server
	store     eventstore.Store
	notifier  *notify.Notifier
	watcher   *Watcher
	debouncer *Debouncer
	retention *Retention
}

// New wires the daemon. Nothing runs until Run.
func New(ctx context.Context, opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	params, err := cfg.BuildParams()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(opts.RootFile)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve root file").Build()
	}
	if _, err := os.Stat(root); err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotFound, "root file not found").
			WithContext("root_file", root).Build()
	}

	d := &Daemon{cfg: cfg, rootFile: root, params: params}
	ok := false
	defer func() {
		if !ok {
			d.closeResources()
		}
	}()

	if opts.Runner == nil {
		opts.Runner = toolchain.NewExecRunner(cfg.Tools)
	}
	if opts.Pages == nil {
		opts.Pages = pdfinfo.NewReader()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	var emitters []buildsystem.EventEmitter
	var hub *api.EventHub
	if cfg.Daemon.HTTPAddr != "" {
		hub = api.NewEventHub()
		emitters = append(emitters, hub)
	}
	if cfg.Daemon.HistoryDB != "" {
		if err := d.openHistory(cfg.Daemon.HistoryDB); err != nil {
			return nil, err
		}
		emitters = append(emitters, eventstore.NewRecorder(d.store))
	}
	if cfg.Daemon.NATSURL != "" {
		policy := retry.DefaultPolicy()
		if opts.NATSRetry != nil {
			policy = *opts.NATSRetry
		}
		if err := d.connectNATS(ctx, policy); err != nil {
			return nil, err
		}
		emitters = append(emitters, d.notifier)
	}

	d.bs = buildsystem.New(buildsystem.Options{
		Builders: builders.All(builders.Deps{
			Runner:     opts.Runner,
			ConfigRoot: cfg.Synctex.ConfigRoot,
			Pages:      opts.Pages,
		}),
		Recorder:     metrics.NewPrometheusRecorder(opts.Registry),
		Emitters:     emitters,
		PollInterval: cfg.PollInterval(),
	})

	if cfg.Daemon.HTTPAddr != "" {
		d.server = api.NewServer(api.Options{
			Addr:    cfg.Daemon.HTTPAddr,
			Builds:  d.bs,
			Params:  params,
			History: d.store,
			Metrics: metrics.HTTPHandler(opts.Registry),
			Hub:     hub,
		})
	}

	if cfg.Daemon.Watch {
		d.debouncer = NewDebouncer(cfg.Debounce(), 0, d.TriggerBuild)
		d.watcher, err = NewWatcher(filepath.Dir(root), func(path string) { d.debouncer.Trigger(path) })
		if err != nil {
			return nil, err
		}
	}

	ok = true
	return d, nil
}

func (d *Daemon) openHistory(path string) error {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create history directory").
				WithContext("path", path).Build()
		}
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	d.store = store

	d.retention, err = NewRetention(store, d.cfg.HistoryRetention(), d.cfg.PruneInterval())
	return err
}

func (d *Daemon) connectNATS(ctx context.Context, policy retry.Policy) error {
	url := d.cfg.Daemon.NATSURL
	return policy.Do(ctx, func(attempt int) error {
		n, err := notify.Connect(url, d.cfg.Daemon.NATSSubjectPrefix)
		if err != nil {
			slog.Warn("NATS connection failed", slog.String("url", url), slog.Int("attempt", attempt+1), logfields.Error(err))
			return err
		}
		d.notifier = n
		return nil
	})
}

// BuildSystem exposes the build system, mainly for tests.
func (d *Daemon) BuildSystem() *buildsystem.BuildSystem { return d.bs }

// TriggerBuild schedules a full build of the root document, superseding any
// query in flight.
func (d *Daemon) TriggerBuild(reason string) {
	q := query.New(d.rootFile, query.JobBuildLatex)
	q.Build = d.params
	slog.Info("Build triggered", logfields.QueryID(q.ID()), logfields.Reason(reason))
	d.bs.AddQuery(q)
}

// Run builds the root document once and then serves until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if d.server != nil {
		go func() {
			slog.Info("Control API listening", slog.String("addr", d.server.Addr))
			if err := d.server.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				serveErr <- errors.WrapError(err, errors.CategoryNetwork, "control API failed").Build()
			}
		}()
	}
	if d.retention != nil {
		d.retention.Start()
	}
	if d.watcher != nil {
		go d.watcher.Run(ctx)
	}
	go d.bs.Run(ctx)

	d.TriggerBuild("startup")

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-serveErr:
			runErr = err
			break loop
		case ev := <-d.bs.Events():
			logEvent(ev)
		}
	}

	d.shutdown()
	return runErr
}

func (d *Daemon) shutdown() {
	slog.Info("Shutting down")
	if d.debouncer != nil {
		d.debouncer.Stop()
	}
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.server.Shutdown(ctx); err != nil {
			slog.Warn("Control API shutdown error", logfields.Error(err))
		}
		cancel()
	}
	d.bs.Shutdown()
	d.closeResources()
}

func (d *Daemon) closeResources() {
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	if d.retention != nil {
		if err := d.retention.Stop(); err != nil {
			slog.Warn("Scheduler shutdown error", logfields.Error(err))
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			slog.Warn("NATS close error", logfields.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("History close error", logfields.Error(err))
		}
	}
}

func logEvent(ev buildsystem.Event) {
	attrs := []any{logfields.QueryID(ev.QueryID), slog.String("kind", string(ev.Kind))}
	switch {
	case ev.Build != nil && ev.Build.Failed():
		slog.Error("Build failed", append(attrs, slog.String("error", string(ev.Build.Error)), slog.String("detail", ev.Build.ErrorArg))...)
	case ev.Build != nil:
		slog.Info("Build finished", append(attrs,
			logfields.File(ev.Build.PDFFilename),
			slog.Int("errors", ev.Build.ErrorCount),
			slog.Int("passes", ev.Build.Passes))...)
	default:
		slog.Info("Query event", attrs...)
	}
}
