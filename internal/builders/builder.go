// Package builders runs the external tools behind each job id. A builder is
// long lived, owned by one BuildSystem, and only holds the live process of
// the job it is running so that the process can be killed.
package builders

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/texbuilder/internal/pdfinfo"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// Builder executes one kind of job for a query. Run never returns an error:
// outcomes are written into the query, and fatal environment errors end up
// in its build result.
type Builder interface {
	Name() query.JobID
	Run(ctx context.Context, q *query.Query)
	// StopRunning kills the live process, if any.
	StopRunning()
}

// Deps are the collaborators shared by all builders.
type Deps struct {
	Runner toolchain.Runner
	// ConfigRoot holds the per-document synctex databases.
	ConfigRoot string
	Pages      pdfinfo.PageCounter
}

// All returns one builder per job id.
func All(deps Deps) []Builder {
	if deps.Pages == nil {
		deps.Pages = pdfinfo.NoopCounter{}
	}
	return []Builder{
		NewLatex(deps),
		NewBibtex(deps),
		NewBiber(deps),
		NewMakeindex(deps),
		NewGlossaries(deps),
		NewForwardSync(deps),
		NewBackwardSync(deps),
	}
}

// process guards the handle of the tool a builder is running.
type process struct {
	mu   sync.Mutex
	live toolchain.Process
}

func (p *process) run(ctx context.Context, r toolchain.Runner, cmd toolchain.Command) (*toolchain.Result, error) {
	proc, err := r.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.live = proc
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.live = nil
		p.mu.Unlock()
	}()
	return proc.Wait()
}

func (p *process) StopRunning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live != nil {
		p.live.Kill()
	}
}

// abort ends the query's build with a terminal environment error.
func abort(q *query.Query, kind query.ErrorKind, tool string) {
	q.ClearJobs()
	diags := q.Diagnostics()
	q.SetBuildResult(&query.BuildResult{
		Diagnostics: diags,
		ErrorCount:  q.ErrorCount(),
		Error:       kind,
		ErrorArg:    tool,
		Passes:      q.Passes(),
	})
}

// failure maps a start or wait error to the terminal error kind.
func failure(err error) query.ErrorKind {
	if toolchain.IsToolNotFound(err) {
		return query.ErrorInterpreterMissing
	}
	return query.ErrorInterpreterNotWorking
}
