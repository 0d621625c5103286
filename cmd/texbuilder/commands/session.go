package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/texbuilder/internal/builders"
	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/pdfinfo"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// session runs single queries to completion for the one-shot commands.
type session struct {
	bs *buildsystem.BuildSystem
}

func newSession(cfg *config.Config, runner toolchain.Runner, pages pdfinfo.PageCounter) *session {
	if runner == nil {
		runner = toolchain.NewExecRunner(cfg.Tools)
	}
	if pages == nil {
		pages = pdfinfo.NewReader()
	}
	return &session{bs: buildsystem.New(buildsystem.Options{
		Builders: builders.All(builders.Deps{
			Runner:     runner,
			ConfigRoot: cfg.Synctex.ConfigRoot,
			Pages:      pages,
		}),
		PollInterval: cfg.PollInterval(),
	})}
}

// run executes q and blocks until it is done. Cancelling ctx stops the
// query; a stopped query yields a runtime error.
func (s *session) run(ctx context.Context, q *query.Query) error {
	slog.Debug("Running query", logfields.QueryID(q.ID()), slog.Any("jobs", q.PendingJobs()))
	s.bs.AddQuery(q)
	defer s.bs.Shutdown()

	select {
	case <-q.Done():
		s.bs.Poll()
		return nil
	case <-ctx.Done():
		s.bs.StopBuilding(false)
		return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "query interrupted").
			WithContext("query_id", q.ID()).Build()
	}
}

// buildError turns a finished build into the command's error, if any.
func buildError(r *query.BuildResult) error {
	switch {
	case r == nil:
		return errors.InternalError("build produced no result").Build()
	case r.Failed():
		return toolFailure(r.Error, r.ErrorArg)
	case r.ErrorCount > 0:
		return errors.ValidationError("document has compile errors").
			WithContext("errors", r.ErrorCount).Build()
	}
	return nil
}

// toolFailure reports a sync or build job that could not run its tool.
func toolFailure(kind query.ErrorKind, tool string) error {
	msg := fmt.Sprintf("%s did not run: %s", tool, kind)
	if kind == query.ErrorInterpreterMissing {
		msg = fmt.Sprintf("%s is not installed", tool)
	}
	return errors.ToolchainError(msg).WithContext("tool", tool).Build()
}
