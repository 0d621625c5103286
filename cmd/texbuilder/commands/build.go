package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/pdfinfo"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags `embed:""`
	Root       string `arg:"" name:"root" help:"Root .tex file"`
	JSON       bool   `help:"Print the build result as JSON"`
}

// engine is what one-shot commands need besides the configuration.
// Zero values use the real toolchain.
type engine struct {
	runner toolchain.Runner
	pages  pdfinfo.PageCounter
	out    io.Writer
}

func (e engine) writer() io.Writer {
	if e.out == nil {
		return os.Stdout
	}
	return e.out
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return b.run(ctx, cfg, engine{})
}

func (b *BuildCmd) run(ctx context.Context, cfg *config.Config, eng engine) error {
	rootFile, err := rootFileArg(b.Root)
	if err != nil {
		return err
	}
	params, err := b.apply(cfg)
	if err != nil {
		return err
	}

	q := query.New(rootFile, query.JobBuildLatex)
	q.Build = params
	slog.Info("Building", logfields.File(q.RootFile()), slog.String("interpreter", string(params.Interpreter)))
	if err := newSession(cfg, eng.runner, eng.pages).run(ctx, q); err != nil {
		return err
	}

	result, _ := q.BuildResult()
	if b.JSON {
		if err := printJSON(eng.writer(), result); err != nil {
			return err
		}
	} else if result != nil {
		printBuildResult(eng.writer(), result, filepath.Dir(q.RootFile()))
	}
	return buildError(result)
}
