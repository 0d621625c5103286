package commands

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// ForwardCmd implements the 'forward' command.
type ForwardCmd struct {
	BuildFlags `embed:""`
	Root       string `arg:"" name:"root" help:"Root .tex file"`
	File       string `short:"f" required:"" help:"Source file containing the cursor"`
	Line       int    `short:"l" required:"" help:"1-based source line"`
	Column     int    `help:"Source column"`
	PDF        string `name:"pdf" help:"PDF to search (default: next to the root file)"`
	Build      bool   `short:"b" help:"Build before syncing"`
	JSON       bool   `help:"Print the rectangles as JSON"`
}

func (f *ForwardCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return f.run(ctx, cfg, engine{})
}

func (f *ForwardCmd) run(ctx context.Context, cfg *config.Config, eng engine) error {
	rootFile, err := rootFileArg(f.Root)
	if err != nil {
		return err
	}
	if f.Line < 1 {
		return errors.ValidationError("line must be at least 1").WithContext("line", f.Line).Build()
	}
	file, err := filepath.Abs(f.File)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve source file").Build()
	}

	jobs := []query.JobID{query.JobForwardSync}
	if f.Build {
		jobs = []query.JobID{query.JobBuildLatex, query.JobForwardSync}
	}
	q := query.New(rootFile, jobs...)
	if q.Build, err = f.apply(cfg); err != nil {
		return err
	}
	q.ForwardSync = query.ForwardSyncParams{Filename: file, Line: f.Line, Column: f.Column, PDFPath: f.PDF}
	if err := newSession(cfg, eng.runner, eng.pages).run(ctx, q); err != nil {
		return err
	}

	if f.Build {
		result, _ := q.BuildResult()
		if result != nil && result.Failed() {
			return buildError(result)
		}
	}
	result, ok := q.ForwardSyncResult()
	if !ok {
		return errors.NotFoundError("no synctex data for this document").
			WithContext("root_file", q.RootFile()).Build()
	}
	if result.Failed() {
		return toolFailure(result.Error, result.ErrorArg)
	}
	if f.JSON {
		return printJSON(eng.writer(), result)
	}
	printRects(eng.writer(), result)
	return nil
}

// BackwardCmd implements the 'backward' command.
type BackwardCmd struct {
	Root    string  `arg:"" name:"root" help:"Root .tex file"`
	Page    int     `short:"p" required:"" help:"1-based PDF page"`
	X       float64 `short:"x" required:"" help:"Horizontal position in PDF points"`
	Y       float64 `short:"y" required:"" help:"Vertical position in PDF points"`
	Word    string  `short:"w" help:"Clicked word as shown in the PDF"`
	Context string  `help:"Line of PDF text around the clicked word"`
	PDF     string  `name:"pdf" help:"PDF that was clicked (default: next to the root file)"`
	JSON    bool    `help:"Print the source location as JSON"`
}

func (b *BackwardCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return b.run(ctx, cfg, engine{})
}

func (b *BackwardCmd) run(ctx context.Context, cfg *config.Config, eng engine) error {
	rootFile, err := rootFileArg(b.Root)
	if err != nil {
		return err
	}
	if b.Page < 1 {
		return errors.ValidationError("page must be at least 1").WithContext("page", b.Page).Build()
	}

	q := query.New(rootFile, query.JobBackwardSync)
	q.BackwardSync = query.BackwardSyncParams{
		PDFPath: b.PDF,
		Page:    b.Page,
		X:       b.X,
		Y:       b.Y,
		Word:    b.Word,
		Context: b.Context,
	}
	if err := newSession(cfg, eng.runner, eng.pages).run(ctx, q); err != nil {
		return err
	}

	result, ok := q.BackwardSyncResult()
	if !ok {
		return errors.NotFoundError("no source position at this PDF location").
			WithContext("page", b.Page).Build()
	}
	if result.Failed() {
		return toolFailure(result.Error, result.ErrorArg)
	}
	if b.JSON {
		return printJSON(eng.writer(), result)
	}
	printSourceLocation(eng.writer(), result)
	return nil
}
