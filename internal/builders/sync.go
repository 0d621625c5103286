package builders

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/observability"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/synctex"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// ForwardSync maps a source position to rectangles in the PDF.
type ForwardSync struct {
	process
	deps Deps
}

func NewForwardSync(deps Deps) *ForwardSync { return &ForwardSync{deps: deps} }

func (b *ForwardSync) Name() query.JobID { return query.JobForwardSync }

func (b *ForwardSync) Run(ctx context.Context, q *query.Query) {
	p := q.ForwardSync
	dbDir, err := synctex.DatabaseDir(b.deps.ConfigRoot, q.RootFile())
	if err != nil {
		observability.ErrorContext(ctx, "Forward sync skipped", logfields.Error(err))
		return
	}
	input := p.Filename
	if input == "" {
		input = q.RootFile()
	}
	pdf := p.PDFPath
	if pdf == "" {
		pdf = q.PDFPath()
	}

	cmd := toolchain.Command{
		Tool: synctex.Tool,
		Args: synctex.ViewArgs(p.Line, p.Column, input, pdf, dbDir),
		Dir:  q.Dir(),
	}
	res, err := b.run(ctx, b.deps.Runner, cmd)
	if ctx.Err() != nil {
		return
	}
	if toolchain.IsToolNotFound(err) {
		observability.ErrorContext(ctx, "synctex is not installed", logfields.Tool(cmd.Tool), logfields.Error(err))
		q.SetForwardSyncResult(&query.ForwardSyncResult{Error: query.ErrorInterpreterMissing, ErrorArg: cmd.Tool})
		return
	}
	if err != nil {
		observability.WarnContext(ctx, "synctex view failed", logfields.Error(err))
		q.SetForwardSyncResult(&query.ForwardSyncResult{})
		return
	}

	rects := synctex.ParseView(res.Stdout)
	observability.DebugContext(ctx, "Forward sync resolved", logfields.File(input))
	q.SetForwardSyncResult(&query.ForwardSyncResult{Rectangles: rects})
}

// BackwardSync maps a clicked PDF word to a span in the source.
type BackwardSync struct {
	process
	deps Deps
}

func NewBackwardSync(deps Deps) *BackwardSync { return &BackwardSync{deps: deps} }

func (b *BackwardSync) Name() query.JobID { return query.JobBackwardSync }

func (b *BackwardSync) Run(ctx context.Context, q *query.Query) {
	p := q.BackwardSync
	dbDir, err := synctex.DatabaseDir(b.deps.ConfigRoot, q.RootFile())
	if err != nil {
		observability.ErrorContext(ctx, "Backward sync skipped", logfields.Error(err))
		return
	}
	pdf := p.PDFPath
	if pdf == "" {
		pdf = q.PDFPath()
	}

	cmd := toolchain.Command{
		Tool: synctex.Tool,
		Args: synctex.EditArgs(p.Page, p.X, p.Y, pdf, dbDir),
		Dir:  q.Dir(),
	}
	res, err := b.run(ctx, b.deps.Runner, cmd)
	if ctx.Err() != nil {
		return
	}
	if toolchain.IsToolNotFound(err) {
		observability.ErrorContext(ctx, "synctex is not installed", logfields.Tool(cmd.Tool), logfields.Error(err))
		q.SetBackwardSyncResult(&query.BackwardSyncResult{Error: query.ErrorInterpreterMissing, ErrorArg: cmd.Tool})
		return
	}
	if err != nil {
		observability.WarnContext(ctx, "synctex edit failed", logfields.Error(err))
		return
	}

	file, line, ok := synctex.ParseEdit(res.Stdout)
	if !ok {
		observability.DebugContext(ctx, "synctex found no source position")
		return
	}
	file = filepath.Clean(file)
	if !filepath.IsAbs(file) {
		file = filepath.Join(q.Dir(), file)
	}

	text, err := sourceLine(p, file, line-1)
	if err != nil {
		observability.WarnContext(ctx, "Could not read source for backward sync", logfields.File(file), logfields.Error(err))
	}
	spans, cursor := synctex.MatchWord(text, p.Word, p.Context)
	q.SetBackwardSyncResult(&query.BackwardSyncResult{
		Filename: file,
		Line:     max(line-1, 0),
		Spans:    spans,
		Cursor:   cursor,
	})
}

// sourceLine returns the 0-based line of file, preferring unsaved editor
// text. Out of range lines are empty.
func sourceLine(p query.BackwardSyncParams, file string, line int) (string, error) {
	text, ok := p.Sources[file]
	if !ok {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		text = string(raw)
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if line < 0 || line >= len(lines) {
		return "", nil
	}
	return lines[line], nil
}
