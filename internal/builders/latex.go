package builders

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/logparser"
	"git.home.luguber.info/inful/texbuilder/internal/observability"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/synctex"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// ToolLatexmk is the wrapper that drives engine passes itself.
const ToolLatexmk = "latexmk"

// Latex runs the main engine pass and decides what follows it.
type Latex struct {
	process
	deps Deps
}

func NewLatex(deps Deps) *Latex { return &Latex{deps: deps} }

func (b *Latex) Name() query.JobID { return query.JobBuildLatex }

func (b *Latex) Run(ctx context.Context, q *query.Query) {
	pass := q.BeginPass()
	cmd := LatexCommand(q)
	logPath := filepath.Join(q.Dir(), q.Stem()+".log")

	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		observability.WarnContext(ctx, "Could not remove stale log", logfields.Path(logPath), logfields.Error(err))
	}

	observability.InfoContext(ctx, "Running engine pass", logfields.Tool(cmd.Tool), logfields.Pass(pass))
	res, err := b.run(ctx, b.deps.Runner, cmd)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		observability.ErrorContext(ctx, "Engine failed to run", logfields.Tool(cmd.Tool), logfields.Error(err))
		abort(q, failure(err), cmd.Tool)
		return
	}
	observability.DebugContext(ctx, "Engine pass finished", logfields.Tool(cmd.Tool), logfields.ExitCode(res.ExitCode))

	raw, err := os.ReadFile(logPath)
	if err != nil {
		observability.ErrorContext(ctx, "Engine left no log", logfields.Path(logPath), logfields.Error(err))
		abort(q, query.ErrorInterpreterNotWorking, cmd.Tool)
		return
	}

	items := logparser.Parse(logparser.DecodeLog(raw), q.RootFile()).Items()
	q.SetDiagnostics(items)

	if !q.Build.DrivesOwnPasses() {
		if next := logparser.NextJobs(items, q); len(next) > 0 {
			observability.InfoContext(ctx, "Scheduling follow-up job", logfields.Job(string(next[0])), logfields.Pass(pass))
			q.PushJobFront(next[0])
			return
		}
	}

	b.finish(ctx, q)
}

func (b *Latex) finish(ctx context.Context, q *query.Query) {
	result := &query.BuildResult{Passes: q.Passes()}

	if _, err := os.Stat(q.PDFPath()); err == nil {
		result.PDFFilename = q.PDFPath()
		if n, err := b.deps.Pages.PageCount(q.PDFPath()); err == nil {
			result.PageCount = n
		} else {
			observability.DebugContext(ctx, "Page count unavailable", logfields.Path(q.PDFPath()), logfields.Error(err))
		}
	}

	has, err := storeSynctex(q, b.deps.ConfigRoot)
	if err != nil {
		observability.WarnContext(ctx, "Could not store synctex data", logfields.Error(err))
	}
	result.HasSynctexFile = has

	if q.Build.CleanupBuildFiles {
		if err := Cleanup(q.RootFile()); err != nil {
			observability.WarnContext(ctx, "Cleanup incomplete", logfields.Error(err))
		}
	}

	result.Diagnostics = q.Diagnostics()
	result.ErrorCount = q.ErrorCount()
	q.SetBuildResult(result)
	observability.InfoContext(ctx, "Build finished",
		logfields.Pass(result.Passes),
		logfields.Path(result.PDFFilename))
}

// LatexCommand returns the main engine invocation for q.
func LatexCommand(q *query.Query) toolchain.Command {
	dir := q.Dir()
	p := q.Build

	if p.Interpreter == query.InterpreterTectonic {
		args := []string{"--synctex", "--keep-logs", "--outdir", dir}
		if p.ShellEscape == query.ShellEscapeEnabled {
			args = append(args, "-Z", "shell-escape")
		}
		return toolchain.Command{Tool: string(p.Interpreter), Args: append(args, q.RootFile()), Dir: dir}
	}

	args := []string{"-synctex=1", "-interaction=nonstopmode", shellEscapeFlag(p.ShellEscape), "-output-directory=" + dir, q.RootFile()}
	if p.UseLatexmk {
		return toolchain.Command{Tool: ToolLatexmk, Args: append([]string{latexmkEngineFlag(p.Interpreter)}, args...), Dir: dir}
	}
	return toolchain.Command{Tool: string(p.Interpreter), Args: args, Dir: dir}
}

func shellEscapeFlag(p query.ShellEscape) string {
	switch p {
	case query.ShellEscapeDisabled:
		return "-no-shell-escape"
	case query.ShellEscapeEnabled:
		return "-shell-escape"
	default:
		return "-shell-restricted"
	}
}

func latexmkEngineFlag(i query.Interpreter) string {
	switch i {
	case query.InterpreterXelatex:
		return "-pdfxe"
	case query.InterpreterLualatex:
		return "-pdflua"
	default:
		return "-pdf"
	}
}

// storeSynctex moves the freshly written synctex file into the document's
// database directory. It reports whether the database holds a synctex file
// afterwards.
func storeSynctex(q *query.Query, configRoot string) (bool, error) {
	dbDir, err := synctex.DatabaseDir(configRoot, q.RootFile())
	if err != nil {
		return false, err
	}
	name := q.Stem() + synctex.FileSuffix
	src := filepath.Join(q.Dir(), name)
	dst := filepath.Join(dbDir, name)

	if _, err := os.Stat(src); err == nil {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return false, fmt.Errorf("create synctex database dir: %w", err)
		}
		if err := moveFile(src, dst); err != nil {
			return false, err
		}
	}
	_, err = os.Stat(dst)
	return err == nil, nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return os.Remove(src)
}
