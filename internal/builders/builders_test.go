package builders

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/synctex"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

type stubPages int

func (s stubPages) PageCount(string) (int, error) { return int(s), nil }

type fixture struct {
	dir        string
	configRoot string
	root       string
	runner     *toolchain.FakeRunner
	builders   map[query.JobID]Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:        t.TempDir(),
		configRoot: t.TempDir(),
		runner:     toolchain.NewFakeRunner(),
		builders:   make(map[query.JobID]Builder),
	}
	f.root = filepath.Join(f.dir, "main.tex")
	require.NoError(t, os.WriteFile(f.root, []byte("\\documentclass{article}\n"), 0o600))
	for _, b := range All(Deps{Runner: f.runner, ConfigRoot: f.configRoot, Pages: stubPages(3)}) {
		f.builders[b.Name()] = b
	}
	return f
}

// drain runs jobs until the queue is empty, the way the build worker does.
func (f *fixture) drain(t *testing.T, ctx context.Context, q *query.Query) {
	t.Helper()
	for i := 0; ; i++ {
		require.Less(t, i, 20, "job queue did not drain")
		id, ok := q.PopJob()
		if !ok {
			return
		}
		f.builders[id].Run(ctx, q)
	}
}

// fakeEngine writes the given logs on successive passes, repeating the last
// one, together with a PDF and a synctex file.
func fakeEngine(calls *atomic.Int32, logs ...string) toolchain.Handler {
	return func(ctx context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
		n := int(calls.Add(1)) - 1
		logText := logs[min(n, len(logs)-1)]
		root := cmd.Args[len(cmd.Args)-1]
		base := strings.TrimSuffix(root, filepath.Ext(root))
		for path, content := range map[string]string{
			base + ".log":        logText,
			base + ".pdf":        "%PDF-1.5",
			base + ".synctex.gz": "synctex",
		} {
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return nil, err
			}
		}
		return &toolchain.Result{}, nil
	}
}

func TestLatexCommand(t *testing.T) {
	root := "/doc/main.tex"
	tests := []struct {
		name   string
		params query.BuildParams
		tool   string
		args   []string
	}{
		{
			name:   "plain engine",
			params: query.BuildParams{Interpreter: query.InterpreterPdflatex, ShellEscape: query.ShellEscapeRestricted},
			tool:   "pdflatex",
			args:   []string{"-synctex=1", "-interaction=nonstopmode", "-shell-restricted", "-output-directory=/doc", root},
		},
		{
			name:   "latexmk with xelatex",
			params: query.BuildParams{Interpreter: query.InterpreterXelatex, UseLatexmk: true, ShellEscape: query.ShellEscapeDisabled},
			tool:   "latexmk",
			args:   []string{"-pdfxe", "-synctex=1", "-interaction=nonstopmode", "-no-shell-escape", "-output-directory=/doc", root},
		},
		{
			name:   "latexmk with lualatex",
			params: query.BuildParams{Interpreter: query.InterpreterLualatex, UseLatexmk: true, ShellEscape: query.ShellEscapeEnabled},
			tool:   "latexmk",
			args:   []string{"-pdflua", "-synctex=1", "-interaction=nonstopmode", "-shell-escape", "-output-directory=/doc", root},
		},
		{
			name:   "tectonic",
			params: query.BuildParams{Interpreter: query.InterpreterTectonic},
			tool:   "tectonic",
			args:   []string{"--synctex", "--keep-logs", "--outdir", "/doc", root},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.New(root)
			q.Build = tt.params
			cmd := LatexCommand(q)
			assert.Equal(t, tt.tool, cmd.Tool)
			assert.Equal(t, tt.args, cmd.Args)
			assert.Equal(t, "/doc", cmd.Dir)
		})
	}
}

func TestLatex_LabelsChangedRerun(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.runner.Handle("pdflatex", fakeEngine(&calls,
		"(./main.tex\nLaTeX Warning: Label(s) may have changed. Rerun to get cross-references right.\n\n)\n"))

	q := query.New(f.root, query.JobBuildLatex)
	q.Build = query.BuildParams{Interpreter: query.InterpreterPdflatex}
	f.drain(t, context.Background(), q)

	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, filepath.Join(f.dir, "main.pdf"), res.PDFFilename)
	assert.Equal(t, 3, res.PageCount)
	assert.True(t, res.HasSynctexFile)
	assert.Empty(t, res.Error)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.KindWarning, res.Diagnostics[0].Kind)

	dbDir, err := synctex.DatabaseDir(f.configRoot, f.root)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dbDir, "main.synctex.gz"))
	assert.NoFileExists(t, filepath.Join(f.dir, "main.synctex.gz"))
}

func TestLatex_BibtexRoundTrip(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.runner.Handle("pdflatex", fakeEngine(&calls,
		"No file main.bbl.\nLaTeX Warning: Citation `knuth' on page 1 undefined on input line 4.\n\nLaTeX Warning: There were undefined references.\n",
		"LaTeX Warning: Label(s) may have changed. Rerun to get cross-references right.\n",
		"Output written on main.pdf (1 page).\n",
	))
	f.runner.Handle("bibtex", func(ctx context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
		blg := "Database file #1: refs.bib\nWarning--empty publisher in knuth\n--line 7 of file refs.bib\n(There was 1 warning)\n"
		return &toolchain.Result{}, os.WriteFile(filepath.Join(cmd.Dir, "main.blg"), []byte(blg), 0o600)
	})

	q := query.New(f.root, query.JobBuildLatex)
	q.Build = query.BuildParams{Interpreter: query.InterpreterPdflatex, CleanupBuildFiles: true}
	f.drain(t, context.Background(), q)

	assert.Equal(t, []string{"pdflatex", "bibtex", "pdflatex", "pdflatex"}, f.runner.Tools())
	assert.Equal(t, []string{"main.aux"}, f.runner.Calls()[1].Args)
	assert.True(t, q.RanOn(query.JobBuildBibtex, "main"))

	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, 3, res.Passes)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "bibtex", res.Diagnostics[0].Category)
	assert.Equal(t, filepath.Join(f.dir, "refs.bib"), res.Diagnostics[0].Filename)
	assert.Equal(t, 7, res.Diagnostics[0].Line)

	assert.NoFileExists(t, filepath.Join(f.dir, "main.log"))
	assert.NoFileExists(t, filepath.Join(f.dir, "main.blg"))
	assert.FileExists(t, filepath.Join(f.dir, "main.pdf"))
	assert.FileExists(t, f.root)
}

func TestLatex_WrapperDrivesOwnPasses(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.runner.Handle("latexmk", fakeEngine(&calls, "Package foo Warning: Please rerun LaTeX.\n"))

	q := query.New(f.root, query.JobBuildLatex)
	q.Build = query.BuildParams{Interpreter: query.InterpreterPdflatex, UseLatexmk: true}
	f.drain(t, context.Background(), q)

	assert.Equal(t, int32(1), calls.Load())
	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, 1, res.Passes)
	assert.Empty(t, q.RerunReasons())
}

func TestLatex_InterpreterMissing(t *testing.T) {
	f := newFixture(t)
	f.runner.SetMissing("xelatex")

	q := query.New(f.root, query.JobBuildLatex, query.JobForwardSync)
	q.Build = query.BuildParams{Interpreter: query.InterpreterXelatex}
	f.builders[query.JobBuildLatex].Run(context.Background(), q)

	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, query.ErrorInterpreterMissing, res.Error)
	assert.Equal(t, "xelatex", res.ErrorArg)
	assert.Empty(t, res.PDFFilename)
	assert.False(t, q.HasJobs())
}

func TestLatex_NoLogMeansNotWorking(t *testing.T) {
	f := newFixture(t)
	f.runner.Handle("pdflatex", func(ctx context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
		return &toolchain.Result{ExitCode: 1}, nil
	})
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "main.log"), []byte("stale"), 0o600))

	q := query.New(f.root, query.JobBuildLatex)
	q.Build = query.BuildParams{Interpreter: query.InterpreterPdflatex}
	f.drain(t, context.Background(), q)

	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, query.ErrorInterpreterNotWorking, res.Error)
	assert.Equal(t, "pdflatex", res.ErrorArg)
}

func TestLatex_CancelledLeavesNoResult(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	f.runner.Handle("pdflatex", func(ctx context.Context, cmd toolchain.Command) (*toolchain.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	q := query.New(f.root)
	q.Build = query.BuildParams{Interpreter: query.InterpreterPdflatex}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	b := f.builders[query.JobBuildLatex]
	go func() {
		defer close(done)
		b.Run(ctx, q)
	}()
	<-started
	cancel()
	b.StopRunning()
	<-done

	_, ok := q.BuildResult()
	assert.False(t, ok)
	assert.False(t, q.HasJobs())
}

func TestAuxiliary_MissingToolAborts(t *testing.T) {
	f := newFixture(t)
	f.runner.SetMissing("biber")

	q := query.New(f.root, query.JobBuildBiber, query.JobBuildLatex)
	f.drain(t, context.Background(), q)

	res, ok := q.BuildResult()
	require.True(t, ok)
	assert.Equal(t, query.ErrorInterpreterMissing, res.Error)
	assert.Equal(t, "biber", res.ErrorArg)
	assert.Empty(t, f.runner.Tools())
}

func TestAuxiliary_Commands(t *testing.T) {
	f := newFixture(t)
	t.Setenv("BIBINPUTS", "/usr/share/bib")

	for _, job := range []query.JobID{query.JobBuildBiber, query.JobBuildMakeindex, query.JobBuildGlossaries} {
		q := query.New(f.root)
		f.builders[job].Run(context.Background(), q)
		assert.Equal(t, []query.JobID{query.JobBuildLatex}, q.PendingJobs())
		assert.True(t, q.RanOn(job, "main"))
	}

	calls := f.runner.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "biber", calls[0].Tool)
	assert.Equal(t, []string{"main"}, calls[0].Args)
	assert.Equal(t, []string{"BIBINPUTS=" + f.dir + ":/usr/share/bib:"}, calls[0].Env)
	assert.Equal(t, "makeindex", calls[1].Tool)
	assert.Equal(t, []string{"main.idx"}, calls[1].Args)
	assert.Equal(t, "makeglossaries", calls[2].Tool)
	assert.Equal(t, []string{"main"}, calls[2].Args)
}

func TestBibInputs(t *testing.T) {
	assert.Equal(t, "/doc:", bibInputs("/doc", ""))
	assert.Equal(t, "/doc:/bib:", bibInputs("/doc", "/bib:"))
	assert.Equal(t, "/doc:/bib:", bibInputs("/doc", "/bib"))
}
