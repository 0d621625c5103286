package builders

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/observability"
	"git.home.luguber.info/inful/texbuilder/internal/query"
	"git.home.luguber.info/inful/texbuilder/internal/toolchain"
)

// Auxiliary tool names.
const (
	ToolBibtex         = "bibtex"
	ToolBiber          = "biber"
	ToolMakeindex      = "makeindex"
	ToolMakeglossaries = "makeglossaries"
)

// Auxiliary runs one helper tool between engine passes. It always schedules
// another engine pass afterwards and records that it ran on the document so
// the log parser will not ask for it again.
type Auxiliary struct {
	process
	deps    Deps
	job     query.JobID
	tool    string
	command func(q *query.Query) toolchain.Command
	// blgParser reads the tool's own log, when it writes one.
	blgParser func(text, dir string) []blgItem
}

func NewBibtex(deps Deps) *Auxiliary {
	return &Auxiliary{
		deps: deps,
		job:  query.JobBuildBibtex,
		tool: ToolBibtex,
		command: func(q *query.Query) toolchain.Command {
			return toolchain.Command{Tool: ToolBibtex, Args: []string{q.Stem() + ".aux"}, Dir: q.Dir()}
		},
		blgParser: parseBibtexLog,
	}
}

func NewBiber(deps Deps) *Auxiliary {
	return &Auxiliary{
		deps: deps,
		job:  query.JobBuildBiber,
		tool: ToolBiber,
		command: func(q *query.Query) toolchain.Command {
			return toolchain.Command{
				Tool: ToolBiber,
				Args: []string{q.Stem()},
				Dir:  q.Dir(),
				Env:  []string{"BIBINPUTS=" + bibInputs(q.Dir(), os.Getenv("BIBINPUTS"))},
			}
		},
		blgParser: parseBiberLog,
	}
}

func NewMakeindex(deps Deps) *Auxiliary {
	return &Auxiliary{
		deps: deps,
		job:  query.JobBuildMakeindex,
		tool: ToolMakeindex,
		command: func(q *query.Query) toolchain.Command {
			return toolchain.Command{Tool: ToolMakeindex, Args: []string{q.Stem() + ".idx"}, Dir: q.Dir()}
		},
	}
}

func NewGlossaries(deps Deps) *Auxiliary {
	return &Auxiliary{
		deps: deps,
		job:  query.JobBuildGlossaries,
		tool: ToolMakeglossaries,
		command: func(q *query.Query) toolchain.Command {
			return toolchain.Command{Tool: ToolMakeglossaries, Args: []string{q.Stem()}, Dir: q.Dir()}
		},
	}
}

func (b *Auxiliary) Name() query.JobID { return b.job }

func (b *Auxiliary) Run(ctx context.Context, q *query.Query) {
	cmd := b.command(q)
	observability.InfoContext(ctx, "Running auxiliary tool", logfields.Tool(b.tool))

	res, err := b.run(ctx, b.deps.Runner, cmd)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		observability.ErrorContext(ctx, "Auxiliary tool failed to run", logfields.Tool(b.tool), logfields.Error(err))
		abort(q, failure(err), b.tool)
		return
	}
	if res.ExitCode != 0 {
		observability.WarnContext(ctx, "Auxiliary tool reported problems", logfields.Tool(b.tool), logfields.ExitCode(res.ExitCode))
	}

	if b.blgParser != nil {
		blgPath := filepath.Join(q.Dir(), q.Stem()+".blg")
		if raw, err := os.ReadFile(blgPath); err == nil {
			q.AddToolDiagnostics(toolDiagnostics(b.tool, q.RootFile(), b.blgParser(string(raw), q.Dir())))
		}
	}

	q.MarkRanOn(b.job, q.Stem())
	q.PushJobFront(query.JobBuildLatex)
}

// bibInputs puts dir in front of the existing search path. The trailing
// separator keeps the tool's default path.
func bibInputs(dir, existing string) string {
	sep := string(os.PathListSeparator)
	if existing == "" {
		return dir + sep
	}
	if strings.HasSuffix(existing, sep) {
		return dir + sep + existing
	}
	return dir + sep + existing + sep
}
