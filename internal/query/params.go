package query

import "git.home.luguber.info/inful/texbuilder/internal/foundation/normalization"

// Interpreter is the LaTeX engine used for the main pass.
type Interpreter string

const (
	InterpreterPdflatex Interpreter = "pdflatex"
	InterpreterXelatex  Interpreter = "xelatex"
	InterpreterLualatex Interpreter = "lualatex"
	InterpreterTectonic Interpreter = "tectonic"
)

var interpreters = normalization.NewNormalizer("interpreter", map[string]Interpreter{
	"pdflatex": InterpreterPdflatex,
	"xelatex":  InterpreterXelatex,
	"lualatex": InterpreterLualatex,
	"tectonic": InterpreterTectonic,
}, InterpreterPdflatex)

// ParseInterpreter normalizes a configured interpreter name. Empty means pdflatex.
func ParseInterpreter(s string) (Interpreter, error) { return interpreters.Normalize(s) }

// ShellEscape is the policy for \write18.
type ShellEscape string

const (
	ShellEscapeDisabled   ShellEscape = "disabled"
	ShellEscapeRestricted ShellEscape = "restricted"
	ShellEscapeEnabled    ShellEscape = "enabled"
)

var shellEscapes = normalization.NewNormalizer("shell escape policy", map[string]ShellEscape{
	"disabled":   ShellEscapeDisabled,
	"restricted": ShellEscapeRestricted,
	"enabled":    ShellEscapeEnabled,
}, ShellEscapeRestricted)

// ParseShellEscape normalizes a configured shell-escape policy. Empty means restricted.
func ParseShellEscape(s string) (ShellEscape, error) { return shellEscapes.Normalize(s) }

// BuildParams are the per-query inputs of the build jobs.
type BuildParams struct {
	Interpreter       Interpreter
	UseLatexmk        bool
	ShellEscape       ShellEscape
	CleanupBuildFiles bool
}

// DrivesOwnPasses reports whether the toolchain reruns itself, in which case
// the log parser is not asked for follow-up jobs.
func (p BuildParams) DrivesOwnPasses() bool {
	return p.UseLatexmk || p.Interpreter == InterpreterTectonic
}

// ForwardSyncParams locate a source position to be shown in the PDF.
type ForwardSyncParams struct {
	Filename string // source file containing the cursor
	Line     int    // 1-based
	Column   int
	PDFPath  string // defaults to the root file's PDF
}

// BackwardSyncParams locate a clicked PDF position in the source.
type BackwardSyncParams struct {
	PDFPath string
	Page    int
	X, Y    float64
	Word    string // clicked word as extracted from the PDF
	Context string // surrounding line of PDF text containing Word

	// Sources optionally overrides on-disk file content, keyed by absolute
	// path, for buffers with unsaved edits.
	Sources map[string]string
}
