package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	badboxLabel  = color.New(color.FgCyan)
	successLabel = color.New(color.FgGreen, color.Bold)
	dimText      = color.New(color.Faint)
)

func kindLabel(kind diagnostics.Kind) string {
	switch kind {
	case diagnostics.KindError:
		return errorLabel.Sprint("error")
	case diagnostics.KindWarning:
		return warningLabel.Sprint("warning")
	default:
		return badboxLabel.Sprint(string(kind))
	}
}

// formatDiagnostic renders one item as "file:line: kind: [category] text".
// Paths are shown relative to dir when possible.
func formatDiagnostic(item diagnostics.LogItem, dir string) string {
	name := item.Filename
	if rel, err := filepath.Rel(dir, name); err == nil && filepath.IsLocal(rel) {
		name = rel
	}
	loc := name
	if item.Line != diagnostics.UnknownLine {
		loc = fmt.Sprintf("%s:%d", name, item.Line)
	}
	text := item.Text
	if item.Category != "" {
		text = fmt.Sprintf("[%s] %s", item.Category, text)
	}
	return fmt.Sprintf("%s: %s: %s", loc, kindLabel(item.Kind), text)
}

func printBuildResult(w io.Writer, r *query.BuildResult, dir string) {
	for _, item := range r.Diagnostics {
		fmt.Fprintln(w, formatDiagnostic(item, dir))
	}
	if r.Failed() {
		fmt.Fprintf(w, "%s %s %s\n", errorLabel.Sprint("build failed:"), r.Error, r.ErrorArg)
		return
	}
	summary := fmt.Sprintf("%d error(s), %d warning(s), %d badbox(es), %d pass(es)",
		r.ErrorCount,
		diagnostics.Count(r.Diagnostics, diagnostics.KindWarning),
		diagnostics.Count(r.Diagnostics, diagnostics.KindBadbox),
		r.Passes)
	if r.PDFFilename == "" {
		fmt.Fprintf(w, "%s %s\n", errorLabel.Sprint("no PDF produced"), dimText.Sprint(summary))
		return
	}
	label := successLabel
	if r.ErrorCount > 0 {
		label = warningLabel
	}
	pages := ""
	if r.PageCount > 0 {
		pages = fmt.Sprintf(" (%d pages)", r.PageCount)
	}
	fmt.Fprintf(w, "%s %s%s %s\n", label.Sprint("wrote"), r.PDFFilename, pages, dimText.Sprint(summary))
}

func printRects(w io.Writer, r *query.ForwardSyncResult) {
	if len(r.Rectangles) == 0 {
		fmt.Fprintln(w, dimText.Sprint("no matching PDF location"))
		return
	}
	for _, rect := range r.Rectangles {
		fmt.Fprintf(w, "page %d: h=%.2f v=%.2f w=%.2f h=%.2f\n", rect.Page, rect.H, rect.V, rect.Width, rect.Height)
	}
}

func printSourceLocation(w io.Writer, r *query.BackwardSyncResult) {
	// Lines are stored 0-based; editors expect 1-based.
	fmt.Fprintf(w, "%s:%d:%d\n", r.Filename, r.Line+1, r.Cursor.Offset+1)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
