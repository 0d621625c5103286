// Package logparser turns TeX engine logs into structured diagnostics and
// decides which job, if any, a build needs next.
package logparser

import (
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
)

// fileOpenRe matches the name following a "(" when TeX opens an input file.
// Extensions must start with a letter so "(12.3pt too wide)" stays anonymous.
var fileOpenRe = regexp.MustCompile(`^(?:"([^"\n]+)"|([^\s()"\[\]{}]+\.[A-Za-z][\w-]*))(?:[\s()\[\]]|$)`)

// badboxHeadRe matches a badbox report at the start of a line. The box
// contents TeX prints after it are typeset text whose parentheses say
// nothing about open files.
var badboxHeadRe = regexp.MustCompile(`\A(?:Overfull|Underfull) \\[hv]box`)

// FileDiagnostics holds the diagnostics attributed to one source file.
type FileDiagnostics struct {
	Errors   []diagnostics.LogItem
	Warnings []diagnostics.LogItem
	Badboxes []diagnostics.LogItem
}

func (f *FileDiagnostics) add(item diagnostics.LogItem) {
	switch item.Kind {
	case diagnostics.KindError:
		f.Errors = append(f.Errors, item)
	case diagnostics.KindWarning:
		f.Warnings = append(f.Warnings, item)
	case diagnostics.KindBadbox:
		f.Badboxes = append(f.Badboxes, item)
	}
}

func (f *FileDiagnostics) len() int {
	return len(f.Errors) + len(f.Warnings) + len(f.Badboxes)
}

// Report is the result of parsing one log.
type Report struct {
	// RootFile is the absolute path of the document being built.
	RootFile string
	// Files lists files with diagnostics in order of first appearance.
	Files  []string
	ByFile map[string]*FileDiagnostics
}

// Items flattens the report: the root document's items first, then each
// other file in order of first appearance. Within a file errors come first,
// then warnings, then badboxes.
func (r *Report) Items() []diagnostics.LogItem {
	order := make([]string, 0, len(r.Files)+1)
	order = append(order, r.RootFile)
	for _, f := range r.Files {
		if f != r.RootFile {
			order = append(order, f)
		}
	}

	var items []diagnostics.LogItem
	index := 0
	for _, name := range order {
		fd, ok := r.ByFile[name]
		if !ok || fd.len() == 0 {
			continue
		}
		for _, group := range [][]diagnostics.LogItem{fd.Errors, fd.Warnings, fd.Badboxes} {
			for _, item := range group {
				item.Filename = name
				item.FileIndex = index
				items = append(items, item)
			}
		}
		index++
	}
	return items
}

// Parse reads a decoded log and attributes every recognised diagnostic to
// the file TeX was reading when it printed it. Relative names are resolved
// against the root document's directory.
func Parse(logText, rootFile string) *Report {
	dir := filepath.Dir(rootFile)
	segments := splitByFile(unwrapLines(logText), func(name string) string {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		return filepath.Clean(name)
	})

	r := &Report{RootFile: rootFile, ByFile: make(map[string]*FileDiagnostics)}
	for _, seg := range segments {
		name := seg.file
		if name == "" {
			name = rootFile
		}
		for _, unit := range splitUnits(seg.text) {
			item, ok := classify(unit)
			if !ok {
				continue
			}
			fd, ok := r.ByFile[name]
			if !ok {
				fd = &FileDiagnostics{}
				r.ByFile[name] = fd
				r.Files = append(r.Files, name)
			}
			fd.add(item)
		}
	}
	return r
}

type segment struct {
	file string
	text string
}

// splitByFile walks the log once, tracking parenthesis depth. A "(" followed
// by a file name pushes that file; any other "(" pushes an anonymous entry so
// its ")" does not close a file. Text is accumulated for the innermost named
// file, with "" meaning the root document.
func splitByFile(text string, resolve func(string) string) []segment {
	var (
		stack    []string
		order    []string
		builders = make(map[string]*strings.Builder)
		current  = ""
	)
	out := func(file string) *strings.Builder {
		b, ok := builders[file]
		if !ok {
			b = &strings.Builder{}
			builders[file] = b
			order = append(order, file)
		}
		return b
	}
	innermost := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] != "" {
				return stack[i]
			}
		}
		return ""
	}
	switchTo := func(file string) {
		if file == current {
			return
		}
		current = file
		// Start a fresh line so a unit that follows the switch is seen at
		// line start.
		out(current).WriteByte('\n')
	}

	out(current)
	for i := 0; i < len(text); i++ {
		if (i == 0 || text[i-1] == '\n') && badboxHeadRe.MatchString(text[i:]) {
			end := badboxEnd(text, i)
			out(current).WriteString(text[i:end])
			i = end - 1
			continue
		}
		switch text[i] {
		case '(':
			if m := fileOpenRe.FindStringSubmatch(text[i+1:]); m != nil {
				name := m[1]
				consumed := len(name) + 2
				if name == "" {
					name = m[2]
					consumed = len(name)
				}
				stack = append(stack, resolve(name))
				switchTo(innermost())
				i += consumed
				continue
			}
			stack = append(stack, "")
			out(current).WriteByte('(')
		case ')':
			if len(stack) == 0 {
				out(current).WriteByte(')')
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top == "" {
				out(current).WriteByte(')')
				continue
			}
			switchTo(innermost())
		default:
			out(current).WriteByte(text[i])
		}
	}

	segments := make([]segment, 0, len(order))
	for _, file := range order {
		segments = append(segments, segment{file: file, text: builders[file].String()})
	}
	return segments
}

// badboxEnd returns the end of the badbox report starting at start: its
// header line plus the box contents up to the first blank line or the next
// diagnostic.
func badboxEnd(text string, start int) int {
	nl := strings.IndexByte(text[start:], '\n')
	if nl < 0 {
		return len(text)
	}
	pos := start + nl + 1
	for pos < len(text) {
		line := text[pos:]
		if n := strings.IndexByte(line, '\n'); n >= 0 {
			line = line[:n]
		}
		if strings.TrimSpace(line) == "" || startsUnit(line) {
			return pos
		}
		pos += len(line) + 1
	}
	return len(text)
}

// splitUnits cuts a file's text at every diagnostic start. Text before the
// first start is dropped.
func splitUnits(text string) []string {
	starts := unitStartRe.FindAllStringIndex(text, -1)
	units := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		units = append(units, text[loc[0]:end])
	}
	return units
}
