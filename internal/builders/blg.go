package builders

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
)

// blgItem is one problem reported in a bibtex or biber log.
type blgItem struct {
	kind diagnostics.Kind
	file string // empty when the log names no file
	line int
	text string
}

var (
	bibtexErrorLocRe   = regexp.MustCompile(`^(.*?)-+line (\d+) of file (.+)$`)
	bibtexWarningLocRe = regexp.MustCompile(`^--line (\d+) of file (.+)$`)
	biberLineRe        = regexp.MustCompile(`^\[\d+\] [^>]*> (WARN|ERROR) - (.*)$`)
	biberBibLocRe      = regexp.MustCompile(`BibTeX subsystem: (\S+?), line (\d+), (.*)$`)
)

func parseBibtexLog(text, dir string) []blgItem {
	var items []blgItem
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "Warning--"):
			item := blgItem{kind: diagnostics.KindWarning, line: diagnostics.UnknownLine, text: strings.TrimPrefix(line, "Warning--")}
			if i+1 < len(lines) {
				if m := bibtexWarningLocRe.FindStringSubmatch(lines[i+1]); m != nil {
					item.line, _ = strconv.Atoi(m[1])
					item.file = resolve(dir, m[2])
					i++
				}
			}
			items = append(items, item)
		case strings.Contains(line, "---line "):
			if m := bibtexErrorLocRe.FindStringSubmatch(line); m != nil {
				n, _ := strconv.Atoi(m[2])
				items = append(items, blgItem{kind: diagnostics.KindError, file: resolve(dir, m[3]), line: n, text: strings.TrimSpace(m[1])})
			}
		case strings.HasPrefix(line, "I couldn't open"), strings.HasPrefix(line, "I found no"):
			items = append(items, blgItem{kind: diagnostics.KindError, line: diagnostics.UnknownLine, text: strings.TrimSpace(line)})
		}
	}
	return items
}

func parseBiberLog(text, dir string) []blgItem {
	var items []blgItem
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		m := biberLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := blgItem{kind: diagnostics.KindWarning, line: diagnostics.UnknownLine, text: m[2]}
		if m[1] == "ERROR" {
			item.kind = diagnostics.KindError
		}
		if loc := biberBibLocRe.FindStringSubmatch(m[2]); loc != nil {
			item.file = resolve(dir, loc[1])
			item.line, _ = strconv.Atoi(loc[2])
			item.text = loc[3]
		}
		items = append(items, item)
	}
	return items
}

func resolve(dir, name string) string {
	name = strings.TrimSpace(name)
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	return filepath.Clean(name)
}

// toolDiagnostics converts blg items to LogItems. Items that name no file
// are attributed to the root document.
func toolDiagnostics(tool, rootFile string, items []blgItem) []diagnostics.LogItem {
	out := make([]diagnostics.LogItem, 0, len(items))
	for _, it := range items {
		file := it.file
		if file == "" {
			file = rootFile
		}
		out = append(out, diagnostics.LogItem{
			Kind:     it.kind,
			Category: tool,
			Filename: file,
			Line:     it.line,
			Text:     it.text,
		})
	}
	return out
}
