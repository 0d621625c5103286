package logparser

import (
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
)

// unitStartRe finds the first line of every diagnostic unit.
var unitStartRe = regexp.MustCompile(`(?m)^(?:` +
	`(?:Overfull|Underfull) \\[hv]box` +
	`|! ` +
	`|LaTeX (?:Font )?Warning: ` +
	`|(?:Package|Class) \S+ Warning: ` +
	`|(?:pdfTeX|LuaTeX|XeTeX) warning` +
	`|No file \S+\.` +
	`|File .* does not exist\.` +
	`|Missing character: )`)

// startsUnit reports whether line begins a diagnostic unit.
func startsUnit(line string) bool {
	loc := unitStartRe.FindStringIndex(line)
	return loc != nil && loc[0] == 0
}

var (
	badboxLinesRe  = regexp.MustCompile(`lines (\d+)--(\d+)`)
	badboxAtLineRe = regexp.MustCompile(`at line (\d+)`)
	texContextRe   = regexp.MustCompile(`(?m)^l\.(\d+)`)
	inputLineRe    = regexp.MustCompile(`input line (\d+)`)
	continuationRe = regexp.MustCompile(`^\([^)\s]+\)\s+`)
)

type lineRule int

const (
	lineNone lineRule = iota
	lineBadbox
	lineTeXContext
	lineInput
)

// shape is one known diagnostic form, matched by its literal prefix.
type shape struct {
	prefix *regexp.Regexp
	kind   diagnostics.Kind
	// category is expanded against prefix submatches ("Package $1").
	category string
	rule     lineRule
	// keepPrefix keeps the matched prefix in the item text.
	keepPrefix bool
	multiline  bool
}

// Order matters: the first matching prefix wins, so specific error forms
// precede the generic "! " form.
var shapes = []shape{
	{prefix: regexp.MustCompile(`^Overfull \\hbox`), kind: diagnostics.KindBadbox, rule: lineBadbox, keepPrefix: true},
	{prefix: regexp.MustCompile(`^Underfull \\hbox`), kind: diagnostics.KindBadbox, rule: lineBadbox, keepPrefix: true},
	{prefix: regexp.MustCompile(`^Overfull \\vbox`), kind: diagnostics.KindBadbox, rule: lineBadbox, keepPrefix: true},
	{prefix: regexp.MustCompile(`^Underfull \\vbox`), kind: diagnostics.KindBadbox, rule: lineBadbox, keepPrefix: true},
	{prefix: regexp.MustCompile(`^! LaTeX Error: `), kind: diagnostics.KindError, category: "LaTeX", rule: lineTeXContext},
	{prefix: regexp.MustCompile(`^! Package (\S+) Error: `), kind: diagnostics.KindError, category: "Package $1", rule: lineTeXContext, multiline: true},
	{prefix: regexp.MustCompile(`^! Class (\S+) Error: `), kind: diagnostics.KindError, category: "Class $1", rule: lineTeXContext, multiline: true},
	{prefix: regexp.MustCompile(`^! `), kind: diagnostics.KindError, rule: lineTeXContext},
	{prefix: regexp.MustCompile(`^LaTeX Font Warning: `), kind: diagnostics.KindWarning, category: "LaTeX Font", rule: lineInput, multiline: true},
	{prefix: regexp.MustCompile(`^LaTeX Warning: `), kind: diagnostics.KindWarning, category: "LaTeX", rule: lineInput, multiline: true},
	{prefix: regexp.MustCompile(`^Package (\S+) Warning: `), kind: diagnostics.KindWarning, category: "Package $1", rule: lineInput, multiline: true},
	{prefix: regexp.MustCompile(`^Class (\S+) Warning: `), kind: diagnostics.KindWarning, category: "Class $1", rule: lineInput, multiline: true},
	{prefix: regexp.MustCompile(`^(pdfTeX|LuaTeX|XeTeX) warning(?: \([^)]*\))?:? ?`), kind: diagnostics.KindWarning, category: "$1"},
	{prefix: regexp.MustCompile(`^No file `), kind: diagnostics.KindWarning, keepPrefix: true},
	{prefix: regexp.MustCompile(`^File .* does not exist\.`), kind: diagnostics.KindWarning, keepPrefix: true},
	{prefix: regexp.MustCompile(`^Missing character: `), kind: diagnostics.KindWarning, keepPrefix: true},
}

// classify turns one diagnostic unit into a LogItem. ok is false for text
// that matches no known shape.
func classify(unit string) (item diagnostics.LogItem, ok bool) {
	for _, s := range shapes {
		loc := s.prefix.FindStringSubmatchIndex(unit)
		if loc == nil {
			continue
		}
		category := s.prefix.ExpandString(nil, s.category, unit, loc)

		body := unit
		if !s.keepPrefix {
			body = unit[loc[1]:]
		}
		return diagnostics.LogItem{
			Kind:     s.kind,
			Category: string(category),
			Line:     lineNumber(s.rule, unit),
			Text:     unitText(body, s.multiline),
		}, true
	}
	return diagnostics.LogItem{}, false
}

// unitText returns the first line of a unit, plus its continuation lines up
// to the first blank line when the shape spans several lines.
func unitText(body string, multiline bool) string {
	lines := strings.Split(body, "\n")
	parts := []string{strings.TrimSpace(lines[0])}
	if multiline {
		for _, l := range lines[1:] {
			l = strings.TrimSpace(l)
			if l == "" {
				break
			}
			parts = append(parts, strings.TrimSpace(continuationRe.ReplaceAllString(l, "")))
		}
	}
	return strings.Join(parts, " ")
}

func lineNumber(rule lineRule, unit string) int {
	var m []string
	switch rule {
	case lineBadbox:
		first := strings.SplitN(unit, "\n", 2)[0]
		if m = badboxLinesRe.FindStringSubmatch(first); m == nil {
			m = badboxAtLineRe.FindStringSubmatch(first)
		}
	case lineTeXContext:
		m = texContextRe.FindStringSubmatch(unit)
	case lineInput:
		para, _, _ := strings.Cut(unit, "\n\n")
		m = inputLineRe.FindStringSubmatch(para)
	}
	if m == nil {
		return diagnostics.UnknownLine
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return diagnostics.UnknownLine
	}
	return n
}
