package synctex

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const (
	// MinScore is the lowest context similarity accepted for a match.
	MinScore = 0.1
	// ScoreBand keeps every match scoring within this distance of the best.
	ScoreBand = 0.1
)

const (
	softHyphen  = '\u00ad'
	placeholder = '\ufffd'
)

// MatchWord locates word in line. Candidates are occurrences of word bounded
// by non-word runes; each is scored by comparing the part of line around it
// with context, the text surrounding the word in the PDF. The returned spans
// are the retained candidates in line order. cursor is the first span, or a
// zero-length span at the first non-whitespace column when nothing scored
// at least MinScore.
func MatchWord(line, word, context string) (spans []query.Span, cursor query.Span) {
	word = normalize(word)
	context = normalize(context)
	fallback := query.Span{Offset: firstNonSpace(line)}
	if word == "" {
		return nil, fallback
	}

	re, err := wordPattern(word)
	if err != nil {
		return nil, fallback
	}

	lineRunes := []rune(line)
	contextRunes := []rune(context)
	wordAt := 0
	if i := strings.Index(context, word); i >= 0 {
		wordAt = utf8.RuneCountInString(context[:i])
	}

	type candidate struct {
		span  query.Span
		score float64
	}
	var (
		kept []candidate
		best float64
	)
	for _, loc := range re.FindAllStringIndex(line, -1) {
		if !bounded(line, loc[0], loc[1]) {
			continue
		}
		span := query.Span{
			Offset: utf8.RuneCountInString(line[:loc[0]]),
			Length: utf8.RuneCountInString(line[loc[0]:loc[1]]),
		}
		score := similarity(window(lineRunes, span.Offset-wordAt, len(contextRunes)), contextRunes)
		if score < MinScore || score < best-ScoreBand {
			continue
		}
		if score > best {
			best = score
			retained := kept[:0]
			for _, c := range kept {
				if c.score >= best-ScoreBand {
					retained = append(retained, c)
				}
			}
			kept = retained
		}
		kept = append(kept, candidate{span: span, score: score})
	}

	if len(kept) == 0 {
		return nil, fallback
	}
	spans = make([]query.Span, len(kept))
	for i, c := range kept {
		spans[i] = c.span
	}
	return spans, spans[0]
}

// normalize expands ligatures and drops soft hyphens, both of which PDF text
// extraction leaves behind.
func normalize(s string) string {
	return strings.ReplaceAll(norm.NFKC.String(s), string(softHyphen), "")
}

// wordPattern matches word with an optional "\-" between any two runes.
// U+FFFD stands for one unknown rune.
func wordPattern(word string) (*regexp.Regexp, error) {
	parts := make([]string, 0, utf8.RuneCountInString(word))
	for _, r := range word {
		if r == placeholder {
			parts = append(parts, ".")
			continue
		}
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	return regexp.Compile(strings.Join(parts, `(?:\\-)?`))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func bounded(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// window returns up to size runes of line starting at start, clamped to the
// line.
func window(line []rune, start, size int) []rune {
	start = max(start, 0)
	end := min(start+size, len(line))
	if start >= end {
		return nil
	}
	return line[start:end]
}

// similarity is the Ratcliff/Obershelp ratio of two rune sequences.
func similarity(a, b []rune) float64 {
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func firstNonSpace(line string) int {
	for i, r := range []rune(line) {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return 0
}
