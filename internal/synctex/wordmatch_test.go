package synctex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/texbuilder/internal/query"
)

func TestMatchWord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		word    string
		context string
		spans   []query.Span
		cursor  query.Span
	}{
		{
			name:    "single occurrence",
			line:    "The quick brown fox jumps",
			word:    "brown",
			context: "quick brown fox",
			spans:   []query.Span{{Offset: 10, Length: 5}},
			cursor:  query.Span{Offset: 10, Length: 5},
		},
		{
			name:    "equally similar occurrences are both kept",
			line:    "the brown fox saw the brown fox",
			word:    "brown",
			context: "the brown fox",
			spans:   []query.Span{{Offset: 4, Length: 5}, {Offset: 22, Length: 5}},
			cursor:  query.Span{Offset: 4, Length: 5},
		},
		{
			name:    "weaker earlier occurrence is dropped",
			line:    "brown bears and the quick brown fox",
			word:    "brown",
			context: "quick brown fox",
			spans:   []query.Span{{Offset: 26, Length: 5}},
			cursor:  query.Span{Offset: 26, Length: 5},
		},
		{
			name:    "word boundaries",
			line:    "brownie and brown",
			word:    "brown",
			context: "and brown",
			spans:   []query.Span{{Offset: 12, Length: 5}},
			cursor:  query.Span{Offset: 12, Length: 5},
		},
		{
			name:    "ligature in extracted word",
			line:    "a fish here",
			word:    "\ufb01sh",
			context: "a \ufb01sh here",
			spans:   []query.Span{{Offset: 2, Length: 4}},
			cursor:  query.Span{Offset: 2, Length: 4},
		},
		{
			name:    "discretionary hyphen in source",
			line:    `a hy\-phen b`,
			word:    "hy\u00adphen",
			context: "a hyphen b",
			spans:   []query.Span{{Offset: 2, Length: 8}},
			cursor:  query.Span{Offset: 2, Length: 8},
		},
		{
			name:    "unknown rune placeholder",
			line:    "un café noir",
			word:    "caf\ufffd",
			context: "un caf\ufffd noir",
			spans:   []query.Span{{Offset: 3, Length: 4}},
			cursor:  query.Span{Offset: 3, Length: 4},
		},
		{
			name:    "no match falls back to first non-space column",
			line:    "   \\section{Intro}",
			word:    "zebra",
			context: "a zebra",
			cursor:  query.Span{Offset: 3},
		},
		{
			name:    "empty word",
			line:    "\ttext",
			word:    "",
			context: "",
			cursor:  query.Span{Offset: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, cursor := MatchWord(tt.line, tt.word, tt.context)
			assert.Equal(t, tt.spans, spans)
			assert.Equal(t, tt.cursor, cursor)
		})
	}
}
