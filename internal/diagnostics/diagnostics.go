// Package diagnostics defines the structured compile diagnostics produced by
// the log parser and carried in build results.
package diagnostics

// Kind classifies a diagnostic.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindBadbox  Kind = "badbox"
)

// UnknownLine marks a diagnostic whose source line is not stated in the log.
const UnknownLine = -1

// LogItem is one diagnostic attributed to a source file.
type LogItem struct {
	Kind      Kind   `json:"kind"`
	Category  string `json:"category,omitempty"` // e.g. "LaTeX", "Package hyperref"; empty when none
	Filename  string `json:"filename"`
	FileIndex int    `json:"file_index"`
	Line      int    `json:"line"`
	Text      string `json:"text"`
}

// Count returns how many items have the given kind.
func Count(items []LogItem, kind Kind) int {
	n := 0
	for _, it := range items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}
