package query

import "git.home.luguber.info/inful/texbuilder/internal/diagnostics"

// ErrorKind is a terminal environment error surfaced verbatim to the caller.
type ErrorKind string

const (
	ErrorNone                  ErrorKind = ""
	ErrorInterpreterMissing    ErrorKind = "interpreter_missing"
	ErrorInterpreterNotWorking ErrorKind = "interpreter_not_working"
)

// BuildResult is the terminal outcome of the build jobs of a query.
type BuildResult struct {
	PDFFilename    string                `json:"pdf_filename,omitempty"` // empty when no PDF was produced
	HasSynctexFile bool                  `json:"has_synctex_file"`
	PageCount      int                   `json:"page_count,omitempty"`
	Diagnostics    []diagnostics.LogItem `json:"diagnostics,omitempty"`
	ErrorCount     int                   `json:"error_count"`
	Error          ErrorKind             `json:"error,omitempty"`
	ErrorArg       string                `json:"error_arg,omitempty"`
	Passes         int                   `json:"passes"`
}

// Failed reports whether the build hit a terminal environment error.
func (r *BuildResult) Failed() bool {
	return r != nil && r.Error != ErrorNone
}

// Rect is a highlight rectangle in PDF space as reported by synctex.
// H and V are the left edge and the baseline; the box extends Height above V.
type Rect struct {
	Page   int     `json:"page"`
	H      float64 `json:"h"`
	V      float64 `json:"v"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Top returns the upper edge of the rectangle.
func (r Rect) Top() float64 { return r.V - r.Height }

// ForwardSyncResult lists the PDF areas matching a source position.
// Error is set instead when synctex could not be run.
type ForwardSyncResult struct {
	Rectangles []Rect    `json:"rectangles"`
	Error      ErrorKind `json:"error,omitempty"`
	ErrorArg   string    `json:"error_arg,omitempty"`
}

func (r *ForwardSyncResult) Failed() bool {
	return r != nil && r.Error != ErrorNone
}

// Span is a rune range within one source line.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// BackwardSyncResult is the source location of a clicked PDF word.
type BackwardSyncResult struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"` // 0-based
	// Spans are the retained word matches in line order; the first one is highlighted.
	Spans []Span `json:"spans,omitempty"`
	// Cursor is the first span, or a zero-length span at the first
	// non-whitespace column when no match was good enough.
	Cursor Span `json:"cursor"`
	// Error is set, and every other field empty, when synctex could not be run.
	Error    ErrorKind `json:"error,omitempty"`
	ErrorArg string    `json:"error_arg,omitempty"`
}

func (r *BackwardSyncResult) Failed() bool {
	return r != nil && r.Error != ErrorNone
}
