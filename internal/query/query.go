// Package query holds the build request model: one Query per build or sync
// attempt for one root document.
//
// A Query is mutated by the build worker and read by the poller on another
// goroutine, so each piece of state has its own lock. Result slots are written
// before MarkDone; a poller that observes IsDone sees every slot written
// before it.
package query

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
)

// Query is one build attempt. It is never reused across requests.
type Query struct {
	id       string
	rootFile string

	Build        BuildParams
	ForwardSync  ForwardSyncParams
	BackwardSync BackwardSyncParams

	jobsMu sync.Mutex
	jobs   []JobID

	// Worker-only bookkeeping, guarded anyway so tests and the HTTP status
	// endpoint can read it.
	bookMu       sync.Mutex
	rerunReasons map[string]struct{}
	ranOn        map[JobID]map[string]struct{}
	passes       int
	diagnostics  []diagnostics.LogItem
	toolDiags    []diagnostics.LogItem

	buildMu     sync.Mutex
	buildResult *BuildResult

	forwardMu     sync.Mutex
	forwardResult *ForwardSyncResult

	backwardMu     sync.Mutex
	backwardResult *BackwardSyncResult

	doneMu sync.Mutex
	done   bool
	doneCh chan struct{}
}

// New creates a query for rootFile with the given initial jobs.
// rootFile is made absolute; on failure it is kept as given.
func New(rootFile string, jobs ...JobID) *Query {
	if abs, err := filepath.Abs(rootFile); err == nil {
		rootFile = abs
	}
	return &Query{
		id:           uuid.NewString(),
		rootFile:     rootFile,
		jobs:         slices.Clone(jobs),
		rerunReasons: make(map[string]struct{}),
		ranOn:        make(map[JobID]map[string]struct{}),
		doneCh:       make(chan struct{}),
	}
}

// ID returns the query's unique identifier.
func (q *Query) ID() string { return q.id }

// RootFile returns the absolute path of the root document.
func (q *Query) RootFile() string { return q.rootFile }

// Dir returns the directory of the root document.
func (q *Query) Dir() string { return filepath.Dir(q.rootFile) }

// Stem returns the root document's basename without extension.
func (q *Query) Stem() string {
	base := filepath.Base(q.rootFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PDFPath returns the path of the PDF produced for the root document.
func (q *Query) PDFPath() string {
	return filepath.Join(q.Dir(), q.Stem()+".pdf")
}

// PushJobFront schedules id to run next.
func (q *Query) PushJobFront(id JobID) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	q.jobs = slices.Insert(q.jobs, 0, id)
}

// PopJob removes and returns the next job.
func (q *Query) PopJob() (JobID, bool) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	if len(q.jobs) == 0 {
		return "", false
	}
	id := q.jobs[0]
	q.jobs = q.jobs[1:]
	return id, true
}

// ClearJobs drops every pending job.
func (q *Query) ClearJobs() {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	q.jobs = nil
}

// HasJobs reports whether jobs are pending.
func (q *Query) HasJobs() bool {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	return len(q.jobs) > 0
}

// PendingJobs returns a copy of the pending jobs, for status reporting.
func (q *Query) PendingJobs() []JobID {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	return slices.Clone(q.jobs)
}

// RanOn reports whether the auxiliary tool behind job already processed name.
func (q *Query) RanOn(job JobID, name string) bool {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	_, ok := q.ranOn[job][name]
	return ok
}

// MarkRanOn records that the auxiliary tool behind job processed name.
func (q *Query) MarkRanOn(job JobID, name string) {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	set, ok := q.ranOn[job]
	if !ok {
		set = make(map[string]struct{})
		q.ranOn[job] = set
	}
	set[name] = struct{}{}
}

// HasRerunReasons reports whether every reason was already seen in this query.
func (q *Query) HasRerunReasons(reasons ...string) bool {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	for _, r := range reasons {
		if _, ok := q.rerunReasons[r]; !ok {
			return false
		}
	}
	return true
}

// AddRerunReasons grows the rerun reason set. The set never shrinks.
func (q *Query) AddRerunReasons(reasons ...string) {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	for _, r := range reasons {
		q.rerunReasons[r] = struct{}{}
	}
}

// RerunReasons returns the reasons seen so far, sorted.
func (q *Query) RerunReasons() []string {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	return slices.Sorted(maps.Keys(q.rerunReasons))
}

// BeginPass counts a main engine pass and returns its 1-based number.
func (q *Query) BeginPass() int {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	q.passes++
	return q.passes
}

// Passes returns the number of main engine passes started.
func (q *Query) Passes() int {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	return q.passes
}

// SetDiagnostics replaces the main engine diagnostics with those of the latest pass.
func (q *Query) SetDiagnostics(items []diagnostics.LogItem) {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	q.diagnostics = slices.Clone(items)
}

// AddToolDiagnostics appends diagnostics reported by an auxiliary tool.
func (q *Query) AddToolDiagnostics(items []diagnostics.LogItem) {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	q.toolDiags = append(q.toolDiags, items...)
}

// Diagnostics returns the main engine diagnostics followed by auxiliary tool
// diagnostics. A tool item naming a file the engine reported shares that
// file's index; other files are numbered after the engine's, in order of
// first appearance.
func (q *Query) Diagnostics() []diagnostics.LogItem {
	q.bookMu.Lock()
	defer q.bookMu.Unlock()
	out := make([]diagnostics.LogItem, 0, len(q.diagnostics)+len(q.toolDiags))
	out = append(out, q.diagnostics...)

	index := make(map[string]int)
	next := 0
	for _, it := range q.diagnostics {
		index[it.Filename] = it.FileIndex
		next = max(next, it.FileIndex+1)
	}
	for _, it := range q.toolDiags {
		i, ok := index[it.Filename]
		if !ok {
			i = next
			index[it.Filename] = i
			next++
		}
		it.FileIndex = i
		out = append(out, it)
	}
	return out
}

// ErrorCount returns the number of error diagnostics accumulated so far.
func (q *Query) ErrorCount() int {
	return diagnostics.Count(q.Diagnostics(), diagnostics.KindError)
}

// SetBuildResult fills the build result slot.
func (q *Query) SetBuildResult(r *BuildResult) {
	q.buildMu.Lock()
	defer q.buildMu.Unlock()
	q.buildResult = r
}

// BuildResult returns the build result slot.
func (q *Query) BuildResult() (*BuildResult, bool) {
	q.buildMu.Lock()
	defer q.buildMu.Unlock()
	return q.buildResult, q.buildResult != nil
}

// SetForwardSyncResult fills the forward sync result slot.
func (q *Query) SetForwardSyncResult(r *ForwardSyncResult) {
	q.forwardMu.Lock()
	defer q.forwardMu.Unlock()
	q.forwardResult = r
}

// ForwardSyncResult returns the forward sync result slot.
func (q *Query) ForwardSyncResult() (*ForwardSyncResult, bool) {
	q.forwardMu.Lock()
	defer q.forwardMu.Unlock()
	return q.forwardResult, q.forwardResult != nil
}

// SetBackwardSyncResult fills the backward sync result slot.
func (q *Query) SetBackwardSyncResult(r *BackwardSyncResult) {
	q.backwardMu.Lock()
	defer q.backwardMu.Unlock()
	q.backwardResult = r
}

// BackwardSyncResult returns the backward sync result slot.
func (q *Query) BackwardSyncResult() (*BackwardSyncResult, bool) {
	q.backwardMu.Lock()
	defer q.backwardMu.Unlock()
	return q.backwardResult, q.backwardResult != nil
}

// MarkDone flags the query as finished and closes Done. Idempotent.
func (q *Query) MarkDone() {
	q.doneMu.Lock()
	defer q.doneMu.Unlock()
	if q.done {
		return
	}
	q.done = true
	close(q.doneCh)
}

// IsDone reports whether the query finished.
func (q *Query) IsDone() bool {
	q.doneMu.Lock()
	defer q.doneMu.Unlock()
	return q.done
}

// Done is closed when the query finishes. It stays open for cancelled queries.
func (q *Query) Done() <-chan struct{} {
	return q.doneCh
}
