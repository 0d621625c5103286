package query

// JobID identifies which builder handles a queued job.
type JobID string

const (
	JobBuildLatex      JobID = "build_latex"
	JobBuildBibtex     JobID = "build_bibtex"
	JobBuildBiber      JobID = "build_biber"
	JobBuildMakeindex  JobID = "build_makeindex"
	JobBuildGlossaries JobID = "build_glossaries"
	JobForwardSync     JobID = "forward_sync"
	JobBackwardSync    JobID = "backward_sync"
)

// Valid reports whether id names a known job.
func (id JobID) Valid() bool {
	switch id {
	case JobBuildLatex, JobBuildBibtex, JobBuildBiber, JobBuildMakeindex,
		JobBuildGlossaries, JobForwardSync, JobBackwardSync:
		return true
	}
	return false
}
