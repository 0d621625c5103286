package logparser

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/diagnostics"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

// Rerun reason ids. Each justifies one more main engine pass.
const (
	ReasonOutChanged          = "out_changed"
	ReasonRerunLatex          = "rerun_latex"
	ReasonLabelsChanged       = "labels_changed"
	ReasonUndefinedReferences = "undefined_references"
	ReasonCitationsChanged    = "citations_changed"
	ReasonMissingTOC          = "missing_toc"
	ReasonMissingAux          = "missing_aux"
)

var (
	rerunBiberRe  = regexp.MustCompile(`Please \(?re\)?run Biber`)
	rerunBibtexRe = regexp.MustCompile(`Please \(?re\)?run BibTeX`)
	outChangedRe  = regexp.MustCompile(`\.out'? has changed`)
	missingTOCRe  = regexp.MustCompile(`No file \S+\.toc\.`)
	missingAuxRe  = regexp.MustCompile(`No file \S+\.aux\.`)
)

var rerunTriggers = []struct {
	reason  string
	matches func(string) bool
}{
	{ReasonOutChanged, outChangedRe.MatchString},
	{ReasonRerunLatex, containsAny("Please rerun LaTeX", "Rerun to get", "Rerun LaTeX")},
	{ReasonLabelsChanged, containsAny("Label(s) may have changed")},
	{ReasonUndefinedReferences, containsAny("undefined references")},
	{ReasonCitationsChanged, containsAny("Citation(s) may have changed")},
	{ReasonMissingTOC, missingTOCRe.MatchString},
	{ReasonMissingAux, missingAuxRe.MatchString},
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// NextJobs decides what the build needs after a main engine pass. It returns
// at most one job, chosen by priority biber > bibtex > makeindex > glossaries
// > another engine pass. An engine pass is only requested when at least one
// of its reasons has not been seen before in q; the new reasons are recorded
// in q. An empty result means the build converged.
func NextJobs(items []diagnostics.LogItem, q *query.Query) []query.JobID {
	stem := q.Stem()
	var (
		biber, bibtex, makeindex, glossaries bool
		reasons                              []string
		seen                                 = make(map[string]bool)
	)

	for _, item := range items {
		if item.Kind == diagnostics.KindBadbox {
			continue
		}
		text := item.Text
		if rerunBiberRe.MatchString(text) {
			biber = true
		}
		if rerunBibtexRe.MatchString(text) || strings.Contains(text, "No file "+stem+".bbl.") {
			bibtex = true
		}
		if strings.Contains(text, "No file "+stem+".ind.") {
			makeindex = true
		}
		if strings.Contains(text, "No file "+stem+".gls.") || strings.Contains(text, "No file "+stem+".acr.") {
			glossaries = true
		}
		for _, t := range rerunTriggers {
			if !seen[t.reason] && t.matches(text) {
				seen[t.reason] = true
				reasons = append(reasons, t.reason)
			}
		}
	}

	switch {
	case biber && !q.RanOn(query.JobBuildBiber, stem):
		return []query.JobID{query.JobBuildBiber}
	case bibtex && !q.RanOn(query.JobBuildBibtex, stem):
		return []query.JobID{query.JobBuildBibtex}
	case makeindex && !q.RanOn(query.JobBuildMakeindex, stem):
		return []query.JobID{query.JobBuildMakeindex}
	case glossaries && !q.RanOn(query.JobBuildGlossaries, stem):
		return []query.JobID{query.JobBuildGlossaries}
	}

	if len(reasons) == 0 || q.HasRerunReasons(reasons...) {
		return nil
	}
	q.AddRerunReasons(reasons...)
	return []query.JobID{query.JobBuildLatex}
}
