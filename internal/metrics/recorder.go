package metrics

import "time"

// ResultLabel enumerates job result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// QueryOutcome is the final state of a query.
type QueryOutcome string

const (
	OutcomeSuccess  QueryOutcome = "success"  // PDF produced or sync resolved
	OutcomeErrors   QueryOutcome = "errors"   // finished with compile errors
	OutcomeFailed   QueryOutcome = "failed"   // terminal environment error
	OutcomeCanceled QueryOutcome = "canceled" // replaced or stopped
)

// Recorder defines observability hooks for the build engine.
type Recorder interface {
	ObserveJobDuration(job string, d time.Duration)
	IncJobResult(job string, result ResultLabel)
	ObserveQueryDuration(d time.Duration)
	IncQueryOutcome(outcome QueryOutcome)
	ObservePasses(n int)
	SetBuilding(building bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(string, time.Duration) {}
func (NoopRecorder) IncJobResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveQueryDuration(time.Duration)       {}
func (NoopRecorder) IncQueryOutcome(QueryOutcome)             {}
func (NoopRecorder) ObservePasses(int)                        {}
func (NoopRecorder) SetBuilding(bool)                         {}
