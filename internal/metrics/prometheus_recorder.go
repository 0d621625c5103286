package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "texbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	jobDuration   *prom.HistogramVec
	jobResults    *prom.CounterVec
	queryDuration prom.Histogram
	queryOutcome  *prom.CounterVec
	passes        prom.Histogram
	building      prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of individual jobs (engine passes, auxiliary tools, sync lookups)",
			Buckets:   prom.DefBuckets,
		}, []string{"job"}),
		jobResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_results_total",
			Help:      "Job result counts by outcome",
		}, []string{"job", "result"}),
		queryDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Total query duration from start to done",
			Buckets:   prom.DefBuckets,
		}),
		queryOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "query_outcomes_total",
			Help:      "Query outcomes by final status",
		}, []string{"outcome"}),
		passes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_passes",
			Help:      "Main engine passes needed per build",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		building: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "building",
			Help:      "1 while a query is in flight",
		}),
	}
	reg.MustRegister(pr.jobDuration, pr.jobResults, pr.queryDuration, pr.queryOutcome, pr.passes, pr.building)
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(job string, d time.Duration) {
	if p == nil {
		return
	}
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobResult(job string, result ResultLabel) {
	if p == nil {
		return
	}
	p.jobResults.WithLabelValues(job, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveQueryDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.queryDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncQueryOutcome(outcome QueryOutcome) {
	if p == nil {
		return
	}
	p.queryOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObservePasses(n int) {
	if p == nil {
		return
	}
	p.passes.Observe(float64(n))
}

func (p *PrometheusRecorder) SetBuilding(building bool) {
	if p == nil {
		return
	}
	if building {
		p.building.Set(1)
		return
	}
	p.building.Set(0)
}
