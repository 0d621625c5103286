// Package metrics records build engine metrics.
//
// Components receive a Recorder through their constructor options and fall
// back to NoopRecorder, so no call site needs a nil check:
//
//	sys := buildsystem.New(buildsystem.Options{
//	    Recorder: metrics.NewPrometheusRecorder(registry),
//	})
//
// PrometheusRecorder is activated by the watch daemon, which also serves the
// registry on /metrics via HTTPHandler.
package metrics
