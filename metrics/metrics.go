// Package metrics records sync outcomes as Prometheus metrics. A run is a
// batch job, so the registry is written to a node_exporter textfile rather
// than served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sandeepkandula/archivesync/sync"
)

const namespace = "archivesync"

// Recorder accumulates metrics for sync runs.
type Recorder struct {
	registry *prometheus.Registry

	folders     prometheus.Counter
	fetched     prometheus.Counter
	skipped     prometheus.Counter
	overwritten prometheus.Counter
	failures    *prometheus.CounterVec

	lastRun      prometheus.Gauge
	lastDuration prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		folders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folders_entered_total",
			Help:      "Remote folders descended into.",
		}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_fetched_total",
			Help:      "Selected files stored in the destination.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Files not selected, including entries of unknown kind.",
		}),
		overwritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_overwritten_total",
			Help:      "Fetched files that replaced a same-named file from the same run.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Entries that could not be processed, by kind.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run finished without failures or cancellation.",
		}),
	}
	r.registry.MustRegister(
		r.folders, r.fetched, r.skipped, r.overwritten, r.failures,
		r.lastRun, r.lastDuration, r.lastSuccess,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe adds one finished run.
func (r *Recorder) Observe(out sync.Outcome, elapsed time.Duration, finished time.Time) {
	r.folders.Add(float64(out.FoldersEntered))
	r.fetched.Add(float64(out.FilesFetched))
	r.skipped.Add(float64(out.FilesSkipped))
	r.overwritten.Add(float64(out.Overwritten))
	for _, f := range out.Failures {
		r.failures.WithLabelValues(f.Kind()).Inc()
	}

	r.lastRun.Set(float64(finished.Unix()))
	r.lastDuration.Set(elapsed.Seconds())
	if len(out.Failures) == 0 && !out.Canceled {
		r.lastSuccess.Set(1)
	} else {
		r.lastSuccess.Set(0)
	}
}

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
