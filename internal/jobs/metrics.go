package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobObserver counts finished jobs. observability.Metrics implements it.
type JobObserver interface {
	ObserveJob(taskType string, err error)
}

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	duration *prometheus.HistogramVec
	observer JobObserver
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job duration histogram against the provided
// registerer. When the registerer is nil the default Prometheus registerer is
// used. observer may be nil.
func NewMetrics(registerer prometheus.Registerer, observer JobObserver) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer, nil)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer, observer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the run duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if t.metrics.observer != nil {
		t.metrics.observer.ObserveJob(t.job, err)
	}
	return err
}

func buildMetrics(registerer prometheus.Registerer, observer JobObserver) *Metrics {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pms_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	registerer.MustRegister(duration)
	return &Metrics{duration: duration, observer: observer}
}
