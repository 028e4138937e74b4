package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics captures monthly batch health signals.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	jobSkipped  *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	schedulerOnce sync.Once
	scheduler     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		scheduler = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return scheduler
}

func newSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upline_scheduler_job_runs_total",
			Help: "Scheduler job runs by name.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upline_scheduler_job_errors_total",
			Help: "Scheduler job failures by name.",
		}, []string{"job"}),
		jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upline_scheduler_job_skipped_total",
			Help: "Scheduler jobs skipped by idempotency guard or lock.",
		}, []string{"job", "reason"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upline_scheduler_job_duration_seconds",
			Help:    "Scheduler job latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"job"}),
	}

	registerer.MustRegister(m.jobRuns, m.jobErrors, m.jobSkipped, m.jobDuration)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobSkipped(job, reason string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job, reason).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
