package metrics

import (
	"github.com/avito-tech/gravure/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gravure"

type Metrics struct {
	jobsSubmitted prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsRunning   prometheus.Gauge
	queueDepth    prometheus.Gauge
	uploads       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted into the dispatch queue",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state",
		}, []string{"preset", "task", "state"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from job start to completion",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"preset", "task"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs currently executed by workers",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the dispatch queue",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Finished network uploads",
		}, []string{"scheme", "result"}),
	}

	reg.MustRegister(
		m.jobsSubmitted,
		m.jobsFinished,
		m.jobDuration,
		m.jobsRunning,
		m.queueDepth,
		m.uploads,
	)

	return m
}

func (m *Metrics) JobSubmitted(queueDepth int) {
	m.jobsSubmitted.Inc()
	m.queueDepth.Set(float64(queueDepth))
}

func (m *Metrics) JobStarted(queueDepth int) {
	m.jobsRunning.Inc()
	m.queueDepth.Set(float64(queueDepth))
}

// JobFinished records a terminal result. Cancelled jobs never started, so
// they do not touch the running gauge.
func (m *Metrics) JobFinished(res domain.Result) {
	m.jobsFinished.WithLabelValues(res.Preset, res.Task, string(res.State)).Inc()
	if res.State == domain.JobCancelled {
		return
	}
	m.jobsRunning.Dec()
	m.jobDuration.WithLabelValues(res.Preset, res.Task).Observe(res.Duration().Seconds())
}

func (m *Metrics) UploadFinished(scheme string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if scheme == "" {
		scheme = "invalid"
	}
	m.uploads.WithLabelValues(scheme, result).Inc()
}
