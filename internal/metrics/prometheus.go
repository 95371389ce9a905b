package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

const (
	CommitSuccess = "success"
	CommitRetry   = "retry"
	CommitFailure = "failure"
)

// PrometheusCollector records lottery and job runner metrics. Vectors are
// created and registered on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	jobsStarted    prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	drawStudents   *prometheus.CounterVec
	skippedPins    *prometheus.CounterVec
	commitAttempts *prometheus.CounterVec
	commitDuration prometheus.Histogram
	queueDepth     prometheus.Gauge
	busyWorkers    prometheus.Gauge
	taskPanics     prometheus.Counter
}

// NewPrometheus uses prometheus.DefaultRegisterer when reg is nil and the
// "jobshadow" namespace when namespace is empty.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "jobshadow"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.jobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "jobs_started_total",
			Help:      "Lottery jobs accepted for execution.",
		})
		p.jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "jobs_finished_total",
			Help:      "Lottery jobs that reached a terminal status.",
		}, []string{"status"})
		p.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "job_duration_seconds",
			Help:      "Time from job start to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~100s
		}, []string{"status"})
		p.drawStudents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "students_total",
			Help:      "Students processed by completed draws, by outcome.",
		}, []string{"outcome"})
		p.skippedPins = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "skipped_pins_total",
			Help:      "Manual assignments the draw could not honour, by reason.",
		}, []string{"reason"})
		p.commitAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "commit_attempts_total",
			Help:      "Result commit attempts by result (success, retry, failure).",
		}, []string{"result"})
		p.commitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lottery",
			Name:      "commit_duration_seconds",
			Help:      "Duration of result commit attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		})
		p.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		})
		p.busyWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "busy_workers",
			Help:      "Workers currently executing a job.",
		})
		p.taskPanics = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "runner",
			Name:      "task_panics_total",
			Help:      "Jobs that panicked inside a worker.",
		})

		p.reg.MustRegister(p.jobsStarted)
		p.reg.MustRegister(p.jobsFinished)
		p.reg.MustRegister(p.jobDuration)
		p.reg.MustRegister(p.drawStudents)
		p.reg.MustRegister(p.skippedPins)
		p.reg.MustRegister(p.commitAttempts)
		p.reg.MustRegister(p.commitDuration)
		p.reg.MustRegister(p.queueDepth)
		p.reg.MustRegister(p.busyWorkers)
		p.reg.MustRegister(p.taskPanics)
	})
}

func (p *PrometheusCollector) RecordJobStarted() {
	p.ensureRegistered()
	p.jobsStarted.Inc()
}

func (p *PrometheusCollector) RecordJobFinished(status domain.JobStatus, d time.Duration) {
	p.ensureRegistered()
	p.jobsFinished.WithLabelValues(string(status)).Inc()
	p.jobDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordDraw(counts domain.JobCounts, skipped []domain.SkippedPin) {
	p.ensureRegistered()
	p.drawStudents.WithLabelValues("placed").Add(float64(counts.Placed))
	p.drawStudents.WithLabelValues("not_placed").Add(float64(counts.NotPlaced))
	p.drawStudents.WithLabelValues("no_choices").Add(float64(counts.NoChoices))
	for _, s := range skipped {
		p.skippedPins.WithLabelValues(string(s.Reason)).Inc()
	}
}

func (p *PrometheusCollector) RecordCommit(result string, d time.Duration) {
	p.ensureRegistered()
	p.commitAttempts.WithLabelValues(result).Inc()
	p.commitDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) SetQueueDepth(n int) {
	p.ensureRegistered()
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusCollector) SetBusyWorkers(n int) {
	p.ensureRegistered()
	p.busyWorkers.Set(float64(n))
}

func (p *PrometheusCollector) IncrementTaskPanics() {
	p.ensureRegistered()
	p.taskPanics.Inc()
}
