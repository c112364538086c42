package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ozxc44/queue-monitor-dev/internal/queue"
)

type Exporter struct {
	metricsPrefix string

	waiting  *prometheus.GaugeVec
	active   *prometheus.GaugeVec
	delayed  *prometheus.GaugeVec
	failed   *prometheus.GaugeVec
	workers  *prometheus.GaugeVec
	depth    *prometheus.GaugeVec
	sampled  *prometheus.GaugeVec
	lastPoll prometheus.Gauge

	alerts           *prometheus.CounterVec
	suppressed       *prometheus.CounterVec
	samplerErrors    *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
}

// NewExporter registers the queue metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewExporter(prefix string, reg prometheus.Registerer) *Exporter {
	if prefix == "" {
		prefix = "queue_monitor"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	queueGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_" + name,
			Help: help,
		}, []string{"queue"})
	}

	e := &Exporter{
		metricsPrefix: prefix,
		waiting:       queueGauge("queue_waiting_jobs", "Jobs waiting to be picked up"),
		active:        queueGauge("queue_active_jobs", "Jobs currently being processed"),
		delayed:       queueGauge("queue_delayed_jobs", "Jobs scheduled or deferred"),
		failed:        queueGauge("queue_failed_jobs", "Jobs in the failed registry"),
		workers:       queueGauge("queue_workers", "Live workers serving the queue"),
		depth:         queueGauge("queue_depth", "Waiting + active + delayed jobs"),
		sampled:       queueGauge("queue_last_sample_timestamp", "Unix timestamp of the last successful sample"),
		lastPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_last_poll_timestamp",
			Help: "Unix timestamp of the last completed poll cycle",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_total",
			Help: "Alerts fired",
		}, []string{"queue", "kind", "severity"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_suppressed_total",
			Help: "Triggered conditions suppressed by cooldown",
		}, []string{"queue", "kind"}),
		samplerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_sampler_errors_total",
			Help: "Failed queue samples",
		}, []string{"queue"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_dispatch_failures_total",
			Help: "Alerts that could not be delivered to every channel",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		e.waiting,
		e.active,
		e.delayed,
		e.failed,
		e.workers,
		e.depth,
		e.sampled,
		e.lastPoll,
		e.alerts,
		e.suppressed,
		e.samplerErrors,
		e.dispatchFailures,
	)

	return e
}

func (e *Exporter) ObserveSample(s queue.Sample) {
	labels := prometheus.Labels{"queue": s.Queue}
	e.waiting.With(labels).Set(float64(s.Waiting))
	e.active.With(labels).Set(float64(s.Active))
	e.delayed.With(labels).Set(float64(s.Delayed))
	e.failed.With(labels).Set(float64(s.Failed))
	e.workers.With(labels).Set(float64(s.Workers))
	e.depth.With(labels).Set(float64(s.Depth()))
	if !s.SampledAt.IsZero() {
		e.sampled.With(labels).Set(float64(s.SampledAt.Unix()))
	}
}

func (e *Exporter) ObserveSamplerError(queueName string) {
	e.samplerErrors.WithLabelValues(queueName).Inc()
}

func (e *Exporter) ObserveAlert(queueName, kind, severity string) {
	e.alerts.WithLabelValues(queueName, kind, severity).Inc()
}

func (e *Exporter) ObserveSuppressed(queueName, kind string) {
	e.suppressed.WithLabelValues(queueName, kind).Inc()
}

func (e *Exporter) ObserveDispatchFailure(kind string) {
	e.dispatchFailures.WithLabelValues(kind).Inc()
}

func (e *Exporter) ObservePoll(at time.Time) {
	e.lastPoll.Set(float64(at.Unix()))
}
