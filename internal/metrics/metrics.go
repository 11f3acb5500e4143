package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for channel checks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	channelsTotal *prometheus.CounterVec
	streamsTotal  *prometheus.CounterVec
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	activeWorkers prometheus.Gauge
}

// New creates and registers Prometheus metrics for channel checks.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelcheck_runs_total",
		Help: "Check runs by outcome (completed or cancelled)",
	}, []string{"outcome"})
	channelsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelcheck_channels_total",
		Help: "Channels reported, by final status (online, offline, errored)",
	}, []string{"status"})
	streamsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelcheck_streams_total",
		Help: "Stream verdicts by status",
	}, []string{"status"})
	probesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelcheck_probes_total",
		Help: "ffprobe invocations by result (ok or failed)",
	}, []string{"result"})
	probeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "channelcheck_probe_duration_seconds",
		Help:    "Wall time of ffprobe invocations",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10, 12},
	})
	activeWorkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "channelcheck_active_workers",
		Help: "Channels currently being checked",
	})

	registry.MustRegister(runsTotal, channelsTotal, streamsTotal, probesTotal, probeDuration, activeWorkers)

	return &Metrics{
		registry:      registry,
		runsTotal:     runsTotal,
		channelsTotal: channelsTotal,
		streamsTotal:  streamsTotal,
		probesTotal:   probesTotal,
		probeDuration: probeDuration,
		activeWorkers: activeWorkers,
	}
}

// IncRuns counts a finished run.
func (m *Metrics) IncRuns(cancelled bool) {
	if m == nil {
		return
	}
	outcome := "completed"
	if cancelled {
		outcome = "cancelled"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// IncChannel counts a reported channel. status is online, offline or errored.
func (m *Metrics) IncChannel(status string) {
	if m == nil {
		return
	}
	m.channelsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncStream(status string) {
	if m == nil {
		return
	}
	m.streamsTotal.WithLabelValues(status).Inc()
}

// ObserveProbe satisfies probe.Observer.
func (m *Metrics) ObserveProbe(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.probesTotal.WithLabelValues(result).Inc()
	m.probeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetActiveWorkers(n int) {
	if m == nil {
		return
	}
	m.activeWorkers.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
