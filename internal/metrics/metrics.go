// Package metrics exposes Prometheus instrumentation for the progress engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vytor/kotoflash/internal/models"
)

const namespace = "kotoflash"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pushAttempts     prometheus.Counter
	pushResults      *prometheus.CounterVec
	localWrites      *prometheus.CounterVec
	remoteUpdates    *prometheus.CounterVec
	degraded         prometheus.Gauge
	dueItems         prometheus.Gauge
	mutationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pushAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "push_attempts_total",
			Help:      "Remote push attempts, including retries",
		}),
		// Labels: result (success, failure, exhausted)
		pushResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "push_results_total",
			Help:      "Remote push outcomes",
		}, []string{"result"}),
		// Labels: status (ok, error)
		localWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "local_store",
			Name:      "writes_total",
			Help:      "Snapshot writes to the local store",
		}, []string{"status"}),
		// Labels: outcome (applied, ignored)
		remoteUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "remote_updates_total",
			Help:      "Remote change notifications by outcome",
		}, []string{"outcome"}),
		degraded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "degraded",
			Help:      "1 while remote sync is degraded after exhausted retries",
		}),
		dueItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "due_items",
			Help:      "Items due for review at the last report",
		}),
		// Labels: op, status (ok, error)
		mutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "mutation_duration_seconds",
			Help:      "Latency of progress mutations including the local write",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PushAttempted() {
	if m == nil {
		return
	}
	m.pushAttempts.Inc()
}

func (m *Metrics) PushFinished(outcome models.SyncOutcome) {
	if m == nil {
		return
	}
	m.pushResults.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) LocalWrite(err error) {
	if m == nil {
		return
	}
	m.localWrites.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) RemoteUpdate(outcome models.SyncOutcome) {
	if m == nil {
		return
	}
	m.remoteUpdates.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}

func (m *Metrics) SetDueItems(n int) {
	if m == nil {
		return
	}
	m.dueItems.Set(float64(n))
}

func (m *Metrics) ObserveMutation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.mutationDuration.WithLabelValues(op, status(err)).Observe(time.Since(start).Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
