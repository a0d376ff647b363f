package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "contextmem"

// Metrics are the Prometheus collectors shared by every store of a process.
// Series are labelled with the store name. A nil *Metrics records nothing.
type Metrics struct {
	Inserts          *prometheus.CounterVec
	Evictions        *prometheus.CounterVec
	EvictedEntries   *prometheus.CounterVec
	Retrievals       *prometheus.CounterVec
	ReturnedEntries  *prometheus.CounterVec
	PersistErrors    *prometheus.CounterVec
	RetrieveDuration *prometheus.HistogramVec
	Entries          *prometheus.GaugeVec
}

// NewMetrics creates the collectors. Register them with Collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inserts_total",
			Help:      "Entries inserted",
		}, []string{"store", "type"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Eviction passes run",
		}, []string{"store"}),
		EvictedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evicted_entries_total",
			Help:      "Entries removed by eviction",
		}, []string{"store"}),
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retrievals_total",
			Help:      "Ranked reads, by mode",
		}, []string{"store", "mode"}),
		ReturnedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "returned_entries_total",
			Help:      "Entries returned by ranked reads",
		}, []string{"store", "mode"}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "persistence_errors_total",
			Help:      "Snapshot load or save failures",
		}, []string{"store", "op"}),
		RetrieveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "retrieve_duration_seconds",
			Help:      "Time spent ranking a store",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"store", "mode"}),
		Entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "entries",
			Help:      "Entries currently held",
		}, []string{"store"}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Inserts,
		m.Evictions,
		m.EvictedEntries,
		m.Retrievals,
		m.ReturnedEntries,
		m.PersistErrors,
		m.RetrieveDuration,
		m.Entries,
	}
}

func (m *Metrics) inserted(store string, t ContextType) {
	if m == nil {
		return
	}
	m.Inserts.WithLabelValues(store, string(t)).Inc()
}

func (m *Metrics) evicted(store string, n int) {
	if m == nil {
		return
	}
	m.Evictions.WithLabelValues(store).Inc()
	m.EvictedEntries.WithLabelValues(store).Add(float64(n))
}

func (m *Metrics) retrieved(store, mode string, returned int, took time.Duration) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(store, mode).Inc()
	m.ReturnedEntries.WithLabelValues(store, mode).Add(float64(returned))
	m.RetrieveDuration.WithLabelValues(store, mode).Observe(took.Seconds())
}

func (m *Metrics) persistFailed(store, op string) {
	if m == nil {
		return
	}
	m.PersistErrors.WithLabelValues(store, op).Inc()
}

func (m *Metrics) size(store string, n int) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues(store).Set(float64(n))
}
