// Package metrics exposes Prometheus collectors for the watcher service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal           *prometheus.CounterVec
	fetchesTotal          *prometheus.CounterVec
	slotsNotifiedTotal    prometheus.Counter
	notifyDeliveriesTotal *prometheus.CounterVec
	evictedRecordsTotal   prometheus.Counter
	watchedEntities       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotwatcher_cycles_total",
				Help: "Total number of polling cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotwatcher_fetches_total",
				Help: "Total number of window fetches, labeled by status.",
			},
			[]string{"status"},
		)

		slotsNotifiedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "slotwatcher_slots_notified_total",
				Help: "Total number of new slots included in delivered notifications.",
			},
		)

		notifyDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotwatcher_notify_deliveries_total",
				Help: "Total notification delivery attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		evictedRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "slotwatcher_evicted_records_total",
				Help: "Total dedup records removed by retention eviction.",
			},
		)

		watchedEntities = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "slotwatcher_watched_entities",
				Help: "Number of entities configured for watching.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle increments the cycle counter for the given outcome
// ("ok" or "recovering").
func ObserveCycle(outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch increments the fetch counter for the given status
// ("ok", "http_error", or "transport_error").
func ObserveFetch(status string) {
	fetchesTotal.WithLabelValues(status).Inc()
}

// ObserveSlotsNotified adds the size of a delivered batch.
func ObserveSlotsNotified(count int) {
	if count > 0 {
		slotsNotifiedTotal.Add(float64(count))
	}
}

// ObserveDelivery increments the delivery counter ("delivered" or "failed").
func ObserveDelivery(outcome string) {
	notifyDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveEviction adds the number of records removed by a retention pass.
func ObserveEviction(count int64) {
	if count > 0 {
		evictedRecordsTotal.Add(float64(count))
	}
}

// SetWatchedEntities records the configured entity count.
func SetWatchedEntities(n int) {
	watchedEntities.Set(float64(n))
}
