// Package metrics holds the client's named metric hook points. Collectors
// register into component-base's legacy registry so they surface alongside
// the rest of a process's Kubernetes metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/component-base/metrics/legacyregistry"
)

var (
	requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubewire_request_total",
		Help: "Number of API requests, by verb and HTTP status code.",
	}, []string{"verb", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kubewire_request_duration_seconds",
		Help:    "Latency of API requests, by verb.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"verb"})

	watchReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kubewire_watch_reconnects_total",
		Help: "Number of watch stream reconnect attempts.",
	})

	watchEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubewire_watch_events_total",
		Help: "Number of watch events delivered, by event type.",
	}, []string{"type"})
)

func init() {
	for _, c := range []prometheus.Collector{requestTotal, requestDuration, watchReconnects, watchEvents} {
		legacyregistry.RawMustRegister(c)
	}
}

// ObserveRequest records one request-response, streaming requests (watch,
// logs) included; for those the duration ends at the response headers. code
// is zero for requests that failed below the HTTP layer.
func ObserveRequest(verb string, code int, elapsed time.Duration) {
	requestTotal.WithLabelValues(verb, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// ObserveWatchReconnect records one watch reconnect attempt.
func ObserveWatchReconnect() {
	watchReconnects.Inc()
}

// ObserveWatchEvent records one delivered watch event.
func ObserveWatchEvent(eventType string) {
	watchEvents.WithLabelValues(eventType).Inc()
}
