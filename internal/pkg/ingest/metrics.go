package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fetchTotal    *prometheus.CounterVec
	droppedLoads  *prometheus.CounterVec
	retriesQueued *prometheus.CounterVec
)

func init() {
	// source: primary, fallback, refresh; result: ok, error
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hpcdash",
			Subsystem: "ingest",
			Name:      "fetch_total",
			Help:      "Upstream fetch attempts by feed, source and result",
		},
		[]string{"feed", "source", "result"},
	)
	prometheus.MustRegister(fetchTotal)

	droppedLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hpcdash",
			Subsystem: "ingest",
			Name:      "dropped_loads_total",
			Help:      "Loads dropped because another load of the same feed was in flight",
		},
		[]string{"feed"},
	)
	prometheus.MustRegister(droppedLoads)

	retriesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hpcdash",
			Subsystem: "ingest",
			Name:      "retries_scheduled_total",
			Help:      "Retries scheduled after a failed load",
		},
		[]string{"feed"},
	)
	prometheus.MustRegister(retriesQueued)
}

func observeFetch(feed, source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fetchTotal.WithLabelValues(feed, source, result).Inc()
}
