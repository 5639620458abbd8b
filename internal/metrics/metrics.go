// Package metrics registers the sync pipeline's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	EventsFetched *prometheus.CounterVec
	EventsStored  prometheus.Gauge
	SyncProgress  prometheus.Gauge
	LastSuccessTS prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concert",
			Name:      "sync_runs_total",
			Help:      "Number of sync runs by result",
		}, []string{"result"}),
		EventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concert",
			Name:      "events_fetched_total",
			Help:      "Number of events fetched per source",
		}, []string{"source"}),
		EventsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "concert",
			Name:      "events_stored",
			Help:      "Size of the persisted canonical event list",
		}),
		SyncProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "concert",
			Name:      "sync_progress_percent",
			Help:      "Weighted progress of the in-flight sync run",
		}),
		LastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "concert",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful sync run",
		}),
	}
	reg.MustRegister(m.RunsTotal, m.EventsFetched, m.EventsStored, m.SyncProgress, m.LastSuccessTS)
	return m
}
