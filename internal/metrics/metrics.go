package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type PresenceMetrics struct {
	WatchedAccounts  prometheus.Gauge
	LiveConnections  prometheus.Gauge
	StaleEntries     prometheus.Counter
	Transitions      *prometheus.CounterVec // labels: status
	DeferredEvents   prometheus.Counter
	GridCallFailures *prometheus.CounterVec // labels: call
	HubMessages      *prometheus.CounterVec // labels: type
}

func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	m := &PresenceMetrics{
		WatchedAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radegast_watched_accounts",
			Help: "Accounts with at least one attached connection.",
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radegast_live_connections",
			Help: "Connections watching at least one account.",
		}),
		StaleEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radegast_stale_entries_removed_total",
			Help: "Tracking entries removed by the stale connection sweep.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radegast_presence_transitions_total",
			Help: "Presence status transitions by resulting status.",
		}, []string{"status"}),
		DeferredEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radegast_presence_events_deferred_total",
			Help: "Status change events held back because the outbound queue was full.",
		}),
		GridCallFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radegast_grid_call_failures_total",
			Help: "Failed best-effort grid animation calls.",
		}, []string{"call"}),
		HubMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radegast_hub_messages_total",
			Help: "Inbound hub messages by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.WatchedAccounts, m.LiveConnections, m.StaleEntries, m.Transitions, m.DeferredEvents, m.GridCallFailures, m.HubMessages)
	return m
}

// NewNopMetrics returns metrics registered on a throwaway registry.
func NewNopMetrics() *PresenceMetrics {
	return NewPresenceMetrics(prometheus.NewRegistry())
}
