package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AgentMetrics implements agent.Metrics against the Prometheus names of
// SPEC_FULL.md §6.
type AgentMetrics struct {
	eventsCollected *prometheus.CounterVec
	eventsRejected  *prometheus.CounterVec
	walAppended     prometheus.Counter
	walDropped      prometheus.Counter
	walSizeBytes    prometheus.Gauge
	walPending      prometheus.Gauge
	publishAttempts prometheus.Counter
	publishOK       prometheus.Counter
	publishRetry    *prometheus.CounterVec
	publishInvalid  prometheus.Counter
	publishUnauth   prometheus.Counter
	breakerState    *prometheus.GaugeVec
	sendLatSec      prometheus.Histogram
}

// NewAgentMetrics registers the agent collector family against Registry.
func NewAgentMetrics() *AgentMetrics {
	return &AgentMetrics{
		eventsCollected: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "agent_events_collected_total",
			Help: "Total events a probe produced and the core accepted into the WAL.",
		}, []string{"probe"}),
		eventsRejected: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "agent_events_rejected_total",
			Help: "Total probe events rejected before reaching the WAL, by reason.",
		}, []string{"probe", "reason"}),
		walAppended: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_wal_appended_total",
			Help: "Total records appended to the WAL.",
		}),
		walDropped: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_wal_dropped_total",
			Help: "Total records evicted on backlog-cap overflow.",
		}),
		walSizeBytes: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name: "agent_wal_size_bytes",
			Help: "Current on-disk WAL size in bytes.",
		}),
		walPending: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name: "agent_wal_pending",
			Help: "Current count of PENDING WAL records.",
		}),
		publishAttempts: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_publish_attempts_total",
			Help: "Total Publish calls issued to the Bus.",
		}),
		publishOK: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_publish_ok_total",
			Help: "Total Publish calls acknowledged OK.",
		}),
		publishRetry: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "agent_publish_retry_total",
			Help: "Total Publish calls that must be retried, by reason.",
		}, []string{"reason"}),
		publishInvalid: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_publish_invalid_total",
			Help: "Total Publish calls acknowledged INVALID.",
		}),
		publishUnauth: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "agent_publish_unauthorized_total",
			Help: "Total Publish calls acknowledged UNAUTHORIZED.",
		}),
		breakerState: promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "agent_breaker_state",
			Help: "1 for the circuit breaker's current state, 0 otherwise, labeled by state name.",
		}, []string{"state"}),
		sendLatSec: promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_send_latency_seconds",
			Help:    "Publish round-trip latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *AgentMetrics) EventsCollectedTotal(probe string) { m.eventsCollected.WithLabelValues(probe).Inc() }
func (m *AgentMetrics) EventsRejectedTotal(probe, reason string) {
	m.eventsRejected.WithLabelValues(probe, reason).Inc()
}
func (m *AgentMetrics) WALAppendedTotal()                   { m.walAppended.Inc() }
func (m *AgentMetrics) WALDroppedTotal()                    { m.walDropped.Inc() }
func (m *AgentMetrics) WALSizeBytes(n int64)                { m.walSizeBytes.Set(float64(n)) }
func (m *AgentMetrics) WALPending(n int)                    { m.walPending.Set(float64(n)) }
func (m *AgentMetrics) PublishAttemptsTotal()               { m.publishAttempts.Inc() }
func (m *AgentMetrics) PublishOKTotal()                     { m.publishOK.Inc() }
func (m *AgentMetrics) PublishRetryTotal(reason string)     { m.publishRetry.WithLabelValues(reason).Inc() }
func (m *AgentMetrics) PublishInvalidTotal()                { m.publishInvalid.Inc() }
func (m *AgentMetrics) PublishUnauthorizedTotal()           { m.publishUnauth.Inc() }
func (m *AgentMetrics) ObserveSendLatencySeconds(s float64) { m.sendLatSec.Observe(s) }

// BreakerState sets the named state's gauge to 1 and every other known
// state's gauge to 0, so a Prometheus query for agent_breaker_state always
// resolves to exactly one active series.
func (m *AgentMetrics) BreakerState(state string) {
	for _, s := range []string{"closed", "open", "half_open"} {
		if s == state {
			m.breakerState.WithLabelValues(s).Set(1)
		} else {
			m.breakerState.WithLabelValues(s).Set(0)
		}
	}
}
