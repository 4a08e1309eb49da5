package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusMetrics implements busserver.Metrics against the Prometheus names of
// SPEC_FULL.md §6.
type BusMetrics struct {
	received      *prometheus.CounterVec
	ok            *prometheus.CounterVec
	retry         *prometheus.CounterVec
	invalid       *prometheus.CounterVec
	unauthorized  *prometheus.CounterVec
	inflight      prometheus.Gauge
	overload      prometheus.Gauge
	dedupHits     prometheus.Counter
	dedupCacheSz  prometheus.Gauge
	publishLatSec prometheus.Histogram
}

// NewBusMetrics registers the bus collector family against Registry.
func NewBusMetrics() *BusMetrics {
	return &BusMetrics{
		received: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_received_total",
			Help: "Total envelopes received, before any validation.",
		}, []string{"source"}),
		ok: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_ok_total",
			Help: "Total envelopes acknowledged OK.",
		}, []string{"source"}),
		retry: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_retry_total",
			Help: "Total envelopes acknowledged RETRY, by reason.",
		}, []string{"source", "reason"}),
		invalid: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_invalid_total",
			Help: "Total envelopes acknowledged INVALID, by reason.",
		}, []string{"reason"}),
		unauthorized: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "bus_messages_unauthorized_total",
			Help: "Total envelopes acknowledged UNAUTHORIZED, by reason.",
		}, []string{"reason"}),
		inflight: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name: "bus_inflight_messages",
			Help: "Current in-flight request count admitted by the admission controller.",
		}),
		overload: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name: "bus_overload_mode",
			Help: "1 if the admission controller is latched into overload, else 0.",
		}),
		dedupHits: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "bus_dedup_hits_total",
			Help: "Total requests short-circuited by dedup cache hit.",
		}),
		dedupCacheSz: promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
			Name: "bus_dedup_cache_size",
			Help: "Current dedup cache entry count.",
		}),
		publishLatSec: promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "bus_publish_latency_seconds",
			Help:    "HandlePublish latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *BusMetrics) ReceivedTotal(source string)               { m.received.WithLabelValues(source).Inc() }
func (m *BusMetrics) OKTotal(source string)                      { m.ok.WithLabelValues(source).Inc() }
func (m *BusMetrics) RetryTotal(source, reason string)           { m.retry.WithLabelValues(source, reason).Inc() }
func (m *BusMetrics) InvalidTotal(reason string)                 { m.invalid.WithLabelValues(reason).Inc() }
func (m *BusMetrics) UnauthorizedTotal(reason string)            { m.unauthorized.WithLabelValues(reason).Inc() }
func (m *BusMetrics) DedupHit()                                  { m.dedupHits.Inc() }
func (m *BusMetrics) Inflight(n int)                             { m.inflight.Set(float64(n)) }
func (m *BusMetrics) SetDedupCacheSize(n int)                    { m.dedupCacheSz.Set(float64(n)) }
func (m *BusMetrics) ObserveLatencySeconds(seconds float64)      { m.publishLatSec.Observe(seconds) }

func (m *BusMetrics) Overload(on bool) {
	if on {
		m.overload.Set(1)
		return
	}
	m.overload.Set(0)
}
