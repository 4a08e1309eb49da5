package agent

// Metrics decouples the Agent Core from any concrete metrics backend,
// mirroring busserver.Metrics's role on the server side.
type Metrics interface {
	EventsCollectedTotal(probe string)
	EventsRejectedTotal(probe, reason string)
	WALAppendedTotal()
	WALDroppedTotal()
	WALSizeBytes(n int64)
	WALPending(n int)
	PublishAttemptsTotal()
	PublishOKTotal()
	PublishRetryTotal(reason string)
	PublishInvalidTotal()
	PublishUnauthorizedTotal()
	BreakerState(state string)
	ObserveSendLatencySeconds(seconds float64)
}

// NopMetrics discards every observation. Used in tests and whenever the
// agent is wired without Prometheus.
type NopMetrics struct{}

func (NopMetrics) EventsCollectedTotal(string)       {}
func (NopMetrics) EventsRejectedTotal(string, string) {}
func (NopMetrics) WALAppendedTotal()                 {}
func (NopMetrics) WALDroppedTotal()                  {}
func (NopMetrics) WALSizeBytes(int64)                {}
func (NopMetrics) WALPending(int)                    {}
func (NopMetrics) PublishAttemptsTotal()             {}
func (NopMetrics) PublishOKTotal()                   {}
func (NopMetrics) PublishRetryTotal(string)          {}
func (NopMetrics) PublishInvalidTotal()              {}
func (NopMetrics) PublishUnauthorizedTotal()         {}
func (NopMetrics) BreakerState(string)               {}
func (NopMetrics) ObserveSendLatencySeconds(float64) {}
