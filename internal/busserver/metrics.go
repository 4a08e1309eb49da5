package busserver

// Metrics is the narrow telemetry surface the server needs; internal/metrics
// implements it against the Prometheus collectors of spec.md §6. Kept as an
// interface here so busserver has no direct Prometheus dependency, following
// the teacher's convention of passing a logger/metrics collaborator into
// core types rather than reaching for package-level globals.
type Metrics interface {
	ReceivedTotal(source string)
	OKTotal(source string)
	RetryTotal(source, reason string)
	InvalidTotal(reason string)
	UnauthorizedTotal(reason string)
	DedupHit()
	Inflight(n int)
	Overload(on bool)
	ObserveLatencySeconds(seconds float64)
}

// NopMetrics discards everything; useful in tests.
type NopMetrics struct{}

func (NopMetrics) ReceivedTotal(string)             {}
func (NopMetrics) OKTotal(string)                   {}
func (NopMetrics) RetryTotal(string, string)        {}
func (NopMetrics) InvalidTotal(string)              {}
func (NopMetrics) UnauthorizedTotal(string)         {}
func (NopMetrics) DedupHit()                        {}
func (NopMetrics) Inflight(int)                     {}
func (NopMetrics) Overload(bool)                    {}
func (NopMetrics) ObserveLatencySeconds(float64)    {}
