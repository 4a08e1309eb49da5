// Package metrics wires the Prometheus collectors named in SPEC_FULL.md §6
// for both the EventBus Server and the Agent, registered against a single
// process-wide registry served by promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the process-wide collector registry. Both BusMetrics and
// AgentMetrics register against it; cmd/eventbus and cmd/agent each use
// only the half relevant to their process.
var Registry = prometheus.NewRegistry()
