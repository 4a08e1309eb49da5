// Package probes defines the modular collector contract (SPEC_FULL.md §6
// "Probe interface") and the per-variant payload validators the Agent Core
// applies before enqueuing an event. Each probe implementation is external
// to the core in spirit — internal/agent treats Probe as a black box that
// produces a closed set of tagged payload variants on a timer — but, unlike
// the distilled spec's duck-typed records, the payload set here is modeled
// as a tagged union (one Go type per telemetry kind) with its own validator,
// matching the teacher's preference for typed domain records over
// map[string]interface{} throughout core/session and pkg/did.
package probes

import (
	"context"
	"time"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
)

// Event is one candidate telemetry record produced by a probe, prior to
// envelope construction.
type Event struct {
	Variant         envelope.PayloadVariant
	Payload         []byte // opaque, probe-specific encoding of the typed record
	IdempotencyKey  string // probe-generated; stable for the same logical event
	OccurredAt      time.Time
}

// Probe is a modular collector producing events of one payload variant.
type Probe interface {
	// Name identifies the probe for metrics labels (agent_events_collected_total{probe=...}).
	Name() string

	// Variant is the payload variant this probe exclusively produces.
	Variant() envelope.PayloadVariant

	// Collect runs one collection cycle and returns candidate events.
	// Implementations should be non-blocking beyond their own I/O and
	// respect ctx cancellation.
	Collect(ctx context.Context) ([]Event, error)

	// Interval is the collection period this probe was configured with.
	// The Agent's collection loop does not read it: every probe is polled
	// on the loop's one shared collection_interval ticker.
	Interval() time.Duration
}

// Validator checks a closed set of per-variant structural rules (required
// fields non-empty, IP/port/hash/domain shape, numeric ranges) before an
// event is allowed into an envelope.
type Validator func(payload []byte) error

// Validators maps each variant to its closed-set validator. internal/agent
// looks up the validator by the event's declared Variant; an event whose
// variant has no registered validator is rejected with reason
// "unknown_variant".
var Validators = map[envelope.PayloadVariant]Validator{
	envelope.PayloadFlow:       ValidateFlow,
	envelope.PayloadProcess:    ValidateProcess,
	envelope.PayloadAuth:       ValidateAuth,
	envelope.PayloadDNS:        ValidateDNS,
	envelope.PayloadFileChange: ValidateFileChange,
	envelope.PayloadPeripheral: ValidatePeripheral,
}
