// Package envelope defines the Envelope wire type — the unit of transport
// between Agent and EventBus — its deterministic canonical byte
// representation, and Ed25519/secp256k1 signing over that representation.
package envelope

// MaxSize is the maximum serialized envelope size. Exceeding it makes an
// envelope INVALID with reason "oversize".
const MaxSize = 128 * 1024

// MaxIdempotencyKeyLen is the maximum length, in bytes, of IdempotencyKey.
const MaxIdempotencyKeyLen = 128

// Version identifies the current envelope format.
const Version = "v1"

// PayloadVariant tags the closed set of telemetry payload kinds a probe may
// produce. The core treats Payload as opaque bytes for transport and size
// enforcement; only internal/probes interprets the contents.
type PayloadVariant string

const (
	PayloadFlow       PayloadVariant = "flow"
	PayloadProcess    PayloadVariant = "process"
	PayloadAuth       PayloadVariant = "auth"
	PayloadDNS        PayloadVariant = "dns"
	PayloadFileChange PayloadVariant = "file_change"
	PayloadPeripheral PayloadVariant = "peripheral"
)

// Envelope is the signed unit of transport. Only Signature is excluded from
// the canonical byte representation computed by Canonicalize; Signature is
// computed over that representation. PrevSignature is part of the signed
// canonical bytes, but the core never checks it against an earlier
// envelope.
type Envelope struct {
	Version        string
	TimestampNS    uint64
	IdempotencyKey string
	SourceIdentity string
	Variant        PayloadVariant
	Payload        []byte
	Signature      []byte // 64 bytes, Ed25519; absent until Sign is called
	PrevSignature  []byte // optional, 64 bytes
}

// Size returns the approximate wire size used for the 128 KiB bound: the
// canonical bytes plus the signature.
func (e *Envelope) Size() int {
	return len(Canonicalize(e)) + len(e.Signature)
}

// Status is the result of a Publish/PublishStream call, carried on the Ack.
type Status string

const (
	StatusOK           Status = "OK"
	StatusRetry        Status = "RETRY"
	StatusInvalid      Status = "INVALID"
	StatusUnauthorized Status = "UNAUTHORIZED"
)

// Ack is the EventBus's reply to a Publish call.
type Ack struct {
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
	BackoffHintMS int64  `json:"backoff_hint_ms,omitempty"`
}
