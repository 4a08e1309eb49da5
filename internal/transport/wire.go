package transport

import "github.com/eventbus-fabric/eventbus/internal/envelope"

// WireEnvelope is the JSON-framed representation of envelope.Envelope
// carried by both httprpc and wsrpc, matching the teacher's wireMessage
// shape in pkg/agent/transport/http and pkg/agent/transport/websocket.
type WireEnvelope struct {
	Version        string `json:"version"`
	TimestampNS    uint64 `json:"timestamp_ns"`
	IdempotencyKey string `json:"idempotency_key"`
	SourceIdentity string `json:"source_identity"`
	Variant        string `json:"variant"`
	Payload        []byte `json:"payload"`
	Signature      []byte `json:"signature"`
	PrevSignature  []byte `json:"prev_signature,omitempty"`
}

// WireAck is the JSON-framed representation of envelope.Ack.
type WireAck struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	BackoffHintMS int64  `json:"backoff_hint_ms,omitempty"`
}

// ToWireEnvelope converts an envelope.Envelope to its wire form.
func ToWireEnvelope(e *envelope.Envelope) *WireEnvelope {
	return &WireEnvelope{
		Version:        e.Version,
		TimestampNS:    e.TimestampNS,
		IdempotencyKey: e.IdempotencyKey,
		SourceIdentity: e.SourceIdentity,
		Variant:        string(e.Variant),
		Payload:        e.Payload,
		Signature:      e.Signature,
		PrevSignature:  e.PrevSignature,
	}
}

// FromWireEnvelope converts a wire envelope back to envelope.Envelope.
func FromWireEnvelope(w *WireEnvelope) *envelope.Envelope {
	return &envelope.Envelope{
		Version:        w.Version,
		TimestampNS:    w.TimestampNS,
		IdempotencyKey: w.IdempotencyKey,
		SourceIdentity: w.SourceIdentity,
		Variant:        envelope.PayloadVariant(w.Variant),
		Payload:        w.Payload,
		Signature:      w.Signature,
		PrevSignature:  w.PrevSignature,
	}
}

// ToWireAck converts an envelope.Ack to its wire form.
func ToWireAck(a *envelope.Ack) *WireAck {
	return &WireAck{
		Status:        string(a.Status),
		Reason:        a.Reason,
		BackoffHintMS: a.BackoffHintMS,
	}
}

// FromWireAck converts a wire ack back to envelope.Ack.
func FromWireAck(w *WireAck) *envelope.Ack {
	return &envelope.Ack{
		Status:        envelope.Status(w.Status),
		Reason:        w.Reason,
		BackoffHintMS: w.BackoffHintMS,
	}
}
