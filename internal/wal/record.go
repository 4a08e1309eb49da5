// Package wal implements the Agent Core's Write-Ahead Log (SPEC_FULL.md
// §4.4): a durable, per-agent queue of pending envelopes with idempotency,
// retry counters, a backlog cap, and a bounded dead-letter bucket. Store is
// the interface the drain loop programs against; filestore provides the
// default, authoritative local implementation and pgstore an optional
// fleet-visible mirror.
package wal

import "context"

// MaxRecordLineBytes bounds a single segment-file line, comfortably above
// the largest possible serialized envelope (128 KiB, see envelope.MaxSize)
// plus JSON framing overhead.
const MaxRecordLineBytes = 256 * 1024

// State is a WAL record's position in its lifecycle.
type State string

const (
	StatePending    State = "PENDING"
	StateInFlight   State = "IN_FLIGHT"
	StateDelivered  State = "DELIVERED"
	StateDeadLetter State = "DEAD_LETTER"
)

// Record is one pending (or resolved) envelope in the WAL.
type Record struct {
	IdempotencyKey      string `json:"idempotency_key"`
	SerializedEnvelope  []byte `json:"serialized_envelope"`
	RetryCount          int    `json:"retry_count"`
	LastAttemptNS       uint64 `json:"last_attempt_ns"`
	CreatedNS           uint64 `json:"created_ns"`
	State               State  `json:"state"`
	DeadLetterReason    string `json:"dead_letter_reason,omitempty"`
}

// Store is the WAL's programmatic interface (spec.md §4.4 operations).
// Implementations must serialize Append and Drain behind a single-writer
// discipline: a single logical drainer is the norm, but concurrent callers
// must never see the same PENDING record handed out twice.
type Store interface {
	// Append writes a new PENDING record. If IdempotencyKey is already
	// present in any state, Append is a no-op success (idempotent write).
	// Enforces the backlog cap: on overflow it evicts the oldest PENDING
	// record and reports evicted=true.
	Append(ctx context.Context, r Record) (evicted bool, err error)

	// Drain returns up to batchSize PENDING records in FIFO order of
	// CreatedNS, atomically marking them IN_FLIGHT.
	Drain(ctx context.Context, batchSize int) ([]Record, error)

	// MarkDelivered transitions records to DELIVERED.
	MarkDelivered(ctx context.Context, keys []string) error

	// MarkRetry transitions records back to PENDING, incrementing
	// RetryCount and updating LastAttemptNS to nowNS.
	MarkRetry(ctx context.Context, keys []string, nowNS uint64) error

	// MarkInvalid moves records to the dead-letter bucket; they are never
	// retried.
	MarkInvalid(ctx context.Context, keys []string, reason string) error

	// RevertInFlight moves every IN_FLIGHT record back to PENDING. Called
	// once at startup to recover from a crash between drain and ack
	// (spec.md §4.4 crash-recovery invariant).
	RevertInFlight(ctx context.Context) (int, error)

	// Stats reports current counts for the agent_wal_* gauges.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats summarizes WAL occupancy for metrics.
type Stats struct {
	Pending     int
	InFlight    int
	DeadLetter  int
	SizeBytes   int64
	DroppedTotal uint64
}
