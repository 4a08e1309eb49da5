// Package agent implements the Agent Core (SPEC_FULL.md §4.6): a per-cycle
// collection loop that runs probes, validates and signs the resulting
// envelopes into the WAL, and an independent drain loop that ships PENDING
// records to the EventBus through a circuit breaker, interpreting each Ack
// into the matching WAL transition. Collection and draining are
// deliberately decoupled — a stalled EventBus should never block collection
// — grounded on the teacher's core/session.Manager separation of message
// construction from transport delivery.
package agent

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eventbus-fabric/eventbus/internal/breaker"
	"github.com/eventbus-fabric/eventbus/internal/confidential"
	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/keys"
	"github.com/eventbus-fabric/eventbus/internal/logger"
	"github.com/eventbus-fabric/eventbus/internal/probes"
	"github.com/eventbus-fabric/eventbus/internal/transport"
	"github.com/eventbus-fabric/eventbus/internal/wal"
	"github.com/eventbus-fabric/eventbus/internal/wal/pgstore"
)

// Config controls the Agent Core's scheduling and delivery parameters.
type Config struct {
	BatchSize     int
	SendTimeout   time.Duration
	SendInterval  time.Duration // minimum spacing between sends; 0 disables pacing (send_rate)
	Backoff       BackoffConfig
	ShutdownGrace time.Duration
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		SendTimeout:   10 * time.Second,
		Backoff:       DefaultBackoffConfig(),
		ShutdownGrace: 10 * time.Second,
	}
}

// Agent is the collection+delivery core run by cmd/agent.
type Agent struct {
	cfg            Config
	sourceIdentity string
	kp             keys.KeyPair
	probeSet       []probes.Probe
	wal            wal.Store
	rpc            transport.RPC
	breaker        *breaker.Breaker
	metrics        Metrics
	log            logger.Logger
	now            func() time.Time
	rnd            *rand.Rand

	// sealPayloadsFor, when non-nil, is the Bus's Ed25519 identity public
	// key. Every envelope's payload is sealed against it (SPEC_FULL.md
	// §4.11 Stream Handshake) before the envelope is signed.
	sealPayloadsFor ed25519.PublicKey

	// pg, when non-nil, mirrors every WAL record transition into Postgres
	// alongside the authoritative filestore write (SPEC_FULL.md §2 item 16).
	pg *pgstore.Mirror
}

// New assembles an Agent from its collaborators.
func New(sourceIdentity string, kp keys.KeyPair, probeSet []probes.Probe, store wal.Store, rpc transport.RPC, br *breaker.Breaker, metrics Metrics, log logger.Logger) *Agent {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Agent{
		cfg:            DefaultConfig(),
		sourceIdentity: sourceIdentity,
		kp:             kp,
		probeSet:       probeSet,
		wal:            store,
		rpc:            rpc,
		breaker:        br,
		metrics:        metrics,
		log:            log,
		now:            time.Now,
		rnd:            rand.New(rand.NewSource(1)),
	}
}

// WithConfig overrides the default scheduling parameters.
func (a *Agent) WithConfig(cfg Config) *Agent {
	a.cfg = cfg
	return a
}

// WithConfidentiality enables the Stream Handshake: every collected
// envelope's payload is sealed against busPub before signing, and the Bus
// is expected to reverse it with the matching private key (SPEC_FULL.md
// §4.11). A nil busPub is a no-op.
func (a *Agent) WithConfidentiality(busPub ed25519.PublicKey) *Agent {
	a.sealPayloadsFor = busPub
	return a
}

// WithPostgresMirror enables best-effort Postgres mirroring of WAL record
// transitions alongside the authoritative filestore writes.
func (a *Agent) WithPostgresMirror(m *pgstore.Mirror) *Agent {
	a.pg = m
	return a
}

// CollectOnce runs one collection cycle across every configured probe
// (spec.md §4.6 per-cycle behavior, steps 1-6): collect, validate, enrich,
// construct, sign, append. Probes are fanned out concurrently via
// errgroup so one slow probe's I/O does not delay the others' cycle; the
// WAL append that follows is safe for concurrent callers (spec.md §7.1).
func (a *Agent) CollectOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.probeSet {
		p := p
		g.Go(func() error {
			events, err := p.Collect(gctx)
			if err != nil {
				a.log.Warn("probe collection failed", logger.String("probe", p.Name()), logger.Error(err))
				return nil
			}
			for _, ev := range events {
				if err := a.ingest(gctx, p.Name(), ev); err != nil {
					a.log.Warn("event rejected", logger.String("probe", p.Name()), logger.Error(err))
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *Agent) ingest(ctx context.Context, probeName string, ev probes.Event) error {
	validate, ok := probes.Validators[ev.Variant]
	if !ok {
		a.metrics.EventsRejectedTotal(probeName, "unknown_variant")
		return fmt.Errorf("agent: no validator registered for variant %q", ev.Variant)
	}
	if err := validate(ev.Payload); err != nil {
		a.metrics.EventsRejectedTotal(probeName, "invalid_payload")
		return err
	}

	key := ev.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	payload := ev.Payload
	if a.sealPayloadsFor != nil {
		sealed, err := confidential.Seal(a.sealPayloadsFor, payload)
		if err != nil {
			return fmt.Errorf("agent: seal payload: %w", err)
		}
		payload = sealed
	}

	e := &envelope.Envelope{
		Version:        envelope.Version,
		TimestampNS:    uint64(a.now().UnixNano()),
		IdempotencyKey: key,
		SourceIdentity: a.sourceIdentity,
		Variant:        ev.Variant,
		Payload:        payload,
	}
	if err := envelope.Sign(a.kp, e); err != nil {
		return fmt.Errorf("agent: sign envelope: %w", err)
	}

	raw, err := marshalEnvelope(e)
	if err != nil {
		return fmt.Errorf("agent: marshal envelope: %w", err)
	}

	record := wal.Record{
		IdempotencyKey:     e.IdempotencyKey,
		SerializedEnvelope: raw,
		CreatedNS:          e.TimestampNS,
		State:              wal.StatePending,
	}
	evicted, err := a.wal.Append(ctx, record)
	if err != nil {
		return fmt.Errorf("agent: wal append: %w", err)
	}
	a.metrics.EventsCollectedTotal(probeName)
	a.metrics.WALAppendedTotal()
	if evicted {
		a.metrics.WALDroppedTotal()
	}
	a.mirrorUpsert(ctx, record)
	return nil
}

// mirrorUpsert best-effort mirrors r into Postgres when a mirror is
// configured. Failures are logged, never propagated: the mirror is never
// authoritative and must not gate the collect or drain loops.
func (a *Agent) mirrorUpsert(ctx context.Context, r wal.Record) {
	if a.pg == nil {
		return
	}
	if err := a.pg.Upsert(ctx, r); err != nil {
		a.log.Warn("postgres mirror upsert failed", logger.String("key", r.IdempotencyKey), logger.Error(err))
	}
}

// DrainOnce runs one pass of the drain loop (spec.md §4.6 drain-loop steps
// 1-5): breaker gate, drain a batch, send each record, interpret its Ack.
// Returns the number of records processed.
func (a *Agent) DrainOnce(ctx context.Context) (int, error) {
	if !a.breaker.Allow() {
		a.metrics.BreakerState(a.breaker.State().String())
		return 0, nil
	}
	a.metrics.BreakerState(a.breaker.State().String())

	records, err := a.wal.Drain(ctx, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("agent: wal drain: %w", err)
	}

	for i, r := range records {
		a.sendOne(ctx, r)
		if a.cfg.SendInterval > 0 && i < len(records)-1 {
			select {
			case <-ctx.Done():
				return i + 1, ctx.Err()
			case <-time.After(a.cfg.SendInterval):
			}
		}
	}
	return len(records), nil
}

func (a *Agent) sendOne(ctx context.Context, r wal.Record) {
	e, err := unmarshalEnvelope(r.SerializedEnvelope)
	if err != nil {
		a.log.Error("wal record has unparsable envelope", logger.String("key", r.IdempotencyKey), logger.Error(err))
		_ = a.wal.MarkInvalid(ctx, []string{r.IdempotencyKey}, "unparsable_envelope")
		r.State = wal.StateDeadLetter
		r.DeadLetterReason = "unparsable_envelope"
		a.mirrorUpsert(ctx, r)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
	defer cancel()

	start := a.now()
	a.metrics.PublishAttemptsTotal()
	ack, err := a.rpc.Publish(sendCtx, e)
	a.metrics.ObserveSendLatencySeconds(a.now().Sub(start).Seconds())

	if err != nil {
		a.breaker.Failure()
		a.metrics.PublishRetryTotal("transport_error")
		_ = a.wal.MarkRetry(ctx, []string{r.IdempotencyKey}, uint64(a.now().UnixNano()))
		r.State = wal.StatePending
		r.RetryCount++
		r.LastAttemptNS = uint64(a.now().UnixNano())
		a.mirrorUpsert(ctx, r)
		return
	}

	switch ack.Status {
	case envelope.StatusOK:
		a.breaker.Success()
		a.metrics.PublishOKTotal()
		_ = a.wal.MarkDelivered(ctx, []string{r.IdempotencyKey})
		r.State = wal.StateDelivered
		a.mirrorUpsert(ctx, r)
	case envelope.StatusRetry:
		a.breaker.Failure()
		a.metrics.PublishRetryTotal(ack.Reason)
		_ = a.wal.MarkRetry(ctx, []string{r.IdempotencyKey}, uint64(a.now().UnixNano()))
		r.State = wal.StatePending
		r.RetryCount++
		r.LastAttemptNS = uint64(a.now().UnixNano())
		a.mirrorUpsert(ctx, r)
		if ack.BackoffHintMS > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(ack.BackoffHintMS) * time.Millisecond):
			}
		}
	case envelope.StatusInvalid:
		a.metrics.PublishInvalidTotal()
		a.log.Warn("envelope rejected as invalid", logger.String("key", r.IdempotencyKey), logger.String("reason", ack.Reason))
		_ = a.wal.MarkInvalid(ctx, []string{r.IdempotencyKey}, ack.Reason)
		r.State = wal.StateDeadLetter
		r.DeadLetterReason = ack.Reason
		a.mirrorUpsert(ctx, r)
	case envelope.StatusUnauthorized:
		a.metrics.PublishUnauthorizedTotal()
		a.log.Error("envelope rejected as unauthorized", logger.String("key", r.IdempotencyKey), logger.String("reason", ack.Reason))
		_ = a.wal.MarkInvalid(ctx, []string{r.IdempotencyKey}, ack.Reason)
		r.State = wal.StateDeadLetter
		r.DeadLetterReason = ack.Reason
		a.mirrorUpsert(ctx, r)
	default:
		a.breaker.Failure()
		_ = a.wal.MarkRetry(ctx, []string{r.IdempotencyKey}, uint64(a.now().UnixNano()))
		r.State = wal.StatePending
		r.RetryCount++
		r.LastAttemptNS = uint64(a.now().UnixNano())
		a.mirrorUpsert(ctx, r)
	}
}

// RetryDelay returns the backoff delay for the given consecutive-failure
// attempt count, used by the drain loop's outer scheduler between passes
// that processed zero records or whose breaker is open.
func (a *Agent) RetryDelay(attempt int) time.Duration {
	return a.cfg.Backoff.Delay(attempt, a.rnd)
}

// Shutdown stops accepting new work, drains whatever WAL backlog it can
// within grace, and closes the RPC transport (spec.md §4.6 shutdown
// sequence: stop probes happens in the caller's collection goroutine,
// bounded grace drain, persist WAL is implicit since filestore fsyncs on
// every append, exit).
func (a *Agent) Shutdown(ctx context.Context) error {
	grace := a.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	for {
		if drainCtx.Err() != nil {
			break
		}
		n, err := a.DrainOnce(drainCtx)
		if err != nil || n == 0 {
			break
		}
	}

	if err := a.wal.Close(); err != nil {
		a.log.Error("wal close failed during shutdown", logger.Error(err))
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.log.Error("postgres mirror close failed during shutdown", logger.Error(err))
		}
	}
	return a.rpc.Close()
}
