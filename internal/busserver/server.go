// Package busserver implements the EventBus Server request pipeline
// (SPEC_FULL.md §4.7): peer-identity binding, structural validation, trust
// lookup, signature verification, optional payload unsealing, admission
// control, dedup, and handoff to a downstream sink. It is
// transport-agnostic — httprpc and wsrpc both call Server.HandlePublish as
// their transport.Handler — grounded on the teacher's layered construction
// of core/session.Manager, which composes independently-testable
// collaborators (store, verifier, clock) behind one request-handling entry
// point.
package busserver

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"time"

	"github.com/eventbus-fabric/eventbus/internal/admission"
	"github.com/eventbus-fabric/eventbus/internal/confidential"
	"github.com/eventbus-fabric/eventbus/internal/dedup"
	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/logger"
	"github.com/eventbus-fabric/eventbus/internal/trustmap"
)

// Config controls backoff hint ranges advertised to agents on RETRY acks
// (spec.md §4.7 step 7: "a bounded range, e.g. 250-2000 ms").
type Config struct {
	HardOverloadBackoffMinMS int
	HardOverloadBackoffMaxMS int
	SoftOverloadBackoffMinMS int
	SoftOverloadBackoffMaxMS int
}

// DefaultConfig returns the documented example ranges.
func DefaultConfig() Config {
	return Config{
		HardOverloadBackoffMinMS: 250,
		HardOverloadBackoffMaxMS: 2000,
		SoftOverloadBackoffMinMS: 50,
		SoftOverloadBackoffMaxMS: 250,
	}
}

// Server is the EventBus's request pipeline. It has no transport-specific
// code: httprpc.Server and wsrpc.Server both wrap Server.HandlePublish as
// their transport.Handler.
type Server struct {
	cfg       Config
	trust     *trustmap.Map
	dedupe    *dedup.Cache
	admission *admission.Controller
	sink      Sink
	metrics   Metrics
	log       logger.Logger
	now       func() time.Time

	// unsealKey, when non-nil, is the Bus's own Ed25519 identity private
	// key. Every accepted envelope's payload is unsealed against it
	// (SPEC_FULL.md §4.11 Stream Handshake) after signature verification.
	unsealKey ed25519.PrivateKey
}

// New assembles a Server from its collaborators.
func New(trust *trustmap.Map, dedupe *dedup.Cache, adm *admission.Controller, sink Sink, metrics Metrics, log logger.Logger) *Server {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Server{
		cfg:       DefaultConfig(),
		trust:     trust,
		dedupe:    dedupe,
		admission: adm,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// WithConfig overrides the default backoff-hint ranges.
func (s *Server) WithConfig(cfg Config) *Server {
	s.cfg = cfg
	return s
}

// WithConfidentiality enables the Bus side of the Stream Handshake: every
// verified envelope's payload is unsealed against priv before admission.
// A nil priv is a no-op.
func (s *Server) WithConfidentiality(priv ed25519.PrivateKey) *Server {
	s.unsealKey = priv
	return s
}

// HandlePublish implements transport.Handler: the full per-request pipeline
// of spec.md §4.7 steps 2-9 (step 1, peer identity extraction, already
// happened in the transport layer and is passed in as peerIdentity).
func (s *Server) HandlePublish(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
	start := s.now()
	s.metrics.ReceivedTotal(peerIdentity)
	defer func() {
		s.metrics.ObserveLatencySeconds(s.now().Sub(start).Seconds())
	}()

	// Step 2: size check.
	if e.Size() > envelope.MaxSize {
		s.metrics.InvalidTotal("oversize")
		s.log.Warn("envelope rejected: oversize", logger.String("source", peerIdentity), logger.Int("size", e.Size()))
		return &envelope.Ack{Status: envelope.StatusInvalid, Reason: "oversize"}, nil
	}

	// Step 3: structural validation.
	if err := envelope.Validate(e); err != nil {
		s.metrics.InvalidTotal("malformed")
		s.log.Warn("envelope rejected: malformed", logger.String("source", peerIdentity), logger.Error(err))
		return &envelope.Ack{Status: envelope.StatusInvalid, Reason: "malformed"}, nil
	}

	// Step 4: identity binding.
	if e.SourceIdentity != peerIdentity {
		s.metrics.UnauthorizedTotal("identity_mismatch")
		s.log.Error("envelope rejected: identity mismatch", logger.String("peer", peerIdentity), logger.String("claimed", e.SourceIdentity))
		return &envelope.Ack{Status: envelope.StatusUnauthorized, Reason: "identity_mismatch"}, nil
	}

	// Step 5: trust lookup.
	kp, ok := s.trust.Lookup(peerIdentity)
	if !ok {
		s.metrics.UnauthorizedTotal("unknown_identity")
		s.log.Error("envelope rejected: unknown identity", logger.String("source", peerIdentity))
		return &envelope.Ack{Status: envelope.StatusUnauthorized, Reason: "unknown_identity"}, nil
	}

	// Step 6: signature verification.
	if err := envelope.Verify(kp, e); err != nil {
		s.metrics.UnauthorizedTotal("bad_signature")
		s.log.Error("envelope rejected: bad signature", logger.String("source", peerIdentity), logger.Error(err))
		return &envelope.Ack{Status: envelope.StatusUnauthorized, Reason: "bad_signature"}, nil
	}

	// Step 6.5: payload confidentiality. The signature above already
	// authenticated the sender over the (possibly sealed) payload bytes,
	// so a failure here is an INVALID envelope, never UNAUTHORIZED.
	if s.unsealKey != nil {
		opened, err := confidential.Open(s.unsealKey, e.Payload)
		if err != nil {
			s.metrics.InvalidTotal("unseal_failed")
			s.log.Warn("envelope rejected: unseal failed", logger.String("source", peerIdentity), logger.Error(err))
			return &envelope.Ack{Status: envelope.StatusInvalid, Reason: "unseal_failed"}, nil
		}
		e.Payload = opened
	}

	// Step 7: admission.
	decision := s.admission.TryAdmit()
	s.metrics.Inflight(s.admission.Inflight())
	s.metrics.Overload(s.admission.Overload())
	switch decision {
	case admission.RejectHard:
		s.metrics.RetryTotal(peerIdentity, "hard_overload")
		hint := randRangeMS(s.cfg.HardOverloadBackoffMinMS, s.cfg.HardOverloadBackoffMaxMS)
		return &envelope.Ack{Status: envelope.StatusRetry, Reason: "hard_overload", BackoffHintMS: hint}, nil
	case admission.RejectSoft:
		s.metrics.RetryTotal(peerIdentity, "soft_overload")
		hint := randRangeMS(s.cfg.SoftOverloadBackoffMinMS, s.cfg.SoftOverloadBackoffMaxMS)
		return &envelope.Ack{Status: envelope.StatusRetry, Reason: "soft_overload", BackoffHintMS: hint}, nil
	}
	defer s.admission.Release()

	// Step 8: dedup.
	if s.dedupe.Seen(e.IdempotencyKey) {
		s.metrics.DedupHit()
		s.metrics.OKTotal(peerIdentity)
		return &envelope.Ack{Status: envelope.StatusOK, Reason: "duplicate"}, nil
	}

	// Step 9: accept — handoff must complete before the OK ack per §4.7's
	// failure-semantics note; a full sink is overload, not success.
	if !s.sink.Enqueue(e) {
		s.metrics.RetryTotal(peerIdentity, "sink_full")
		hint := randRangeMS(s.cfg.SoftOverloadBackoffMinMS, s.cfg.SoftOverloadBackoffMaxMS)
		return &envelope.Ack{Status: envelope.StatusRetry, Reason: "sink_full", BackoffHintMS: hint}, nil
	}

	s.metrics.OKTotal(peerIdentity)
	return &envelope.Ack{Status: envelope.StatusOK}, nil
}

// Ready reports whether the trust map holds at least one entry. It does not
// check the sink or the listener; cmd/eventbus registers those as separate
// named checks on its /ready health server.
func (s *Server) Ready() bool {
	return s.trust.Size() > 0
}

func randRangeMS(min, max int) int64 {
	if max <= min {
		return int64(min)
	}
	return int64(min + rand.Intn(max-min))
}
