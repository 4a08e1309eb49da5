package envelope

import (
	"fmt"

	"github.com/eventbus-fabric/eventbus/internal/keys"
)

// Sign computes the envelope signature over its canonical bytes using kp and
// attaches it to e.Signature.
func Sign(kp keys.KeyPair, e *Envelope) error {
	sig, err := kp.Sign(Canonicalize(e))
	if err != nil {
		return fmt.Errorf("envelope: sign: %w", err)
	}
	e.Signature = sig
	return nil
}

// Verify checks e.Signature against the canonical bytes of its remaining
// fields using kp (the trust map entry for e.SourceIdentity). It returns
// ErrBadSignature, wrapping the underlying verification error, on failure.
func Verify(kp keys.KeyPair, e *Envelope) error {
	if len(e.Signature) == 0 {
		return fmt.Errorf("%w: empty signature", ErrBadSignature)
	}
	if err := kp.Verify(Canonicalize(e), e.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

// Validate performs the structural validation of §4.7 step 3: required
// fields present and non-empty, version recognized, size within bound.
// It does not perform identity binding, trust lookup, or signature
// verification — those are the caller's responsibility (the EventBus
// request pipeline in internal/busserver).
func Validate(e *Envelope) error {
	if e.Version != Version {
		return fmt.Errorf("%w: %q", ErrUnrecognizedVersion, e.Version)
	}
	if e.IdempotencyKey == "" {
		return fmt.Errorf("%w: empty idempotency_key", ErrMalformed)
	}
	if len(e.IdempotencyKey) > MaxIdempotencyKeyLen {
		return fmt.Errorf("%w: idempotency_key exceeds %d bytes", ErrMalformed, MaxIdempotencyKeyLen)
	}
	if e.SourceIdentity == "" {
		return fmt.Errorf("%w: empty source_identity", ErrMalformed)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if e.Size() > MaxSize {
		return fmt.Errorf("%w: %d bytes", ErrOversize, e.Size())
	}
	return nil
}
