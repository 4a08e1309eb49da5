package envelope

import "errors"

// Error taxonomy (§7): typed sentinels wrapped with fmt.Errorf("...: %w", err)
// and inspected with errors.Is/errors.As, classified at the call site into
// one of the four Ack statuses.
var (
	ErrBadSignature     = errors.New("envelope: bad signature")
	ErrUnknownIdentity  = errors.New("envelope: unknown identity")
	ErrOversize         = errors.New("envelope: exceeds maximum size")
	ErrIdentityMismatch = errors.New("envelope: source_identity does not match peer identity")
	ErrDuplicateKey     = errors.New("envelope: duplicate idempotency_key")
	ErrIOError          = errors.New("envelope: underlying storage failure")
	ErrMalformed        = errors.New("envelope: missing or invalid required field")
	ErrUnrecognizedVersion = errors.New("envelope: unrecognized version")
)
