// Package keys provides the cryptographic key-pair abstraction used by the
// envelope Signer/Verifier and the trust map: Ed25519 (normative), secp256k1
// (alternate, for HSM-constrained agents), and X25519 (payload
// confidentiality, see internal/confidential).
package keys

import (
	"crypto"
	"errors"
)

// Algorithm identifies the signature or key-agreement algorithm of a KeyPair.
type Algorithm string

const (
	Ed25519   Algorithm = "ed25519"
	Secp256k1 Algorithm = "secp256k1"
	X25519    Algorithm = "x25519"
)

// KeyPair is a cryptographic key pair capable of signing and/or verifying.
// X25519 key pairs implement this interface but return ErrSignNotSupported /
// ErrVerifyNotSupported, since X25519 is a key-agreement algorithm only.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Algorithm() Algorithm
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	ID() string
}

var (
	ErrInvalidSignature   = errors.New("keys: invalid signature")
	ErrSignNotSupported   = errors.New("keys: algorithm does not support signing")
	ErrVerifyNotSupported = errors.New("keys: algorithm does not support verification")
	ErrUnknownAlgorithm   = errors.New("keys: unknown algorithm")
)
