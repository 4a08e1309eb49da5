// Package confidential implements the optional stream-handshake payload
// confidentiality layer (SPEC_FULL.md §4.11): an ephemeral X25519 ECDH
// against a peer's long-term Ed25519 identity key, converted to X25519 via
// the RFC 7748 birational mapping, with a key derived by HKDF-SHA256 and
// used to seal the envelope's payload field under AES-256-GCM. This layer
// is additive to mTLS and to envelope signing: only payload bytes are
// opaque ciphertext, and an unseal failure is an INVALID envelope, never
// UNAUTHORIZED, since the signature already authenticated the sender.
package confidential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"

	"github.com/eventbus-fabric/eventbus/internal/keys"
)

const hkdfInfo = "eventbus-fabric-payload-seal-v1"

// Seal encrypts plaintext for peerEdPub (the recipient's Ed25519 identity
// public key) and returns ephemeral_pub || nonce || ciphertext. The sender
// need not know the recipient's X25519 key directly — only its Ed25519
// identity key, which is what the trust map and agent configuration already
// carry.
func Seal(peerEdPub ed25519.PublicKey, plaintext []byte) ([]byte, error) {
	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("confidential: generate ephemeral key: %w", err)
	}

	peerX, err := Ed25519PublicToX25519(peerEdPub)
	if err != nil {
		return nil, err
	}

	raw, err := ephemeral.DeriveSharedSecret(peerX)
	if err != nil {
		return nil, fmt.Errorf("confidential: ecdh: %w", err)
	}
	if err := rejectLowOrder(raw); err != nil {
		return nil, err
	}

	transcript := concat(ephemeral.PublicBytes(), peerX)
	key, err := deriveKey(raw, transcript)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("confidential: nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, transcript)

	return concat(ephemeral.PublicBytes(), nonce, ct), nil
}

// Open reverses Seal using the recipient's Ed25519 identity private key.
// Any failure (malformed packet, wrong key, tampered ciphertext) is
// reported as a single opaque error: the caller treats it as
// reason="unseal_failed", never as an authentication failure.
func Open(selfEdPriv ed25519.PrivateKey, packet []byte) ([]byte, error) {
	const pubLen = 32
	const nonceLen = 12
	if len(packet) < pubLen+nonceLen {
		return nil, fmt.Errorf("confidential: packet too short")
	}
	ephPub := packet[:pubLen]
	nonce := packet[pubLen : pubLen+nonceLen]
	ct := packet[pubLen+nonceLen:]

	selfXPriv, err := Ed25519PrivateToX25519(selfEdPriv)
	if err != nil {
		return nil, err
	}
	selfX, err := keys.NewX25519PrivateKey(selfXPriv)
	if err != nil {
		return nil, err
	}

	raw, err := selfX.DeriveSharedSecret(ephPub)
	if err != nil {
		return nil, fmt.Errorf("confidential: ecdh: %w", err)
	}
	if err := rejectLowOrder(raw); err != nil {
		return nil, err
	}

	transcript := concat(ephPub, selfX.PublicBytes())
	key, err := deriveKey(raw, transcript)
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ct, transcript)
	if err != nil {
		return nil, fmt.Errorf("confidential: open: %w", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("confidential: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("confidential: gcm: %w", err)
	}
	return aead, nil
}

func deriveKey(raw, transcript []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, raw, transcript, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("confidential: hkdf: %w", err)
	}
	return key, nil
}

func rejectLowOrder(dh []byte) error {
	var zero [32]byte
	if subtle.ConstantTimeCompare(dh, zero[:]) == 1 {
		return fmt.Errorf("confidential: low-order or identity ECDH point")
	}
	return nil
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// Ed25519PrivateToX25519 converts an Ed25519 private key to the
// corresponding X25519 scalar per RFC 8032 §5.1.5.
func Ed25519PrivateToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("confidential: bad ed25519 private key length: %d", len(priv))
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	out := make([]byte, 32)
	copy(out, h[:32])
	return out, nil
}

// Ed25519PublicToX25519 converts an Ed25519 public key to its Montgomery
// (X25519) form via the birational map between the twisted Edwards curve
// and Curve25519.
func Ed25519PublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("confidential: bad ed25519 public key length: %d", len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("confidential: invalid ed25519 public key: %w", err)
	}
	return p.BytesMontgomery(), nil
}
