package keys

import (
	"crypto"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// X25519KeyPair holds an X25519 private key and its public counterpart. It is
// a key-agreement pair only: Sign/Verify return ErrSignNotSupported /
// ErrVerifyNotSupported to satisfy the KeyPair interface uniformly.
type X25519KeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
	id         string
}

// GenerateX25519KeyPair generates a new ephemeral X25519 key pair.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: generate x25519: %w", err)
	}
	pub := priv.PublicKey()
	sum := sha256.Sum256(pub.Bytes())
	return &X25519KeyPair{privateKey: priv, publicKey: pub, id: hex.EncodeToString(sum[:8])}, nil
}

// NewX25519PrivateKey wraps a raw 32-byte X25519 scalar, as produced by
// Ed25519PrivateToX25519 in internal/confidential.
func NewX25519PrivateKey(raw []byte) (*X25519KeyPair, error) {
	priv, err := ecdh.X25519().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid x25519 private key: %w", err)
	}
	pub := priv.PublicKey()
	sum := sha256.Sum256(pub.Bytes())
	return &X25519KeyPair{privateKey: priv, publicKey: pub, id: hex.EncodeToString(sum[:8])}, nil
}

func (kp *X25519KeyPair) PublicKey() crypto.PublicKey    { return kp.publicKey }
func (kp *X25519KeyPair) PrivateKey() crypto.PrivateKey  { return kp.privateKey }
func (kp *X25519KeyPair) Algorithm() Algorithm           { return X25519 }
func (kp *X25519KeyPair) ID() string                     { return kp.id }
func (kp *X25519KeyPair) PublicBytes() []byte            { return kp.publicKey.Bytes() }
func (kp *X25519KeyPair) ECDHPrivateKey() *ecdh.PrivateKey { return kp.privateKey }
func (kp *X25519KeyPair) ECDHPublicKey() *ecdh.PublicKey   { return kp.publicKey }

func (kp *X25519KeyPair) Sign(message []byte) ([]byte, error) {
	return nil, ErrSignNotSupported
}

func (kp *X25519KeyPair) Verify(message, signature []byte) error {
	return ErrVerifyNotSupported
}

// DeriveSharedSecret computes SHA-256 of the raw ECDH output against a peer's
// X25519 public key bytes.
func (kp *X25519KeyPair) DeriveSharedSecret(peerPubBytes []byte) ([]byte, error) {
	peerPub, err := ecdh.X25519().NewPublicKey(peerPubBytes)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid peer public key: %w", err)
	}
	raw, err := kp.privateKey.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("keys: ecdh: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}
