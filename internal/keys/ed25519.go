package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ed25519KeyPair is the normative signature algorithm for envelope signing.
type ed25519KeyPair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	id         string
}

// GenerateEd25519KeyPair generates a new random Ed25519 key pair.
func GenerateEd25519KeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: generate ed25519: %w", err)
	}
	return NewEd25519KeyPair(priv), nil
}

// NewEd25519KeyPair wraps an existing Ed25519 private key, such as one loaded
// from the path named by an agent's ed25519_private_key_path config option.
func NewEd25519KeyPair(priv ed25519.PrivateKey) KeyPair {
	pub := priv.Public().(ed25519.PublicKey)
	return &ed25519KeyPair{privateKey: priv, publicKey: pub, id: fingerprint(pub)}
}

// NewEd25519PublicKey wraps a verify-only Ed25519 public key, the shape held
// by trust map entries.
func NewEd25519PublicKey(pub ed25519.PublicKey) KeyPair {
	return &ed25519KeyPair{publicKey: pub, id: fingerprint(pub)}
}

func fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

func (kp *ed25519KeyPair) PublicKey() crypto.PublicKey  { return kp.publicKey }
func (kp *ed25519KeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *ed25519KeyPair) Algorithm() Algorithm          { return Ed25519 }
func (kp *ed25519KeyPair) ID() string                    { return kp.id }

func (kp *ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	if len(kp.privateKey) == 0 {
		return nil, fmt.Errorf("keys: ed25519 key pair has no private key")
	}
	return ed25519.Sign(kp.privateKey, message), nil
}

func (kp *ed25519KeyPair) Verify(message, signature []byte) error {
	if !ed25519.Verify(kp.publicKey, message, signature) {
		return ErrInvalidSignature
	}
	return nil
}
