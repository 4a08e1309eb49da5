package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// secp256k1KeyPair is the alternate signature algorithm, selected per trust
// map entry, for agents whose host HSM/TPM only exposes secp256k1.
type secp256k1KeyPair struct {
	privateKey *secp256k1.PrivateKey
	publicKey  *secp256k1.PublicKey
	id         string
}

// GenerateSecp256k1KeyPair generates a new random secp256k1 key pair.
func GenerateSecp256k1KeyPair() (KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate secp256k1: %w", err)
	}
	return NewSecp256k1KeyPair(priv), nil
}

// NewSecp256k1KeyPair wraps an existing secp256k1 private key.
func NewSecp256k1KeyPair(priv *secp256k1.PrivateKey) KeyPair {
	pub := priv.PubKey()
	return &secp256k1KeyPair{privateKey: priv, publicKey: pub, id: secpFingerprint(pub)}
}

// NewSecp256k1PublicKey wraps a verify-only secp256k1 public key.
func NewSecp256k1PublicKey(pub *secp256k1.PublicKey) KeyPair {
	return &secp256k1KeyPair{publicKey: pub, id: secpFingerprint(pub)}
}

func secpFingerprint(pub *secp256k1.PublicKey) string {
	sum := sha256.Sum256(pub.SerializeCompressed())
	return hex.EncodeToString(sum[:8])
}

func (kp *secp256k1KeyPair) PublicKey() crypto.PublicKey   { return kp.publicKey.ToECDSA() }
func (kp *secp256k1KeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey.ToECDSA() }
func (kp *secp256k1KeyPair) Algorithm() Algorithm          { return Secp256k1 }
func (kp *secp256k1KeyPair) ID() string                    { return kp.id }

// Sign produces a 64-byte fixed-size (r||s) ECDSA signature over the SHA-256
// digest of message. Envelope signatures are normatively Ed25519; this
// algorithm exists only for agents that select it explicitly.
func (kp *secp256k1KeyPair) Sign(message []byte) ([]byte, error) {
	if kp.privateKey == nil {
		return nil, fmt.Errorf("keys: secp256k1 key pair has no private key")
	}
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, kp.privateKey.ToECDSA(), hash[:])
	if err != nil {
		return nil, fmt.Errorf("keys: secp256k1 sign: %w", err)
	}
	return serializeRS(r, s), nil
}

func (kp *secp256k1KeyPair) Verify(message, signature []byte) error {
	if len(signature) != 64 {
		return ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	hash := sha256.Sum256(message)
	if !ecdsa.Verify(kp.publicKey.ToECDSA(), hash[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}

func serializeRS(r, s *big.Int) []byte {
	out := make([]byte, 64)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return out
}
