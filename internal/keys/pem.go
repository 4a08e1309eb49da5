package keys

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// pemBlockType matches the teacher's crypto/formats PEM exporter
// (PKCS8 "PRIVATE KEY" block for Ed25519 keys).
const pemBlockType = "PRIVATE KEY"

// SaveEd25519PrivateKeyPEM writes kp's private key to path in PKCS8 PEM
// form, for cmd/agent's keygen subcommand.
func SaveEd25519PrivateKeyPEM(kp KeyPair, path string) error {
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return errors.New("keys: not an ed25519 key pair")
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("keys: marshal pkcs8: %w", err)
	}
	block := &pem.Block{Type: pemBlockType, Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("keys: write %s: %w", path, err)
	}
	return nil
}

// LoadEd25519PrivateKeyPEM reads an Ed25519 private key from a PKCS8 PEM
// file, the shape named by an agent's ed25519_private_key_path config
// option.
func LoadEd25519PrivateKeyPEM(path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("keys: %s is not valid PEM", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parse pkcs8: %w", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keys: %s does not contain an ed25519 private key", path)
	}
	return NewEd25519KeyPair(priv), nil
}
