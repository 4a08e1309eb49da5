// Package trustmap implements the Trust Map (SPEC_FULL.md §4.3): a static,
// atomically reloadable mapping from peer identity (the mTLS certificate
// common name) to a public key used by the Signer/Verifier. Readers never
// block a reload and never observe a torn map, mirroring the teacher's
// session.Manager mutex-guarded style generalized here to a lock-free
// atomic.Pointer swap, since the map itself is immutable once built and
// only ever replaced wholesale.
package trustmap

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"gopkg.in/yaml.v3"

	"github.com/eventbus-fabric/eventbus/internal/keys"
)

// Entry is one trust map binding: identity -> public key, with an optional
// validity window.
type Entry struct {
	Identity     string
	Algorithm    keys.Algorithm
	PublicKeyRaw []byte
	NotBeforeNS  uint64
	NotAfterNS   *uint64 // nil means no expiry
}

// fileEntry is the YAML wire shape of one entry in the trust map file.
type fileEntry struct {
	Identity    string `yaml:"identity"`
	Algorithm   string `yaml:"algorithm"` // "ed25519" (default) or "secp256k1"
	PublicKey   string `yaml:"public_key"` // base64-encoded raw key bytes
	NotBeforeNS uint64 `yaml:"not_before_ns"`
	NotAfterNS  *uint64 `yaml:"not_after_ns,omitempty"`
}

type fileFormat struct {
	Entries []fileEntry `yaml:"entries"`
}

// Map is the reloadable identity -> KeyPair lookup. The zero value is not
// usable; construct with Load.
type Map struct {
	entries atomic.Pointer[map[string]Entry]
}

// Load reads and parses a trust map YAML file and returns a ready Map.
func Load(path string) (*Map, error) {
	m := &Map{}
	if err := m.Reload(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads path and atomically publishes the new map with a single
// atomic store. In-flight Lookup calls on the old map are unaffected.
func (m *Map) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("trustmap: read %s: %w", path, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return fmt.Errorf("trustmap: parse %s: %w", path, err)
	}

	next := make(map[string]Entry, len(ff.Entries))
	for _, fe := range ff.Entries {
		if fe.Identity == "" {
			return fmt.Errorf("trustmap: entry with empty identity in %s", path)
		}
		keyBytes, err := base64.StdEncoding.DecodeString(fe.PublicKey)
		if err != nil {
			return fmt.Errorf("trustmap: decode public_key for %q: %w", fe.Identity, err)
		}
		alg := keys.Ed25519
		if fe.Algorithm != "" {
			alg = keys.Algorithm(fe.Algorithm)
		}
		next[fe.Identity] = Entry{
			Identity:     fe.Identity,
			Algorithm:    alg,
			PublicKeyRaw: keyBytes,
			NotBeforeNS:  fe.NotBeforeNS,
			NotAfterNS:   fe.NotAfterNS,
		}
	}

	m.entries.Store(&next)
	return nil
}

// Lookup returns the KeyPair (verify-only) bound to identity, or false if
// the identity is absent or outside its validity window — both treated as
// "untrusted" by the caller (UNAUTHORIZED).
func (m *Map) Lookup(identity string) (keys.KeyPair, bool) {
	entries := m.entries.Load()
	if entries == nil {
		return nil, false
	}
	entry, ok := (*entries)[identity]
	if !ok {
		return nil, false
	}
	if !entry.validAt(uint64(time.Now().UnixNano())) {
		return nil, false
	}

	switch entry.Algorithm {
	case keys.Secp256k1:
		pub, err := secp256k1.ParsePubKey(entry.PublicKeyRaw)
		if err != nil {
			return nil, false
		}
		return keys.NewSecp256k1PublicKey(pub), true
	default:
		if len(entry.PublicKeyRaw) != ed25519.PublicKeySize {
			return nil, false
		}
		return keys.NewEd25519PublicKey(ed25519.PublicKey(entry.PublicKeyRaw)), true
	}
}

func (e Entry) validAt(nowNS uint64) bool {
	if nowNS < e.NotBeforeNS {
		return false
	}
	if e.NotAfterNS != nil && nowNS >= *e.NotAfterNS {
		return false
	}
	return true
}

// Size returns the number of entries currently loaded, for readiness/debug
// reporting.
func (m *Map) Size() int {
	entries := m.entries.Load()
	if entries == nil {
		return 0
	}
	return len(*entries)
}
