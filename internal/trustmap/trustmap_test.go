package trustmap

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTrustFile(t *testing.T, dir string, pub ed25519.PublicKey, identity string) string {
	t.Helper()
	content := "entries:\n" +
		"  - identity: \"" + identity + "\"\n" +
		"    algorithm: ed25519\n" +
		"    public_key: \"" + base64.StdEncoding.EncodeToString(pub) + "\"\n" +
		"    not_before_ns: 0\n"
	path := filepath.Join(dir, "trust.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	path := writeTrustFile(t, t.TempDir(), pub, "A1")

	m, err := Load(path)
	require.NoError(t, err)

	kp, ok := m.Lookup("A1")
	require.True(t, ok)
	require.Equal(t, pub, kp.PublicKey())

	_, ok = m.Lookup("unknown")
	require.False(t, ok)
}

func TestReloadSwapsAtomically(t *testing.T) {
	dir := t.TempDir()
	pub1, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	path := writeTrustFile(t, dir, pub1, "A1")

	m, err := Load(path)
	require.NoError(t, err)
	_, ok := m.Lookup("A1")
	require.True(t, ok)

	pub2, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	writeTrustFile(t, dir, pub2, "A2")

	require.NoError(t, m.Reload(path))
	_, ok = m.Lookup("A1")
	require.False(t, ok, "reload should fully replace the map, not merge")
	kp, ok := m.Lookup("A2")
	require.True(t, ok)
	require.Equal(t, pub2, kp.PublicKey())
}

func TestLookupMissIsUnauthorizedNeverRetry(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	path := writeTrustFile(t, t.TempDir(), pub, "A1")

	m, err := Load(path)
	require.NoError(t, err)

	_, ok := m.Lookup("A2")
	require.False(t, ok)
}

func TestEntryExpiry(t *testing.T) {
	e := Entry{NotBeforeNS: 100, NotAfterNS: uint64Ptr(200)}
	require.False(t, e.validAt(50))
	require.True(t, e.validAt(150))
	require.False(t, e.validAt(200))
}

func uint64Ptr(v uint64) *uint64 { return &v }
