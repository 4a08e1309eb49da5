package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadEd25519PrivateKeyPEMRoundTrips(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "agent.key")
	require.NoError(t, SaveEd25519PrivateKeyPEM(kp, path))

	loaded, err := LoadEd25519PrivateKeyPEM(path)
	require.NoError(t, err)
	assert.Equal(t, kp.ID(), loaded.ID())

	msg := []byte("round trip check")
	sig, err := loaded.Sign(msg)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(msg, sig))
}

func TestLoadEd25519PrivateKeyPEMRejectsMissingFile(t *testing.T) {
	_, err := LoadEd25519PrivateKeyPEM(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}

func TestLoadEd25519PrivateKeyPEMRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	require.NoError(t, os.WriteFile(path, []byte("not pem at all"), 0o600))

	_, err := LoadEd25519PrivateKeyPEM(path)
	assert.Error(t, err)
}
