package busserver

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventbus-fabric/eventbus/internal/admission"
	"github.com/eventbus-fabric/eventbus/internal/confidential"
	"github.com/eventbus-fabric/eventbus/internal/dedup"
	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/keys"
	"github.com/eventbus-fabric/eventbus/internal/logger"
	"github.com/eventbus-fabric/eventbus/internal/trustmap"
)

type testFixture struct {
	srv  *Server
	sink *BoundedChannelSink
	kp   keys.KeyPair
}

func newFixture(t *testing.T, admissionCfg admission.Config) *testFixture {
	t.Helper()
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	dir := t.TempDir()
	pub := kp.PublicKey().(ed25519.PublicKey)
	content := "entries:\n" +
		"  - identity: \"A1\"\n" +
		"    algorithm: ed25519\n" +
		"    public_key: \"" + base64.StdEncoding.EncodeToString(pub) + "\"\n" +
		"    not_before_ns: 0\n"
	path := filepath.Join(dir, "trust.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	trust, err := trustmap.Load(path)
	require.NoError(t, err)

	sink := NewBoundedChannelSink(4)
	srv := New(trust, dedup.New(5*time.Minute, 1000), admission.New(admissionCfg), sink, NopMetrics{}, logger.NewDefaultLogger())
	return &testFixture{srv: srv, sink: sink, kp: kp}
}

func (f *testFixture) sign(e *envelope.Envelope) {
	if err := envelope.Sign(f.kp, e); err != nil {
		panic(err)
	}
}

func happyEnvelope(key string) *envelope.Envelope {
	return &envelope.Envelope{
		Version:        envelope.Version,
		TimestampNS:    1,
		IdempotencyKey: key,
		SourceIdentity: "A1",
		Variant:        envelope.PayloadFlow,
		Payload:        make([]byte, 1024),
	}
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	f.sign(e)

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack.Status)
	require.Len(t, f.sink.ch, 1)
}

func TestDuplicateSuppression(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	f.sign(e)

	_, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack.Status)
	require.Equal(t, "duplicate", ack.Reason)
	require.Len(t, f.sink.ch, 1, "duplicate must not reach the sink a second time")
}

func TestOversizeIsInvalid(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	e.Payload = make([]byte, 200*1024)
	f.sign(e)

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusInvalid, ack.Status)
	require.Equal(t, "oversize", ack.Reason)
}

func TestIdentityMismatchIsUnauthorized(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	f.sign(e)

	ack, err := f.srv.HandlePublish(context.Background(), "A2", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusUnauthorized, ack.Status)
	require.Equal(t, "identity_mismatch", ack.Reason)
}

func TestUnknownIdentityIsUnauthorized(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	e.SourceIdentity = "A9"
	f.sign(e)

	ack, err := f.srv.HandlePublish(context.Background(), "A9", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusUnauthorized, ack.Status)
	require.Equal(t, "unknown_identity", ack.Reason)
}

func TestBadSignatureIsUnauthorized(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	e := happyEnvelope("k1")
	f.sign(e)
	e.Payload[0] ^= 0xFF // mutate after signing

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusUnauthorized, ack.Status)
	require.Equal(t, "bad_signature", ack.Reason)
}

func TestOverloadAndRecovery(t *testing.T) {
	f := newFixture(t, admission.Config{MaxInflightSoft: 1, MaxInflightHard: 1, OverloadHysteresis: 0.8})

	// Fill the sole admission slot without releasing it by holding the
	// controller directly (simulates a request still in flight).
	require.Equal(t, admission.Admit, f.srv.admission.TryAdmit())

	e := happyEnvelope("k1")
	f.sign(e)
	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusRetry, ack.Status)
	require.Equal(t, "hard_overload", ack.Reason)
	require.GreaterOrEqual(t, ack.BackoffHintMS, int64(250))

	f.srv.admission.Release()
	ack2, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack2.Status)
}

func TestSinkFullYieldsRetry(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	f.sink.ch = make(chan *envelope.Envelope) // zero-capacity: always full

	e := happyEnvelope("k1")
	f.sign(e)
	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusRetry, ack.Status)
	require.Equal(t, "sink_full", ack.Reason)

	// Admission slot must have been released even though accept failed.
	require.Equal(t, 0, f.srv.admission.Inflight())
}

func TestConfidentialityUnsealsSealedPayloadBeforeAdmission(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	busKP, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	f.srv.WithConfidentiality(busKP.PrivateKey().(ed25519.PrivateKey))

	plaintext := []byte(`{"src_ip":"10.0.0.1","dst_ip":"10.0.0.2","protocol":"tcp"}`)
	sealed, err := confidential.Seal(busKP.PublicKey().(ed25519.PublicKey), plaintext)
	require.NoError(t, err)

	e := happyEnvelope("k1")
	e.Payload = sealed
	f.sign(e) // signature covers the sealed ciphertext, per the seal-before-sign ordering

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack.Status)
	require.Len(t, f.sink.ch, 1)
	require.Equal(t, plaintext, (<-f.sink.ch).Payload)
}

func TestConfidentialityUnsealFailureIsInvalidNotUnauthorized(t *testing.T) {
	f := newFixture(t, admission.DefaultConfig())
	busKP, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	f.srv.WithConfidentiality(busKP.PrivateKey().(ed25519.PrivateKey))

	e := happyEnvelope("k1")
	e.Payload = []byte("not a sealed packet")
	f.sign(e)

	ack, err := f.srv.HandlePublish(context.Background(), "A1", e)
	require.NoError(t, err)
	require.Equal(t, envelope.StatusInvalid, ack.Status)
	require.Equal(t, "unseal_failed", ack.Reason)
}
