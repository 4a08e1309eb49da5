package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// goldenEnvelope is the fixed-field-value envelope used by the canonical
// byte golden vector below. Its fields were chosen to exercise every
// section of the layout (non-empty variable-length fields, a payload, and a
// has_prev_signature=false tail).
func goldenEnvelope() *Envelope {
	return &Envelope{
		Version:        "v1",
		TimestampNS:    0x1234567890ABCDEF,
		IdempotencyKey: "k1",
		SourceIdentity: "A1",
		Variant:        PayloadFlow,
		Payload:        []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
}

// goldenCanonicalHex is the exact canonical byte encoding of goldenEnvelope,
// derived field-by-field from the layout documented on Canonicalize. Any
// change to field order, width, or presence handling must update this
// vector deliberately — it is the interoperability contract between any two
// implementations of this format.
const goldenCanonicalHex = "" +
	"00027631" + // u16 len("v1")=2, "v1"
	"1234567890abcdef" + // u64 timestamp_ns
	"00026b31" + // u16 len("k1")=2, "k1"
	"00024131" + // u16 len("A1")=2, "A1"
	"0004666c6f77" + // u16 len("flow")=4, "flow"
	"00000004" + // u32 len(payload)=4
	"deadbeef" + // payload
	"00" // has_prev_signature = 0

func TestCanonicalizeGoldenVector(t *testing.T) {
	want, err := hex.DecodeString(goldenCanonicalHex)
	require.NoError(t, err)

	got := Canonicalize(goldenEnvelope())
	require.Equal(t, want, got)
}

// TestCanonicalizeDeterministic pins invariant 1 of the spec (canonical
// determinism): repeated calls on equal envelopes, built independently and
// in different field-setting order, produce byte-identical output, and the
// SHA-256 digest over that output is likewise stable.
func TestCanonicalizeDeterministic(t *testing.T) {
	a := goldenEnvelope()
	b := &Envelope{}
	b.SourceIdentity = "A1"
	b.Variant = PayloadFlow
	b.Version = "v1"
	b.IdempotencyKey = "k1"
	b.TimestampNS = 0x1234567890ABCDEF
	b.Payload = []byte{0xDE, 0xAD, 0xBE, 0xEF}

	ca, cb := Canonicalize(a), Canonicalize(b)
	require.Equal(t, ca, cb)

	ha := sha256.Sum256(ca)
	hb := sha256.Sum256(cb)
	require.Equal(t, ha, hb)
}

func TestCanonicalizeWithPrevSignature(t *testing.T) {
	e := goldenEnvelope()
	e.PrevSignature = make([]byte, 64)
	for i := range e.PrevSignature {
		e.PrevSignature[i] = byte(i)
	}

	got := Canonicalize(e)
	// has_prev_signature byte flips to 1 and is immediately followed by
	// the u16 length prefix and the signature bytes themselves.
	require.Equal(t, byte(1), got[len(got)-3-len(e.PrevSignature)])
	require.Equal(t, e.PrevSignature, got[len(got)-len(e.PrevSignature):])
}

func TestCanonicalizeEmptyAndNilPayloadMatch(t *testing.T) {
	e1 := goldenEnvelope()
	e1.Payload = nil
	e2 := goldenEnvelope()
	e2.Payload = []byte{}

	require.Equal(t, Canonicalize(e1), Canonicalize(e2))
}
