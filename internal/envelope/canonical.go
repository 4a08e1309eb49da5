package envelope

import "encoding/binary"

// Canonicalize produces a deterministic byte serialization of e's signed
// fields (everything except Signature). Two envelopes with identical field
// values MUST produce identical canonical bytes on any platform: the format
// uses a fixed field order, big-endian fixed-width integers, and
// length-prefixed variable-length fields, and never depends on map
// iteration order, locale, or floating-point formatting (the format has no
// floating-point fields).
//
// Wire layout (all integers big-endian):
//
//	u16  len(version)      | bytes  version
//	u64  timestamp_ns
//	u16  len(idempotency_key) | bytes idempotency_key
//	u16  len(source_identity) | bytes source_identity
//	u16  len(variant)      | bytes  variant
//	u32  len(payload)      | bytes  payload
//	u8   has_prev_signature (0 or 1)
//	u16  len(prev_signature) | bytes prev_signature   (present only if has_prev_signature == 1)
//
// This exact layout is pinned by the golden vector in canonical_test.go and
// is part of the contract: any change to field order or width changes
// existing signatures.
func Canonicalize(e *Envelope) []byte {
	version := []byte(e.Version)
	key := []byte(e.IdempotencyKey)
	source := []byte(e.SourceIdentity)
	variant := []byte(e.Variant)

	size := 2 + len(version) + 8 + 2 + len(key) + 2 + len(source) + 2 + len(variant) + 4 + len(e.Payload) + 1
	hasPrev := len(e.PrevSignature) > 0
	if hasPrev {
		size += 2 + len(e.PrevSignature)
	}

	buf := make([]byte, size)
	off := 0

	off = putBytes16(buf, off, version)
	binary.BigEndian.PutUint64(buf[off:], e.TimestampNS)
	off += 8
	off = putBytes16(buf, off, key)
	off = putBytes16(buf, off, source)
	off = putBytes16(buf, off, variant)
	off = putBytes32Len(buf, off, e.Payload)

	if hasPrev {
		buf[off] = 1
		off++
		off = putBytes16(buf, off, e.PrevSignature)
	} else {
		buf[off] = 0
		off++
	}

	return buf[:off]
}

func putBytes16(buf []byte, off int, data []byte) int {
	binary.BigEndian.PutUint16(buf[off:], uint16(len(data)))
	off += 2
	copy(buf[off:], data)
	return off + len(data)
}

func putBytes32Len(buf []byte, off int, data []byte) int {
	binary.BigEndian.PutUint32(buf[off:], uint32(len(data)))
	off += 4
	copy(buf[off:], data)
	return off + len(data)
}
