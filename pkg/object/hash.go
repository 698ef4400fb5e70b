package object

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// magic is the fixed 5-byte envelope prefix: "CTXO1".
var magic = [5]byte{'C', 'T', 'X', 'O', '1'}

// envelope builds the canonical, uncompressed bytes hashed to produce
// an object's ID:
//
//	magic(5) | kind(1) | payload_len(8, LE) | payload(payload_len)
func envelope(kind Kind, payload []byte) []byte {
	out := make([]byte, 0, 5+1+8+len(payload))
	out = append(out, magic[:]...)
	out = append(out, byte(kind))
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

// HashEnvelope computes the BLAKE3 object ID for a (kind, payload) pair
// over the uncompressed canonical envelope.
func HashEnvelope(kind Kind, payload []byte) ID {
	sum := blake3.Sum256(envelope(kind, payload))
	return ID(hex.EncodeToString(sum[:]))
}

// parseEnvelope splits canonical envelope bytes back into kind and
// payload, validating the magic and length prefix.
func parseEnvelope(data []byte) (Kind, []byte, error) {
	if len(data) < 14 {
		return 0, nil, &InvalidEnvelopeError{Reason: "too short"}
	}
	if string(data[:5]) != string(magic[:]) {
		return 0, nil, &InvalidEnvelopeError{Reason: "bad magic"}
	}
	kind := Kind(data[5])
	if kind != KindBlob && kind != KindTyped {
		return 0, nil, &InvalidEnvelopeError{Reason: "unknown kind"}
	}
	length := binary.LittleEndian.Uint64(data[6:14])
	payload := data[14:]
	if uint64(len(payload)) != length {
		return 0, nil, &InvalidEnvelopeError{Reason: "length mismatch"}
	}
	return kind, payload, nil
}
