package confidential

import (
	"encoding/binary"
	"errors"
)

// ErrRange indicates a plaintext outside the declared domain, or a
// homomorphic result that would overflow the destination width.
var ErrRange = errors.New("value out of range")

// ErrDenied indicates a principal without a read capability attempted to
// decrypt a value.
var ErrDenied = errors.New("principal lacks read capability")

// Width is the bit-width of an encrypted scalar. The tracker uses 8-bit
// values for individual observations and 16-bit values for accumulators.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
)

// Valid returns true if the width is supported by the service.
func (w Width) Valid() bool {
	return w == Width8 || w == Width16
}

// Max returns the largest plaintext representable at this width.
func (w Width) Max() uint64 {
	return 1<<uint(w) - 1
}

// Handle is an opaque ciphertext identifier issued by the service.
// Handles carry no information about the underlying plaintext.
type Handle string

// Value is a reference to one encrypted scalar. Values are immutable:
// Add and Resize produce new values and never mutate their operands.
type Value struct {
	Handle Handle `json:"handle"`
	Width  Width  `json:"width"`
}

// Zero reports whether the value is the zero Value (no handle), not whether
// its plaintext is zero.
func (v Value) Zero() bool {
	return v.Handle == ""
}

// ProofDigest is the exact byte encoding a decrypt proof is computed over:
// the correlation id followed by each revealed plaintext as a big-endian
// uint64, in request order. Both the service (when signing) and the oracle
// client (when verifying) must use this encoding.
func ProofDigest(correlationID string, plaintexts []uint64) []byte {
	buf := make([]byte, 0, len(correlationID)+8*len(plaintexts))
	buf = append(buf, []byte(correlationID)...)
	for _, p := range plaintexts {
		buf = binary.BigEndian.AppendUint64(buf, p)
	}
	return buf
}
