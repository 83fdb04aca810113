package confidential

// DecryptCallback delivers the result of a decrypt request. The plaintexts
// are in request order and the proof covers ProofDigest(correlationID,
// plaintexts). Callbacks may arrive on any goroutine and may be delivered
// more than once; receivers must verify the proof before trusting the
// plaintexts.
type DecryptCallback func(correlationID string, plaintexts []uint64, proof []byte)

// Service is the confidential-compute API the tracker consumes. The
// encryption scheme behind it is opaque; the only contract is that
// plaintexts are reachable solely through RequestDecrypt, gated by
// capabilities.
type Service interface {
	// Encrypt encrypts a plaintext at the given width. Returns ErrRange if
	// the plaintext does not fit the width. The fresh value has an empty
	// capability set.
	Encrypt(plain uint64, width Width) (Value, error)

	// Add returns a new value whose plaintext is the sum of the operands.
	// Both operands must have the same width; a sum exceeding the width is
	// ErrRange. Operands are not mutated and the result has an empty
	// capability set.
	Add(a, b Value) (Value, error)

	// Resize returns a new value with the same plaintext at a different
	// width. Narrowing below the plaintext is ErrRange.
	Resize(v Value, width Width) (Value, error)

	// Grant adds principal to the value's capability set. Idempotent;
	// grants are never revoked.
	Grant(v Value, principal string) error

	// RequestDecrypt issues a fire-and-forget decryption of a batch of
	// values on behalf of principal, who must hold a read capability on
	// every value (ErrDenied otherwise). The matching callback eventually
	// carries the plaintexts and a proof bound to correlationID; there is
	// no implicit timeout or retry.
	RequestDecrypt(correlationID string, principal string, values []Value) error
}
