package confidential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
)

// LocalService is an in-process confidential-compute service. Plaintexts are
// sealed with AES-256-GCM under a random per-process key, so even the hosting
// process never holds them unsealed outside an operation. Decrypt callbacks
// are delivered asynchronously with an Ed25519 proof.
//
// LocalService stands in for the external service in tests, the demo oracle
// binary and single-process deployments. It is not a hardware enclave and
// makes no claim beyond honest-but-curious hosting.
type LocalService struct {
	gcm        cipher.AEAD
	signingKey crypto.PrivateKey
	verifyKey  crypto.PublicKey

	mu       sync.Mutex
	entries  map[Handle]*entry
	callback DecryptCallback
}

type entry struct {
	sealed []byte
	nonce  []byte
	width  Width
	grants map[string]bool
}

// NewLocalService creates a local service with a fresh sealing key and a
// fresh proof signing key.
func NewLocalService() (*LocalService, error) {
	masterKey := make([]byte, 32)
	if _, err := rand.Read(masterKey); err != nil {
		return nil, fmt.Errorf("generate sealing key: %w", err)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	verifyKey, signingKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate proof key: %w", err)
	}

	return &LocalService{
		gcm:        gcm,
		signingKey: signingKey,
		verifyKey:  verifyKey,
		entries:    make(map[Handle]*entry),
	}, nil
}

// VerifyingKey returns the public key decrypt proofs are signed with.
func (s *LocalService) VerifyingKey() crypto.PublicKey {
	return s.verifyKey
}

// SetCallback sets the receiver for decrypt results. Must be set before the
// first RequestDecrypt.
func (s *LocalService) SetCallback(cb DecryptCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Encrypt encrypts a plaintext at the given width.
func (s *LocalService) Encrypt(plain uint64, width Width) (Value, error) {
	if !width.Valid() {
		return Value{}, fmt.Errorf("%w: unsupported width %d", ErrRange, width)
	}
	if plain > width.Max() {
		return Value{}, fmt.Errorf("%w: %d exceeds %d-bit domain", ErrRange, plain, width)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seal(plain, width)
}

// seal stores a plaintext under a fresh handle. Caller holds s.mu.
func (s *LocalService) seal(plain uint64, width Width) (Value, error) {
	handle := Handle(uuid.NewString())

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Value{}, fmt.Errorf("generate nonce: %w", err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], plain)
	// The handle is authenticated as additional data so ciphertexts cannot
	// be swapped between handles.
	sealed := s.gcm.Seal(nil, nonce, buf[:], []byte(handle))

	s.entries[handle] = &entry{
		sealed: sealed,
		nonce:  nonce,
		width:  width,
		grants: make(map[string]bool),
	}
	return Value{Handle: handle, Width: width}, nil
}

// unseal recovers a plaintext. Caller holds s.mu.
func (s *LocalService) unseal(v Value) (uint64, *entry, error) {
	e, ok := s.entries[v.Handle]
	if !ok {
		return 0, nil, errors.New("unknown ciphertext handle")
	}
	if e.width != v.Width {
		return 0, nil, errors.New("handle width mismatch")
	}

	buf, err := s.gcm.Open(nil, e.nonce, e.sealed, []byte(v.Handle))
	if err != nil {
		return 0, nil, fmt.Errorf("unseal: %w", err)
	}
	return binary.BigEndian.Uint64(buf), e, nil
}

// Add returns a new value holding the sum of the operands.
func (s *LocalService) Add(a, b Value) (Value, error) {
	if a.Width != b.Width {
		return Value{}, fmt.Errorf("%w: operand widths differ (%d vs %d)", ErrRange, a.Width, b.Width)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pa, _, err := s.unseal(a)
	if err != nil {
		return Value{}, err
	}
	pb, _, err := s.unseal(b)
	if err != nil {
		return Value{}, err
	}

	sum := pa + pb
	if sum > a.Width.Max() {
		return Value{}, fmt.Errorf("%w: sum %d overflows %d-bit width", ErrRange, sum, a.Width)
	}
	return s.seal(sum, a.Width)
}

// Resize returns a new value with the same plaintext at a different width.
func (s *LocalService) Resize(v Value, width Width) (Value, error) {
	if !width.Valid() {
		return Value{}, fmt.Errorf("%w: unsupported width %d", ErrRange, width)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plain, _, err := s.unseal(v)
	if err != nil {
		return Value{}, err
	}
	if plain > width.Max() {
		return Value{}, fmt.Errorf("%w: %d does not fit %d-bit width", ErrRange, plain, width)
	}
	return s.seal(plain, width)
}

// Grant adds principal to the value's capability set.
func (s *LocalService) Grant(v Value, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[v.Handle]
	if !ok {
		return errors.New("unknown ciphertext handle")
	}
	e.grants[principal] = true
	return nil
}

// Granted reports whether principal holds a read capability on the value.
func (s *LocalService) Granted(v Value, principal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[v.Handle]
	return ok && e.grants[principal]
}

// RequestDecrypt reveals a batch of plaintexts to a capability-holding
// principal via the configured callback.
func (s *LocalService) RequestDecrypt(correlationID string, principal string, values []Value) error {
	s.mu.Lock()

	if s.callback == nil {
		s.mu.Unlock()
		return errors.New("no decrypt callback configured")
	}

	plaintexts := make([]uint64, len(values))
	for i, v := range values {
		plain, e, err := s.unseal(v)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if !e.grants[principal] {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s on %s", ErrDenied, principal, v.Handle)
		}
		plaintexts[i] = plain
	}
	callback := s.callback
	s.mu.Unlock()

	proof, err := crypto.Sign(s.signingKey, ProofDigest(correlationID, plaintexts))
	if err != nil {
		return fmt.Errorf("sign proof: %w", err)
	}

	go callback(correlationID, plaintexts, proof.Bytes())
	return nil
}
