// Package oracle implements the client side of the asynchronous
// decrypt-request/callback protocol. Requests are fire-and-forget; the only
// contract is that a matching callback eventually arrives, carrying
// plaintexts and a proof signed by the decrypt oracle. Verification is
// strict: an unknown, reused or stale correlation id, or a proof that does
// not match the exact byte encoding of the plaintexts, rejects the callback
// outright. There is no partial-trust fallback.
package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
)

// ErrProof indicates a decrypt callback that failed verification. No
// plaintext from such a callback may be accepted into engine state.
var ErrProof = errors.New("decrypt proof verification failed")

// DefaultRequestTTL bounds how long a pending request stays verifiable.
// Callbacks arriving later are treated as stale and rejected; the
// coordinator re-requests instead.
const DefaultRequestTTL = 24 * time.Hour

type pendingRequest struct {
	values   []confidential.Value
	issuedAt time.Time
}

// Client tracks in-flight decrypt requests and verifies their callbacks
// against the oracle's signing key.
type Client struct {
	svc       confidential.Service
	oracleKey crypto.PublicKey
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// Option configures a Client.
type Option func(*Client)

// WithRequestTTL overrides the staleness bound for pending requests.
func WithRequestTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithClock overrides the time source. Only used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates an oracle client bound to a confidential-compute service
// and the oracle's proof verification key.
func NewClient(svc confidential.Service, oracleKey crypto.PublicKey, opts ...Option) *Client {
	c := &Client{
		svc:       svc,
		oracleKey: oracleKey,
		ttl:       DefaultRequestTTL,
		now:       time.Now,
		pending:   make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request issues a fire-and-forget decryption of a batch of values on behalf
// of principal. The correlation id must be fresh; reusing an id that is
// still pending is an error so callbacks can never be ambiguous.
func (c *Client) Request(correlationID string, principal string, values []confidential.Value) error {
	c.mu.Lock()
	if _, exists := c.pending[correlationID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("correlation id %q already in flight", correlationID)
	}
	c.pending[correlationID] = &pendingRequest{
		values:   append([]confidential.Value(nil), values...),
		issuedAt: c.now(),
	}
	c.mu.Unlock()

	if err := c.svc.RequestDecrypt(correlationID, principal, values); err != nil {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Forget drops a pending request. Used when the coordinator abandons an
// in-flight decryption, for example before re-requesting with a fresh id.
func (c *Client) Forget(correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, correlationID)
}

// Verify checks a decrypt callback. On success the pending entry is
// consumed, so a second callback for the same correlation id is rejected as
// reused. On failure the entry is kept; the coordinator decides whether to
// re-request.
func (c *Client) Verify(correlationID string, plaintexts []uint64, proof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[correlationID]
	if !ok {
		return fmt.Errorf("%w: unknown or reused correlation id %q", ErrProof, correlationID)
	}
	if c.now().Sub(req.issuedAt) > c.ttl {
		return fmt.Errorf("%w: correlation id %q is stale", ErrProof, correlationID)
	}
	if len(plaintexts) != len(req.values) {
		return fmt.Errorf("%w: expected %d plaintexts, got %d", ErrProof, len(req.values), len(plaintexts))
	}

	digest := confidential.ProofDigest(correlationID, plaintexts)
	if !crypto.NewSignature(proof).Verify(c.oracleKey, digest) {
		return fmt.Errorf("%w: signature does not match plaintext encoding", ErrProof)
	}

	delete(c.pending, correlationID)
	return nil
}

// Pending reports whether a correlation id has an unconsumed request.
func (c *Client) Pending(correlationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[correlationID]
	return ok
}
