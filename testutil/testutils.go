// Package testutil provides shared fixtures for tests across the module.
package testutil

import (
	"sync"
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
)

// Clock is a controllable time source for tests. Its Now method plugs into
// the WithClock options of the engine and the oracle client.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current test time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// GenerateTestKeyPair creates an Ed25519 key pair for testing.
func GenerateTestKeyPair() (crypto.PublicKey, crypto.PrivateKey, error) {
	return crypto.GenerateKeyPair()
}
