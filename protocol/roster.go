package protocol

import (
	"sort"
	"sync"
)

// Roster is the set of principals authorized to submit observations.
// Mutations are coordinator-only, enforced at the transport layer; the
// roster itself only tracks the flags. Reads may race coordinator writes,
// writes are totally ordered by the mutex with last-write-wins semantics.
type Roster struct {
	mu         sync.RWMutex
	authorized map[string]bool
}

// NewRoster creates an empty reporter roster.
func NewRoster() *Roster {
	return &Roster{authorized: make(map[string]bool)}
}

// Authorize marks a principal as an authorized reporter. Idempotent.
func (r *Roster) Authorize(principal string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorized[principal] = true
}

// Revoke withdraws a principal's authorization. Idempotent. Revocation does
// not invalidate observations the reporter already submitted.
func (r *Roster) Revoke(principal string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.authorized, principal)
}

// Authorized reports whether a principal may currently submit.
func (r *Roster) Authorized(principal string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authorized[principal]
}

// Principals returns the currently authorized principals.
func (r *Roster) Principals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.authorized))
	for p := range r.authorized {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
