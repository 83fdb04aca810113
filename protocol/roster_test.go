package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRosterAuthorizeRevoke(t *testing.T) {
	r := NewRoster()
	require.False(t, r.Authorized("alice"))

	r.Authorize("alice")
	require.True(t, r.Authorized("alice"))

	// Idempotent both ways.
	r.Authorize("alice")
	require.Len(t, r.Principals(), 1)

	r.Revoke("alice")
	require.False(t, r.Authorized("alice"))
	r.Revoke("alice")
	require.Empty(t, r.Principals())
}

func TestRosterPrincipalsSorted(t *testing.T) {
	r := NewRoster()
	r.Authorize("charlie")
	r.Authorize("alice")
	r.Authorize("bob")

	require.Equal(t, []string{"alice", "bob", "charlie"}, r.Principals())
}
