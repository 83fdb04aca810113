package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
)

type testPayload struct {
	Name  string `json:"name"`
	Score uint64 `json:"score"`
}

func TestSignedRoundtrip(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &testPayload{Name: "alice", Score: 7})
	require.NoError(t, err)

	serialized, err := SerializeMessage(signed)
	require.NoError(t, err)

	decoded, err := DecodeMessage[Signed[testPayload]](bytes.NewReader(serialized))
	require.NoError(t, err)

	obj, signer, err := decoded.Recover()
	require.NoError(t, err)
	require.True(t, signer.Equal(pub))
	require.Equal(t, "alice", obj.Name)
	require.Equal(t, uint64(7), obj.Score)
}

func TestSignedRejectsTamperedObject(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &testPayload{Name: "alice", Score: 7})
	require.NoError(t, err)
	signed.Object.Score = 10

	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedRejectsSubstitutedSigner(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := NewSigned(priv, &testPayload{Name: "alice"})
	require.NoError(t, err)
	signed.PublicKey = otherPub

	_, _, err = signed.Recover()
	require.Error(t, err)
}
