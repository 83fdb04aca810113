package confidential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
)

func newTestService(t *testing.T) *LocalService {
	t.Helper()
	svc, err := NewLocalService()
	require.NoError(t, err)
	return svc
}

type callbackResult struct {
	correlationID string
	plaintexts    []uint64
	proof         []byte
}

func captureCallback(svc *LocalService) chan callbackResult {
	ch := make(chan callbackResult, 1)
	svc.SetCallback(func(correlationID string, plaintexts []uint64, proof []byte) {
		ch <- callbackResult{correlationID, plaintexts, proof}
	})
	return ch
}

func awaitCallback(t *testing.T, ch chan callbackResult) callbackResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt callback never arrived")
		return callbackResult{}
	}
}

func TestEncryptRejectsOutOfRange(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Encrypt(256, Width8)
	require.ErrorIs(t, err, ErrRange)

	_, err = svc.Encrypt(1<<16, Width16)
	require.ErrorIs(t, err, ErrRange)

	_, err = svc.Encrypt(7, Width(12))
	require.ErrorIs(t, err, ErrRange)
}

func TestAddRequiresMatchingWidths(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Encrypt(3, Width8)
	require.NoError(t, err)
	b, err := svc.Encrypt(4, Width16)
	require.NoError(t, err)

	_, err = svc.Add(a, b)
	require.ErrorIs(t, err, ErrRange)
}

func TestAddOverflowIsRangeError(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Encrypt(200, Width8)
	require.NoError(t, err)
	b, err := svc.Encrypt(100, Width8)
	require.NoError(t, err)

	_, err = svc.Add(a, b)
	require.ErrorIs(t, err, ErrRange)
}

func TestAddDoesNotMutateOperands(t *testing.T) {
	svc := newTestService(t)
	ch := captureCallback(svc)

	a, err := svc.Encrypt(5, Width16)
	require.NoError(t, err)
	b, err := svc.Encrypt(7, Width16)
	require.NoError(t, err)

	sum, err := svc.Add(a, b)
	require.NoError(t, err)
	require.NotEqual(t, a.Handle, sum.Handle)
	require.NotEqual(t, b.Handle, sum.Handle)

	require.NoError(t, svc.Grant(a, "reader"))
	require.NoError(t, svc.Grant(sum, "reader"))
	require.NoError(t, svc.RequestDecrypt("corr-1", "reader", []Value{a, sum}))

	res := awaitCallback(t, ch)
	require.Equal(t, []uint64{5, 12}, res.plaintexts)
}

func TestResizePreservesPlaintext(t *testing.T) {
	svc := newTestService(t)
	ch := captureCallback(svc)

	v, err := svc.Encrypt(9, Width8)
	require.NoError(t, err)

	wide, err := svc.Resize(v, Width16)
	require.NoError(t, err)
	require.Equal(t, Width16, wide.Width)

	require.NoError(t, svc.Grant(wide, "reader"))
	require.NoError(t, svc.RequestDecrypt("corr-resize", "reader", []Value{wide}))

	res := awaitCallback(t, ch)
	require.Equal(t, []uint64{9}, res.plaintexts)
}

func TestResizeNarrowingOverflowIsRangeError(t *testing.T) {
	svc := newTestService(t)

	v, err := svc.Encrypt(300, Width16)
	require.NoError(t, err)

	_, err = svc.Resize(v, Width8)
	require.ErrorIs(t, err, ErrRange)
}

func TestRequestDecryptRequiresCapability(t *testing.T) {
	svc := newTestService(t)
	captureCallback(svc)

	v, err := svc.Encrypt(1, Width8)
	require.NoError(t, err)

	err = svc.RequestDecrypt("corr-denied", "stranger", []Value{v})
	require.ErrorIs(t, err, ErrDenied)

	require.NoError(t, svc.Grant(v, "stranger"))
	require.NoError(t, svc.RequestDecrypt("corr-granted", "stranger", []Value{v}))
}

func TestGrantIsIdempotent(t *testing.T) {
	svc := newTestService(t)

	v, err := svc.Encrypt(1, Width8)
	require.NoError(t, err)

	require.NoError(t, svc.Grant(v, "reader"))
	require.NoError(t, svc.Grant(v, "reader"))
	require.True(t, svc.Granted(v, "reader"))
	require.False(t, svc.Granted(v, "other"))
}

func TestDecryptProofVerifies(t *testing.T) {
	svc := newTestService(t)
	ch := captureCallback(svc)

	v, err := svc.Encrypt(42, Width16)
	require.NoError(t, err)
	require.NoError(t, svc.Grant(v, "reader"))
	require.NoError(t, svc.RequestDecrypt("corr-proof", "reader", []Value{v}))

	res := awaitCallback(t, ch)
	digest := ProofDigest(res.correlationID, res.plaintexts)
	require.True(t, crypto.NewSignature(res.proof).Verify(svc.VerifyingKey(), digest))

	// Same proof over a different correlation id must not verify.
	other := ProofDigest("different", res.plaintexts)
	require.False(t, crypto.NewSignature(res.proof).Verify(svc.VerifyingKey(), other))
}
