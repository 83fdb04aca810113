package protocol

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/oracle"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/testutil"
)

const testWindow = time.Hour

type engineFixture struct {
	engine *Engine
	svc    *confidential.LocalService
	roster *Roster
	clock  *testutil.Clock

	callbacks chan decryptCallback
}

type decryptCallback struct {
	correlationID string
	plaintexts    []uint64
	proof         []byte
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	svc, err := confidential.NewLocalService()
	require.NoError(t, err)

	f := &engineFixture{
		svc:       svc,
		roster:    NewRoster(),
		clock:     testutil.NewClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		callbacks: make(chan decryptCallback, 4),
	}
	svc.SetCallback(func(correlationID string, plaintexts []uint64, proof []byte) {
		f.callbacks <- decryptCallback{correlationID, plaintexts, proof}
	})

	oracleClient := oracle.NewClient(svc, svc.VerifyingKey(), oracle.WithClock(f.clock.Now))
	f.engine = NewEngine(
		EngineConfig{Window: testWindow, Principal: "engine"},
		svc, oracleClient, f.roster,
		slog.New(slog.NewTextHandler(testWriter{t}, nil)),
		WithClock(f.clock.Now),
	)
	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (f *engineFixture) advance(d time.Duration) {
	f.clock.Advance(d)
}

func (f *engineFixture) await(t *testing.T) decryptCallback {
	t.Helper()
	select {
	case cb := <-f.callbacks:
		return cb
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt callback never arrived")
		return decryptCallback{}
	}
}

// finalize runs the full elapse-request-callback sequence for the current
// period and returns the result.
func (f *engineFixture) finalize(t *testing.T) *FinalizeResult {
	t.Helper()

	f.advance(testWindow)
	_, err := f.engine.RequestFinalize()
	require.NoError(t, err)

	cb := f.await(t)
	require.Len(t, cb.plaintexts, 2)

	res, err := f.engine.HandleDecryptCallback(cb.correlationID, cb.plaintexts[0], cb.plaintexts[1], cb.proof)
	require.NoError(t, err)
	return res
}

func TestSingleSubmissionIdentity(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 7, 4))

	res := f.finalize(t)
	require.Equal(t, uint64(7), res.SymptomTotal)
	require.Equal(t, uint64(4), res.ExposureTotal)
}

func TestAggregationSumsAllSubmissions(t *testing.T) {
	f := newEngineFixture(t)

	reporters := []struct {
		name              string
		symptom, exposure uint64
	}{
		{"r1", 10, 5}, {"r2", 0, 0}, {"r3", 3, 2}, {"r4", 9, 1}, {"r5", 6, 5},
	}

	var wantSymptom, wantExposure uint64
	for _, r := range reporters {
		f.roster.Authorize(r.name)
		wantSymptom += r.symptom
		wantExposure += r.exposure
	}

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	for _, r := range reporters {
		require.NoError(t, f.engine.Submit(r.name, r.symptom, r.exposure))
	}

	summary := f.engine.CurrentSummary()
	require.Equal(t, len(reporters), summary.ParticipantCount)

	res := f.finalize(t)
	require.Equal(t, wantSymptom, res.SymptomTotal)
	require.Equal(t, wantExposure, res.ExposureTotal)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 5, 2))

	err = f.engine.Submit("alice", 1, 1)
	require.ErrorIs(t, err, ErrDuplicate)
	require.Equal(t, 1, f.engine.CurrentSummary().ParticipantCount)

	// The rejected call must not have touched the accumulators.
	res := f.finalize(t)
	require.Equal(t, uint64(5), res.SymptomTotal)
	require.Equal(t, uint64(2), res.ExposureTotal)
}

func TestOutOfRangeSubmissionRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")
	f.roster.Authorize("bob")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Submit("alice", 11, 0), ErrRange)
	require.ErrorIs(t, f.engine.Submit("alice", 0, 6), ErrRange)
	require.Equal(t, 0, f.engine.CurrentSummary().ParticipantCount)

	// State unchanged: a valid submission still lands cleanly.
	require.NoError(t, f.engine.Submit("bob", 2, 1))
	res := f.finalize(t)
	require.Equal(t, uint64(2), res.SymptomTotal)
	require.Equal(t, uint64(1), res.ExposureTotal)
}

func TestUnauthorizedReporterRejected(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Submit("stranger", 1, 1), ErrAuthorization)
}

func TestRevokeBlocksFutureSubmissionsOnly(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")
	f.roster.Authorize("bob")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 5, 2))

	f.roster.Revoke("alice")
	f.roster.Revoke("bob")

	require.ErrorIs(t, f.engine.Submit("bob", 1, 1), ErrAuthorization)

	// Alice's prior observation survives revocation.
	res := f.finalize(t)
	require.Equal(t, uint64(5), res.SymptomTotal)
	require.Equal(t, uint64(2), res.ExposureTotal)
}

func TestTamperedProofKeepsPeriodAwaiting(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 5, 2))

	f.advance(testWindow)
	_, err = f.engine.RequestFinalize()
	require.NoError(t, err)

	cb := f.await(t)
	tampered := append([]byte(nil), cb.proof...)
	tampered[0] ^= 0xff

	_, err = f.engine.HandleDecryptCallback(cb.correlationID, cb.plaintexts[0], cb.plaintexts[1], tampered)
	require.ErrorIs(t, err, ErrProof)

	require.Equal(t, StatusAwaitingDecryption, f.engine.CurrentSummary().Status)
	require.Nil(t, f.engine.CurrentSummary().SymptomTotal)

	// Coordinator recovery: a fresh request supersedes the old one.
	_, err = f.engine.RequestFinalize()
	require.NoError(t, err)

	cb2 := f.await(t)
	res, err := f.engine.HandleDecryptCallback(cb2.correlationID, cb2.plaintexts[0], cb2.plaintexts[1], cb2.proof)
	require.NoError(t, err)
	require.Equal(t, uint64(5), res.SymptomTotal)
}

func TestFullScenarioTwoReporters(t *testing.T) {
	f := newEngineFixture(t)

	summary, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.Equal(t, uint64(1), summary.ID)

	f.roster.Authorize("A")
	f.roster.Authorize("B")

	require.NoError(t, f.engine.Submit("A", 5, 2))
	require.NoError(t, f.engine.Submit("B", 3, 1))

	res := f.finalize(t)
	require.Equal(t, uint64(8), res.SymptomTotal)
	require.Equal(t, uint64(3), res.ExposureTotal)
	require.False(t, res.Alerts.SymptomAlert)  // 8 <= default 50
	require.False(t, res.Alerts.ExposureAlert) // 3 <= default 30

	hist, err := f.engine.HistoricalSummary(1)
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, hist.Status)
	require.Equal(t, 2, hist.ParticipantCount)

	// Current period advanced to ordinal 2.
	current := f.engine.CurrentSummary()
	require.Equal(t, uint64(2), current.ID)
	require.Equal(t, StatusClosed, current.Status)
}

func TestEmergencyEndWithZeroSubmissions(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.EmergencyEnd())

	hist, err := f.engine.HistoricalSummary(1)
	require.NoError(t, err)
	require.Equal(t, StatusEmergencyEnded, hist.Status)
	require.Equal(t, 0, hist.ParticipantCount)
	require.Nil(t, hist.SymptomTotal)
	require.Nil(t, hist.ExposureTotal)
	require.Nil(t, hist.Alerts)

	require.Equal(t, uint64(2), f.engine.CurrentSummary().ID)
}

func TestEmergencyEndRequiresActivePeriod(t *testing.T) {
	f := newEngineFixture(t)

	require.ErrorIs(t, f.engine.EmergencyEnd(), ErrConflict)

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	f.advance(testWindow)
	_, err = f.engine.RequestFinalize()
	require.NoError(t, err)
	f.await(t)

	require.ErrorIs(t, f.engine.EmergencyEnd(), ErrConflict)
}

func TestOpenPeriodConflictsWithOpenOne(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	_, err = f.engine.OpenPeriod()
	require.ErrorIs(t, err, ErrConflict)
}

func TestRequestFinalizeBeforeWindowIsNotReady(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	f.advance(testWindow / 2)
	_, err = f.engine.RequestFinalize()
	require.ErrorIs(t, err, ErrNotReady)
}

func TestElapsedWindowKeepsStoredStatusActive(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.True(t, f.engine.IsActive())
	require.False(t, f.engine.IsFinalizeEligible())

	f.advance(testWindow)

	// Stored status stays Active until finalize is requested, but the
	// clock-derived view reports closed for submission.
	summary := f.engine.CurrentSummary()
	require.Equal(t, StatusActive, summary.Status)
	require.False(t, summary.Active)
	require.Zero(t, summary.TimeRemaining)
	require.False(t, f.engine.IsActive())
	require.True(t, f.engine.IsFinalizeEligible())

	require.ErrorIs(t, f.engine.Submit("alice", 1, 1), ErrConflict)
}

func TestDuplicateCallbackRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 5, 2))

	f.advance(testWindow)
	_, err = f.engine.RequestFinalize()
	require.NoError(t, err)

	cb := f.await(t)
	_, err = f.engine.HandleDecryptCallback(cb.correlationID, cb.plaintexts[0], cb.plaintexts[1], cb.proof)
	require.NoError(t, err)

	// The second delivery of the same callback is rejected, not reprocessed.
	_, err = f.engine.HandleDecryptCallback(cb.correlationID, cb.plaintexts[0], cb.plaintexts[1], cb.proof)
	require.ErrorIs(t, err, ErrProof)

	hist, err := f.engine.HistoricalSummary(1)
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, hist.Status)
}

func TestThresholdsAffectOnlyFutureFinalizations(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 9, 4))

	f.engine.SetThresholds(Thresholds{Symptom: 5, Exposure: 3})
	res := f.finalize(t)
	require.True(t, res.Alerts.SymptomAlert)  // 9 > 5
	require.True(t, res.Alerts.ExposureAlert) // 4 > 3

	// Tightened thresholds do not rewrite history.
	f.engine.SetThresholds(Thresholds{Symptom: 100, Exposure: 100})
	hist, err := f.engine.HistoricalSummary(1)
	require.NoError(t, err)
	require.True(t, hist.Alerts.SymptomAlert)
}

func TestSubmissionStatus(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)

	require.False(t, f.engine.SubmissionStatus("alice").Submitted)
	require.NoError(t, f.engine.Submit("alice", 3, 1))

	status := f.engine.SubmissionStatus("alice")
	require.True(t, status.Submitted)
	require.Equal(t, uint64(1), status.PeriodID)
	require.False(t, f.engine.SubmissionStatus("bob").Submitted)
}

func TestHistoricalSummaryOfIncompletePeriod(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.HistoricalSummary(1)
	require.ErrorIs(t, err, ErrNotReady)

	_, err = f.engine.OpenPeriod()
	require.NoError(t, err)

	_, err = f.engine.HistoricalSummary(1)
	require.ErrorIs(t, err, ErrNotReady)

	_, err = f.engine.HistoricalSummary(99)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestReporterCapabilitiesAreDualAccess(t *testing.T) {
	f := newEngineFixture(t)
	f.roster.Authorize("alice")
	f.roster.Authorize("bob")

	_, err := f.engine.OpenPeriod()
	require.NoError(t, err)
	require.NoError(t, f.engine.Submit("alice", 5, 2))

	obs := f.engine.observations[1]["alice"]
	require.NotNil(t, obs)
	require.True(t, f.svc.Granted(obs.Symptom, "engine"))
	require.True(t, f.svc.Granted(obs.Symptom, "alice"))
	require.False(t, f.svc.Granted(obs.Symptom, "bob"))

	// The accumulator is engine-only.
	p := f.engine.periods[1]
	require.True(t, f.svc.Granted(p.SymptomSum, "engine"))
	require.False(t, f.svc.Granted(p.SymptomSum, "alice"))
}
