package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

func TestMemoryStorePeriods(t *testing.T) {
	s := NewMemoryStore()

	rec := &protocol.PeriodRecord{
		ID:            2,
		Status:        protocol.StatusActive,
		SymptomHandle: "h-sym",
		Participants:  []string{"alice"},
		StartTime:     time.Now(),
	}
	require.NoError(t, s.SavePeriod(rec))
	require.NoError(t, s.SavePeriod(&protocol.PeriodRecord{ID: 1, Status: protocol.StatusFinalized}))

	// Later saves of the same id overwrite.
	rec.Status = protocol.StatusAwaitingDecryption
	require.NoError(t, s.SavePeriod(rec))

	// Mutating the caller's record after save must not leak into the store.
	rec.Participants[0] = "mallory"

	loaded, err := s.LoadPeriods()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, uint64(1), loaded[0].ID)
	require.Equal(t, uint64(2), loaded[1].ID)
	require.Equal(t, protocol.StatusAwaitingDecryption, loaded[1].Status)
	require.Equal(t, []string{"alice"}, loaded[1].Participants)
}

func TestMemoryStoreObservations(t *testing.T) {
	s := NewMemoryStore()

	base := time.Now()
	require.NoError(t, s.SaveObservation(&protocol.ObservationRecord{
		PeriodID: 1, Reporter: "bob", SubmittedAt: base.Add(time.Minute),
	}))
	require.NoError(t, s.SaveObservation(&protocol.ObservationRecord{
		PeriodID: 1, Reporter: "alice", SubmittedAt: base,
	}))

	loaded, err := s.LoadObservations()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "alice", loaded[0].Reporter)
	require.Equal(t, "bob", loaded[1].Reporter)
}
