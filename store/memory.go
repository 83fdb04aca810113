package store

import (
	"sort"
	"sync"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

// MemoryStore implements protocol.Store without a database. Used for tests
// and single-process deployments.
type MemoryStore struct {
	mu           sync.Mutex
	periods      map[uint64]*protocol.PeriodRecord
	observations map[uint64]map[string]*protocol.ObservationRecord
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		periods:      make(map[uint64]*protocol.PeriodRecord),
		observations: make(map[uint64]map[string]*protocol.ObservationRecord),
	}
}

// SavePeriod stores a copy of the period record.
func (s *MemoryStore) SavePeriod(rec *protocol.PeriodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	cp.Participants = append([]string(nil), rec.Participants...)
	s.periods[rec.ID] = &cp
	return nil
}

// SaveObservation stores a copy of the observation record.
func (s *MemoryStore) SaveObservation(rec *protocol.ObservationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byReporter := s.observations[rec.PeriodID]
	if byReporter == nil {
		byReporter = make(map[string]*protocol.ObservationRecord)
		s.observations[rec.PeriodID] = byReporter
	}
	cp := *rec
	byReporter[rec.Reporter] = &cp
	return nil
}

// LoadPeriods returns all stored period records ordered by id.
func (s *MemoryStore) LoadPeriods() ([]*protocol.PeriodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*protocol.PeriodRecord, 0, len(s.periods))
	for _, rec := range s.periods {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadObservations returns all stored observation records ordered by period
// and submission time.
func (s *MemoryStore) LoadObservations() ([]*protocol.ObservationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*protocol.ObservationRecord
	for _, byReporter := range s.observations {
		for _, rec := range byReporter {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodID != out[j].PeriodID {
			return out[i].PeriodID < out[j].PeriodID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
