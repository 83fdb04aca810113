package protocol

import "time"

// PeriodRecord is the durable form of a Period. Ciphertext handles are
// persisted as opaque strings; plaintext aggregates only once revealed.
type PeriodRecord struct {
	ID              uint64
	Status          PeriodStatus
	SymptomHandle   string
	ExposureHandle  string
	Participants    []string
	StartTime       time.Time
	EndTime         time.Time
	RequestID       string
	SymptomTotal    uint64
	ExposureTotal   uint64
	Revealed        bool
	SymptomAlerted  bool
	ExposureAlerted bool
}

// ObservationRecord is the durable form of an Observation.
type ObservationRecord struct {
	PeriodID       uint64
	Reporter       string
	SymptomHandle  string
	ExposureHandle string
	SubmittedAt    time.Time
}

// Store persists period and observation records. Any durable mapping of
// period id to record and (period id, reporter) to record satisfies the
// model; the engine writes through on every mutation.
type Store interface {
	SavePeriod(*PeriodRecord) error
	SaveObservation(*ObservationRecord) error
	LoadPeriods() ([]*PeriodRecord, error)
	LoadObservations() ([]*ObservationRecord, error)
}

func recordForPeriod(p *Period) *PeriodRecord {
	rec := &PeriodRecord{
		ID:             p.ID,
		Status:         p.Status,
		SymptomHandle:  string(p.SymptomSum.Handle),
		ExposureHandle: string(p.ExposureSum.Handle),
		Participants:   append([]string(nil), p.Participants...),
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		RequestID:      p.RequestID,
		SymptomTotal:   p.SymptomTotal,
		ExposureTotal:  p.ExposureTotal,
		Revealed:       p.Revealed,
	}
	if p.Alerts != nil {
		rec.SymptomAlerted = p.Alerts.SymptomAlert
		rec.ExposureAlerted = p.Alerts.ExposureAlert
	}
	return rec
}

func recordForObservation(o *Observation) *ObservationRecord {
	return &ObservationRecord{
		PeriodID:       o.PeriodID,
		Reporter:       o.Reporter,
		SymptomHandle:  string(o.Symptom.Handle),
		ExposureHandle: string(o.Exposure.Handle),
		SubmittedAt:    o.SubmittedAt,
	}
}
