package protocol

import (
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/alert"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
)

// PeriodStatus is the stored lifecycle state of a reporting window. Note
// that an Active period whose window has elapsed is still stored as Active
// until someone requests finalization; clock-derived eligibility is reported
// separately (see Engine.CurrentSummary).
type PeriodStatus string

const (
	// StatusClosed means no period record exists yet for the ordinal.
	StatusClosed PeriodStatus = "closed"
	// StatusActive means the window is open for submissions.
	StatusActive PeriodStatus = "active"
	// StatusAwaitingDecryption means the window elapsed and a decrypt
	// request is in flight.
	StatusAwaitingDecryption PeriodStatus = "awaiting_decryption"
	// StatusFinalized is terminal: aggregates revealed, alerts derived.
	StatusFinalized PeriodStatus = "finalized"
	// StatusEmergencyEnded is terminal: closed without decryption, no
	// aggregate ever revealed.
	StatusEmergencyEnded PeriodStatus = "emergency_ended"
)

// Terminal reports whether the status admits no further transitions.
func (s PeriodStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusEmergencyEnded
}

// Period is one reporting window. Owned exclusively by the engine; all
// access goes through the engine's mutex.
type Period struct {
	ID     uint64
	Status PeriodStatus

	// Encrypted running sums. Readable only by the engine principal.
	SymptomSum  confidential.Value
	ExposureSum confidential.Value

	// Participants lists submitting reporters in submission order.
	// len(Participants) is the participant count.
	Participants []string

	StartTime time.Time
	EndTime   time.Time // zero until terminal

	// RequestID correlates the in-flight decrypt request, if any.
	RequestID string

	// Set only at finalize, never for emergency-ended periods.
	SymptomTotal  uint64
	ExposureTotal uint64
	Revealed      bool
	Alerts        *alert.Result
}

// Observation is one reporter's submission in one period. Immutable after
// creation; retained for audit even after its period is superseded.
type Observation struct {
	PeriodID uint64
	Reporter string

	// Encrypted scalars, readable by the engine and the submitting
	// reporter only.
	Symptom  confidential.Value
	Exposure confidential.Value

	Submitted   bool
	SubmittedAt time.Time
}

// Summary is the public view of a period. Plaintext aggregates appear only
// for finalized periods.
type Summary struct {
	ID               uint64        `json:"id"`
	Status           PeriodStatus  `json:"status"`
	Active           bool          `json:"active"`
	Ended            bool          `json:"ended"`
	StartTime        time.Time     `json:"start_time,omitempty"`
	EndTime          time.Time     `json:"end_time,omitempty"`
	ParticipantCount int           `json:"participant_count"`
	TimeRemaining    time.Duration `json:"time_remaining,string,omitempty"`

	SymptomTotal  *uint64       `json:"symptom_total,omitempty"`
	ExposureTotal *uint64       `json:"exposure_total,omitempty"`
	Alerts        *alert.Result `json:"alerts,omitempty"`
}

// SubmissionStatus is a reporter's view of their own submission in the
// current period.
type SubmissionStatus struct {
	PeriodID    uint64    `json:"period_id"`
	Submitted   bool      `json:"submitted"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

// Thresholds are the plain alert bounds. Coordinator-mutable at any time;
// they affect only future finalizations.
type Thresholds struct {
	Symptom  uint64 `json:"symptom"`
	Exposure uint64 `json:"exposure"`
}

// FinalizeResult reports the outcome of a verified decrypt callback.
type FinalizeResult struct {
	PeriodID      uint64       `json:"period_id"`
	SymptomTotal  uint64       `json:"symptom_total"`
	ExposureTotal uint64       `json:"exposure_total"`
	Alerts        alert.Result `json:"alerts"`
}
