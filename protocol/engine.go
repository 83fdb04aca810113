package protocol

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/alert"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/oracle"
)

// Domain bounds for a single observation.
const (
	MaxSymptomScore  = 10
	MaxExposureScore = 5
)

// Default alert thresholds, overridable by the coordinator at any time.
const (
	DefaultSymptomThreshold  = 50
	DefaultExposureThreshold = 30
)

// DefaultWindow is the default reporting window length.
const DefaultWindow = 7 * 24 * time.Hour

// EngineConfig configures a period engine.
type EngineConfig struct {
	// Window is the submission window length for each period.
	Window time.Duration

	// Principal is the engine's own capability principal, granted read
	// access on every accumulator and observation it creates.
	Principal string

	// Thresholds are the initial alert bounds.
	Thresholds Thresholds
}

// Engine is the period state machine. All mutating operations are
// serialized by a single mutex; the period status field is the mutual
// exclusion flag between submission and finalization. No operation blocks
// internally; RequestFinalize returns as soon as the decrypt request is
// issued and HandleDecryptCallback is the asynchronous re-entry point.
type Engine struct {
	cfg    EngineConfig
	svc    confidential.Service
	oracle *oracle.Client
	roster *Roster
	store  Store
	log    *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	currentID    uint64
	periods      map[uint64]*Period
	observations map[uint64]map[string]*Observation
	requests     map[string]uint64 // correlation id -> period id
	thresholds   Thresholds
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the engine's time source. Only used in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithStore attaches a durable store the engine writes through on every
// period and observation mutation.
func WithStore(store Store) EngineOption {
	return func(e *Engine) { e.store = store }
}

// NewEngine creates an engine with no open period. The first ordinal is 1;
// the coordinator opens it explicitly.
func NewEngine(cfg EngineConfig, svc confidential.Service, oracleClient *oracle.Client, roster *Roster, log *slog.Logger, opts ...EngineOption) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = Thresholds{Symptom: DefaultSymptomThreshold, Exposure: DefaultExposureThreshold}
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		cfg:          cfg,
		svc:          svc,
		oracle:       oracleClient,
		roster:       roster,
		log:          log,
		now:          time.Now,
		currentID:    1,
		periods:      make(map[uint64]*Period),
		observations: make(map[uint64]map[string]*Observation),
		requests:     make(map[string]uint64),
		thresholds:   cfg.Thresholds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Roster returns the reporter roster the engine validates submissions
// against.
func (e *Engine) Roster() *Roster {
	return e.roster
}

// OpenPeriod opens the current ordinal for submissions. Allowed only while
// no period record exists for it (the previous one, if any, was finalized
// or emergency-ended and advanced the pointer).
func (e *Engine) OpenPeriod() (*Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p := e.periods[e.currentID]; p != nil {
		return nil, fmt.Errorf("%w: period %d is %s", ErrConflict, p.ID, p.Status)
	}

	symptomSum, err := e.newAccumulator()
	if err != nil {
		return nil, err
	}
	exposureSum, err := e.newAccumulator()
	if err != nil {
		return nil, err
	}

	p := &Period{
		ID:          e.currentID,
		Status:      StatusActive,
		SymptomSum:  symptomSum,
		ExposureSum: exposureSum,
		StartTime:   e.now(),
	}
	e.periods[p.ID] = p
	e.observations[p.ID] = make(map[string]*Observation)
	e.persistPeriod(p)

	e.log.Info("period opened", "period", p.ID, "window", e.cfg.Window)
	return e.summaryLocked(p), nil
}

// newAccumulator creates an encrypted zero with the engine granted read
// access. Caller holds e.mu.
func (e *Engine) newAccumulator() (confidential.Value, error) {
	acc, err := e.svc.Encrypt(0, confidential.Width16)
	if err != nil {
		return confidential.Value{}, fmt.Errorf("encrypt zero accumulator: %w", err)
	}
	if err := e.svc.Grant(acc, e.cfg.Principal); err != nil {
		return confidential.Value{}, fmt.Errorf("grant accumulator to engine: %w", err)
	}
	return acc, nil
}

// Submit records one reporter's observation in the current period. The
// scalars are encrypted, granted to the engine and the reporter (dual
// access, never third-party), and folded into the accumulators. Any
// rejection leaves period state untouched.
func (e *Engine) Submit(reporter string, symptom, exposure uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	if p == nil || p.Status != StatusActive {
		return fmt.Errorf("%w: no active period", ErrConflict)
	}
	if e.now().Sub(p.StartTime) >= e.cfg.Window {
		return fmt.Errorf("%w: submission window for period %d has elapsed", ErrConflict, p.ID)
	}
	if !e.roster.Authorized(reporter) {
		return fmt.Errorf("%w: reporter %s", ErrAuthorization, reporter)
	}
	if symptom > MaxSymptomScore {
		return fmt.Errorf("%w: symptom score %d exceeds %d", ErrRange, symptom, MaxSymptomScore)
	}
	if exposure > MaxExposureScore {
		return fmt.Errorf("%w: exposure score %d exceeds %d", ErrRange, exposure, MaxExposureScore)
	}
	if obs := e.observations[p.ID][reporter]; obs != nil && obs.Submitted {
		return fmt.Errorf("%w %d: reporter %s", ErrDuplicate, p.ID, reporter)
	}

	// All confidential-service work happens on temporaries; engine state
	// is mutated only after every call succeeded, so a failed submission
	// is atomic.
	encSymptom, err := e.encryptObserved(symptom, reporter)
	if err != nil {
		return err
	}
	encExposure, err := e.encryptObserved(exposure, reporter)
	if err != nil {
		return err
	}

	newSymptomSum, err := e.accumulate(p.SymptomSum, encSymptom)
	if err != nil {
		return err
	}
	newExposureSum, err := e.accumulate(p.ExposureSum, encExposure)
	if err != nil {
		return err
	}

	now := e.now()
	obs := &Observation{
		PeriodID:    p.ID,
		Reporter:    reporter,
		Symptom:     encSymptom,
		Exposure:    encExposure,
		Submitted:   true,
		SubmittedAt: now,
	}

	p.SymptomSum = newSymptomSum
	p.ExposureSum = newExposureSum
	p.Participants = append(p.Participants, reporter)
	e.observations[p.ID][reporter] = obs
	e.persistPeriod(p)
	e.persistObservation(obs)

	e.log.Info("observation accepted", "period", p.ID, "reporter", reporter, "participants", len(p.Participants))
	return nil
}

// encryptObserved encrypts one 8-bit scalar and grants read access to the
// engine and the submitting reporter. Caller holds e.mu.
func (e *Engine) encryptObserved(plain uint64, reporter string) (confidential.Value, error) {
	v, err := e.svc.Encrypt(plain, confidential.Width8)
	if err != nil {
		return confidential.Value{}, err
	}
	if err := e.svc.Grant(v, e.cfg.Principal); err != nil {
		return confidential.Value{}, fmt.Errorf("grant to engine: %w", err)
	}
	if err := e.svc.Grant(v, reporter); err != nil {
		return confidential.Value{}, fmt.Errorf("grant to reporter: %w", err)
	}
	return v, nil
}

// accumulate widens an 8-bit observation and adds it into a 16-bit
// accumulator, granting the engine read access on the new sum. Caller
// holds e.mu.
func (e *Engine) accumulate(sum, obs confidential.Value) (confidential.Value, error) {
	widened, err := e.svc.Resize(obs, confidential.Width16)
	if err != nil {
		return confidential.Value{}, err
	}
	newSum, err := e.svc.Add(sum, widened)
	if err != nil {
		return confidential.Value{}, err
	}
	if err := e.svc.Grant(newSum, e.cfg.Principal); err != nil {
		return confidential.Value{}, fmt.Errorf("grant accumulator to engine: %w", err)
	}
	return newSum, nil
}

// RequestFinalize transitions the current period to AwaitingDecryption and
// issues one decrypt request bundling both accumulators, tagged with the
// period id. Calling it again while already awaiting re-requests with a
// fresh correlation id (the recovery path after a dropped callback or a
// failed proof); the previous request is forgotten.
func (e *Engine) RequestFinalize() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	if p == nil {
		return "", fmt.Errorf("%w: no open period", ErrConflict)
	}

	switch p.Status {
	case StatusActive:
		if e.now().Sub(p.StartTime) < e.cfg.Window {
			return "", fmt.Errorf("%w: window for period %d has not elapsed", ErrNotReady, p.ID)
		}
	case StatusAwaitingDecryption:
		// Re-request: invalidate the in-flight correlation id first.
		e.oracle.Forget(p.RequestID)
		delete(e.requests, p.RequestID)
	default:
		return "", fmt.Errorf("%w: period %d is %s", ErrConflict, p.ID, p.Status)
	}

	correlationID := fmt.Sprintf("period-%d-%s", p.ID, uuid.NewString())
	if err := e.oracle.Request(correlationID, e.cfg.Principal, []confidential.Value{p.SymptomSum, p.ExposureSum}); err != nil {
		return "", fmt.Errorf("issue decrypt request: %w", err)
	}

	p.Status = StatusAwaitingDecryption
	p.RequestID = correlationID
	e.requests[correlationID] = p.ID
	e.persistPeriod(p)

	e.log.Info("decryption requested", "period", p.ID, "correlation_id", correlationID)
	return correlationID, nil
}

// HandleDecryptCallback processes a decrypt callback. The proof is verified
// against the exact byte encoding of (symptomTotal, exposureTotal) before
// any state changes; a failed verification leaves the period in
// AwaitingDecryption and is retriable with a fresh request. On success the
// period is finalized, alerts are derived with the thresholds in force at
// this moment, and the current ordinal advances.
func (e *Engine) HandleDecryptCallback(correlationID string, symptomTotal, exposureTotal uint64, proof []byte) (*FinalizeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	periodID, ok := e.requests[correlationID]
	if !ok {
		// Unknown or already-consumed id: includes duplicate callbacks
		// for a period that is already finalized.
		return nil, fmt.Errorf("%w: no decryption awaited for correlation id %q", ErrProof, correlationID)
	}

	p := e.periods[periodID]
	if p == nil || p.Status != StatusAwaitingDecryption || p.RequestID != correlationID {
		return nil, fmt.Errorf("%w: period %d not awaiting this decryption", ErrConflict, periodID)
	}

	if err := e.oracle.Verify(correlationID, []uint64{symptomTotal, exposureTotal}, proof); err != nil {
		e.log.Warn("decrypt callback rejected", "period", p.ID, "correlation_id", correlationID, "err", err)
		return nil, err
	}

	delete(e.requests, correlationID)

	res := alert.Evaluate(symptomTotal, exposureTotal, e.thresholds.Symptom, e.thresholds.Exposure)

	p.SymptomTotal = symptomTotal
	p.ExposureTotal = exposureTotal
	p.Revealed = true
	p.EndTime = e.now()
	p.Status = StatusFinalized
	p.Alerts = &res
	e.persistPeriod(p)

	e.currentID = p.ID + 1

	e.log.Info("period finalized",
		"period", p.ID,
		"participants", len(p.Participants),
		"symptom_total", symptomTotal,
		"exposure_total", exposureTotal,
		"symptom_alert", res.SymptomAlert,
		"exposure_alert", res.ExposureAlert,
	)

	return &FinalizeResult{
		PeriodID:      p.ID,
		SymptomTotal:  symptomTotal,
		ExposureTotal: exposureTotal,
		Alerts:        res,
	}, nil
}

// EmergencyEnd closes the current period without decryption or alerting.
// No aggregate is ever revealed for an emergency-ended period. Valid only
// while the callback has not landed; once finalized no transition remains.
func (e *Engine) EmergencyEnd() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	if p == nil || p.Status != StatusActive {
		return fmt.Errorf("%w: no active period to end", ErrConflict)
	}

	p.EndTime = e.now()
	p.Status = StatusEmergencyEnded
	e.persistPeriod(p)
	e.currentID = p.ID + 1

	e.log.Warn("period emergency-ended", "period", p.ID, "participants", len(p.Participants))
	return nil
}

// SetThresholds replaces the alert thresholds. Affects only future
// finalizations.
func (e *Engine) SetThresholds(t Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
	e.log.Info("thresholds updated", "symptom", t.Symptom, "exposure", t.Exposure)
}

// ThresholdsSnapshot returns the thresholds currently in force.
func (e *Engine) ThresholdsSnapshot() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// CurrentSummary returns the public view of the current ordinal. The active
// flag is clock-derived: a stored-Active period whose window elapsed
// reports closed for submission even though its status has not transitioned.
func (e *Engine) CurrentSummary() *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	if p == nil {
		return &Summary{ID: e.currentID, Status: StatusClosed}
	}
	return e.summaryLocked(p)
}

// summaryLocked builds a Summary. Caller holds e.mu.
func (e *Engine) summaryLocked(p *Period) *Summary {
	s := &Summary{
		ID:               p.ID,
		Status:           p.Status,
		Ended:            p.Status.Terminal(),
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		ParticipantCount: len(p.Participants),
	}
	if p.Status == StatusActive {
		elapsed := e.now().Sub(p.StartTime)
		if elapsed < e.cfg.Window {
			s.Active = true
			s.TimeRemaining = e.cfg.Window - elapsed
		}
	}
	if p.Revealed {
		symptom, exposure := p.SymptomTotal, p.ExposureTotal
		s.SymptomTotal = &symptom
		s.ExposureTotal = &exposure
		s.Alerts = p.Alerts
	}
	return s
}

// HistoricalSummary returns the view of a completed period. Periods that
// are not yet Finalized or EmergencyEnded are not queryable by id.
func (e *Engine) HistoricalSummary(id uint64) (*Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[id]
	if p == nil || !p.Status.Terminal() {
		return nil, fmt.Errorf("%w: period %d has no completed record", ErrNotReady, id)
	}
	return e.summaryLocked(p), nil
}

// IsActive reports whether the current period accepts submissions right
// now (stored status and clock agree).
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	return p != nil && p.Status == StatusActive && e.now().Sub(p.StartTime) < e.cfg.Window
}

// IsFinalizeEligible reports whether RequestFinalize would be accepted for
// the current period.
func (e *Engine) IsFinalizeEligible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.periods[e.currentID]
	return p != nil && p.Status == StatusActive && e.now().Sub(p.StartTime) >= e.cfg.Window
}

// SubmissionStatus returns a reporter's own view of their submission in the
// current period.
func (e *Engine) SubmissionStatus(reporter string) *SubmissionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := &SubmissionStatus{PeriodID: e.currentID}
	if obs := e.observations[e.currentID][reporter]; obs != nil && obs.Submitted {
		status.Submitted = true
		status.SubmittedAt = obs.SubmittedAt
	}
	return status
}

// persistPeriod writes a period through to the store, if configured.
// Persistence failures are logged, not surfaced: the in-memory engine is
// the source of truth and the store is a write-through audit copy.
func (e *Engine) persistPeriod(p *Period) {
	if e.store == nil {
		return
	}
	if err := e.store.SavePeriod(recordForPeriod(p)); err != nil {
		e.log.Error("persist period failed", "period", p.ID, "err", err)
	}
}

func (e *Engine) persistObservation(o *Observation) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveObservation(recordForObservation(o)); err != nil {
		e.log.Error("persist observation failed", "period", o.PeriodID, "reporter", o.Reporter, "err", err)
	}
}
