package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/metrics"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

// TrackerService exposes the period engine over HTTP. Three route groups:
// coordinator-only /admin/* behind basic auth, reporter and public routes
// under /api/*, and the oracle's callback endpoint.
type TrackerService struct {
	config  *ServiceConfig
	engine  *protocol.Engine
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewTrackerService creates the HTTP facade over an engine.
func NewTrackerService(config *ServiceConfig, engine *protocol.Engine, m *metrics.Metrics, log *slog.Logger) *TrackerService {
	if log == nil {
		log = slog.Default()
	}
	return &TrackerService{config: config, engine: engine, metrics: m, log: log}
}

// RegisterRoutes registers all tracker routes.
func (s *TrackerService) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(admin chi.Router) {
		if s.config.AdminToken != "" {
			user, pass := parseAdminToken(s.config.AdminToken)
			admin.Use(middleware.BasicAuth("tracker-admin", map[string]string{user: pass}))
		}
		admin.Post("/periods/open", s.handleOpenPeriod)
		admin.Post("/periods/finalize", s.handleRequestFinalize)
		admin.Post("/periods/emergency-end", s.handleEmergencyEnd)
		admin.Get("/reporters", s.handleListReporters)
		admin.Post("/reporters/{principal}", s.handleAuthorizeReporter)
		admin.Delete("/reporters/{principal}", s.handleRevokeReporter)
		admin.Get("/thresholds", s.handleGetThresholds)
		admin.Put("/thresholds", s.handleSetThresholds)
	})

	r.Post("/api/observations", s.handleSubmit)
	r.Get("/api/observations/{principal}/status", s.handleSubmissionStatus)
	r.Get("/api/periods/current", s.handleCurrentSummary)
	r.Get("/api/periods/status", s.handlePeriodStatus)
	r.Get("/api/periods/{id}", s.handleHistoricalSummary)

	r.Post("/api/decrypt-callback", s.handleDecryptCallback)
}

func (s *TrackerService) handleOpenPeriod(w http.ResponseWriter, req *http.Request) {
	summary, err := s.engine.OpenPeriod()
	if err != nil {
		s.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(summary)
}

func (s *TrackerService) handleRequestFinalize(w http.ResponseWriter, req *http.Request) {
	correlationID, err := s.engine.RequestFinalize()
	if err != nil {
		s.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&FinalizeResponse{CorrelationID: correlationID})
}

func (s *TrackerService) handleEmergencyEnd(w http.ResponseWriter, req *http.Request) {
	if err := s.engine.EmergencyEnd(); err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.PeriodsEmergency.Inc()
	}
	w.WriteHeader(http.StatusOK)
}

func (s *TrackerService) handleListReporters(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(&ReporterListResponse{Reporters: s.engine.Roster().Principals()})
}

func (s *TrackerService) handleAuthorizeReporter(w http.ResponseWriter, req *http.Request) {
	principal := chi.URLParam(req, "principal")
	if principal == "" {
		http.Error(w, "missing principal", http.StatusBadRequest)
		return
	}
	s.engine.Roster().Authorize(principal)
	s.log.Info("reporter authorized", "principal", principal)
	w.WriteHeader(http.StatusOK)
}

func (s *TrackerService) handleRevokeReporter(w http.ResponseWriter, req *http.Request) {
	principal := chi.URLParam(req, "principal")
	s.engine.Roster().Revoke(principal)
	s.log.Info("reporter revoked", "principal", principal)
	w.WriteHeader(http.StatusOK)
}

func (s *TrackerService) handleGetThresholds(w http.ResponseWriter, req *http.Request) {
	t := s.engine.ThresholdsSnapshot()
	json.NewEncoder(w).Encode(&t)
}

func (s *TrackerService) handleSetThresholds(w http.ResponseWriter, req *http.Request) {
	var t protocol.Thresholds
	if err := json.NewDecoder(req.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.engine.SetThresholds(t)
	json.NewEncoder(w).Encode(&t)
}

// handleSubmit accepts one signed observation. The signer's public key is
// the reporter principal; there is no separate identity field to spoof.
func (s *TrackerService) handleSubmit(w http.ResponseWriter, req *http.Request) {
	var signedReq protocol.Signed[ObservationRequest]
	if err := json.NewDecoder(req.Body).Decode(&signedReq); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	obs, signer, err := signedReq.Recover()
	if err != nil {
		http.Error(w, "invalid signature", http.StatusForbidden)
		if s.metrics != nil {
			s.metrics.RecordRejection("signature")
		}
		return
	}

	if err := s.engine.Submit(signer.String(), obs.Symptom, obs.Exposure); err != nil {
		s.writeError(w, err)
		if s.metrics != nil {
			s.metrics.RecordRejection(protocol.ErrorKind(err))
		}
		return
	}

	if s.metrics != nil {
		s.metrics.SubmissionsAccepted.Inc()
	}
	json.NewEncoder(w).Encode(&SubmitResponse{Accepted: true, PeriodID: s.engine.CurrentSummary().ID})
}

func (s *TrackerService) handleSubmissionStatus(w http.ResponseWriter, req *http.Request) {
	principal := chi.URLParam(req, "principal")
	json.NewEncoder(w).Encode(s.engine.SubmissionStatus(principal))
}

func (s *TrackerService) handleCurrentSummary(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(s.engine.CurrentSummary())
}

func (s *TrackerService) handlePeriodStatus(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(&PeriodStatusResponse{
		Active:           s.engine.IsActive(),
		FinalizeEligible: s.engine.IsFinalizeEligible(),
	})
}

func (s *TrackerService) handleHistoricalSummary(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid period id", http.StatusBadRequest)
		return
	}

	summary, err := s.engine.HistoricalSummary(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(summary)
}

func (s *TrackerService) handleDecryptCallback(w http.ResponseWriter, req *http.Request) {
	var cb DecryptCallbackRequest
	if err := json.NewDecoder(req.Body).Decode(&cb); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(cb.Plaintexts) != 2 {
		http.Error(w, "expected two plaintexts", http.StatusBadRequest)
		return
	}

	res, err := s.engine.HandleDecryptCallback(cb.CorrelationID, cb.Plaintexts[0], cb.Plaintexts[1], cb.Proof)
	if err != nil {
		if s.metrics != nil {
			s.metrics.CallbacksRejected.Inc()
		}
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordFinalized(res.Alerts.SymptomAlert, res.Alerts.ExposureAlert)
	}
	json.NewEncoder(w).Encode(res)
}

// writeError maps the protocol error taxonomy onto HTTP statuses with a
// machine-readable kind in the body.
func (s *TrackerService) writeError(w http.ResponseWriter, err error) {
	kind := protocol.ErrorKind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "range":
		status = http.StatusBadRequest
	case "duplicate", "conflict":
		status = http.StatusConflict
	case "authorization", "proof":
		status = http.StatusForbidden
	case "not_ready":
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&ErrorResponse{Error: err.Error(), Kind: kind})
}

func parseAdminToken(token string) (user, pass string) {
	idx := strings.Index(token, ":")
	if idx < 0 {
		return token, ""
	}
	return token[:idx], token[idx+1:]
}
