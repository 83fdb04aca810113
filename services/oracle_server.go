package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
)

// OracleService exposes a confidential.LocalService over HTTP. It is the
// server side of HTTPOracle: ciphertext handles in, ciphertext handles out,
// with decrypt results pushed to the configured callback URL.
type OracleService struct {
	svc         *confidential.LocalService
	callbackURL string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewOracleService wires a local confidential-compute service to an HTTP
// surface. Decrypt callbacks are delivered by POST to callbackURL.
func NewOracleService(svc *confidential.LocalService, callbackURL string, log *slog.Logger) *OracleService {
	if log == nil {
		log = slog.Default()
	}
	o := &OracleService{
		svc:         svc,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
	svc.SetCallback(o.deliverCallback)
	return o
}

// RegisterRoutes registers the oracle's HTTP routes.
func (o *OracleService) RegisterRoutes(r chi.Router) {
	r.Get("/oracle/key", o.handleKey)
	r.Post("/oracle/encrypt", o.handleEncrypt)
	r.Post("/oracle/add", o.handleAdd)
	r.Post("/oracle/resize", o.handleResize)
	r.Post("/oracle/grant", o.handleGrant)
	r.Post("/oracle/decrypt", o.handleDecrypt)
}

func (o *OracleService) handleKey(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(&OracleKeyResponse{PublicKey: o.svc.VerifyingKey().String()})
}

func (o *OracleService) handleEncrypt(w http.ResponseWriter, req *http.Request) {
	var in EncryptRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := o.svc.Encrypt(in.Plain, in.Width)
	if err != nil {
		o.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&v)
}

func (o *OracleService) handleAdd(w http.ResponseWriter, req *http.Request) {
	var in BinaryOpRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := o.svc.Add(in.A, in.B)
	if err != nil {
		o.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&v)
}

func (o *OracleService) handleResize(w http.ResponseWriter, req *http.Request) {
	var in ResizeRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := o.svc.Resize(in.Value, in.Width)
	if err != nil {
		o.writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(&v)
}

func (o *OracleService) handleGrant(w http.ResponseWriter, req *http.Request) {
	var in GrantRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := o.svc.Grant(in.Value, in.Principal); err != nil {
		o.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (o *OracleService) handleDecrypt(w http.ResponseWriter, req *http.Request) {
	var in DecryptRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := o.svc.RequestDecrypt(in.CorrelationID, in.Principal, in.Values); err != nil {
		o.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// deliverCallback pushes a decrypt result to the tracker. Delivery is best
// effort; the tracker re-requests if a callback never lands.
func (o *OracleService) deliverCallback(correlationID string, plaintexts []uint64, proof []byte) {
	payload, err := json.Marshal(&DecryptCallbackRequest{
		CorrelationID: correlationID,
		Plaintexts:    plaintexts,
		Proof:         proof,
	})
	if err != nil {
		o.log.Error("marshal decrypt callback", "err", err)
		return
	}

	resp, err := o.httpClient.Post(o.callbackURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		o.log.Error("deliver decrypt callback", "correlation_id", correlationID, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.log.Warn("decrypt callback rejected by tracker", "correlation_id", correlationID, "status", resp.StatusCode)
	}
}

func (o *OracleService) writeError(w http.ResponseWriter, err error) {
	kind := "internal"
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, confidential.ErrRange):
		kind, status = "range", http.StatusBadRequest
	case errors.Is(err, confidential.ErrDenied):
		kind, status = "authorization", http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&ErrorResponse{Error: err.Error(), Kind: kind})
}
