package services

import (
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

// ServiceConfig contains configuration for the tracker HTTP service.
type ServiceConfig struct {
	// AdminToken authenticates the coordinator on /admin/* routes
	// (user:pass). Empty leaves the admin surface unprotected.
	AdminToken string
}

// ObservationRequest is one reporter's encrypted-submission request. It is
// transported as a protocol.Signed envelope; the signer's public key is the
// reporter's principal, so the body carries only the scalars.
type ObservationRequest struct {
	Symptom  uint64 `json:"symptom"`
	Exposure uint64 `json:"exposure"`
}

// SubmitResponse confirms an accepted observation.
type SubmitResponse struct {
	Accepted bool   `json:"accepted"`
	PeriodID uint64 `json:"period_id"`
}

// DecryptCallbackRequest is the oracle's callback delivering revealed
// aggregates with the signed proof.
type DecryptCallbackRequest struct {
	CorrelationID string   `json:"correlation_id"`
	Plaintexts    []uint64 `json:"plaintexts"`
	Proof         []byte   `json:"proof"`
}

// FinalizeResponse reports the correlation id of an issued decrypt request.
type FinalizeResponse struct {
	CorrelationID string `json:"correlation_id"`
}

// ReporterListResponse lists authorized reporter principals.
type ReporterListResponse struct {
	Reporters []string `json:"reporters"`
}

// PeriodStatusResponse answers the lightweight is-active and
// is-finalize-eligible checks without building a full summary.
type PeriodStatusResponse struct {
	Active           bool `json:"active"`
	FinalizeEligible bool `json:"finalize_eligible"`
}

// ErrorResponse is the JSON error body for every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// EncryptRequest asks the confidential-compute service for a fresh
// ciphertext of a plaintext scalar.
type EncryptRequest struct {
	Plain uint64             `json:"plain"`
	Width confidential.Width `json:"width"`
}

// BinaryOpRequest carries the operands of a homomorphic addition.
type BinaryOpRequest struct {
	A confidential.Value `json:"a"`
	B confidential.Value `json:"b"`
}

// ResizeRequest asks for a width cast of a ciphertext.
type ResizeRequest struct {
	Value confidential.Value `json:"value"`
	Width confidential.Width `json:"width"`
}

// GrantRequest extends read capability on a ciphertext to a principal.
type GrantRequest struct {
	Value     confidential.Value `json:"value"`
	Principal string             `json:"principal"`
}

// DecryptRequest asks the oracle to decrypt a batch of values on behalf of
// a principal. The response arrives asynchronously at the caller's callback
// endpoint.
type DecryptRequest struct {
	CorrelationID string               `json:"correlation_id"`
	Principal     string               `json:"principal"`
	Values        []confidential.Value `json:"values"`
}

// OracleKeyResponse publishes the oracle's proof verification key as hex.
type OracleKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// ThresholdsResponse echoes the alert thresholds in force.
type ThresholdsResponse = protocol.Thresholds
