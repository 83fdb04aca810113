// Package services wires the period engine, the confidential-compute
// oracle, and reporters together over HTTP.
//
// # Components
//
//   - TrackerService: the coordinator-facing API. Admin routes behind basic
//     auth for period lifecycle and roster control, public routes for
//     summaries, a signed submission route for reporters, and the oracle's
//     decrypt-callback endpoint.
//   - OracleService: the server side of the confidential-compute service.
//     Handles ciphertexts by opaque handle and pushes decrypt results with
//     signed proofs to the tracker's callback URL.
//   - HTTPOracle: the tracker's client for a remote OracleService,
//     implementing confidential.Service over JSON HTTP.
//   - ReporterClient: signs observations with the reporter's Ed25519 key
//     and submits them; the signing key is the reporter's whole identity.
//
// All request and response bodies are JSON. Rejections carry a stable
// machine-readable kind alongside the human-readable error.
package services
