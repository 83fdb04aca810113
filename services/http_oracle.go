package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
)

// HTTPOracle implements confidential.Service against a remote
// confidential-compute service over JSON HTTP. The tracker never sees key
// material; every ciphertext stays an opaque handle on the wire. Decrypt
// results do not come back on the request; the oracle POSTs them to the
// tracker's callback endpoint.
type HTTPOracle struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPOracle creates a client for the oracle at baseURL.
func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchVerifyingKey retrieves the oracle's proof verification key.
func (o *HTTPOracle) FetchVerifyingKey() (string, error) {
	resp, err := o.httpClient.Get(o.baseURL + "/oracle/key")
	if err != nil {
		return "", fmt.Errorf("fetch oracle key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var keyResp OracleKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keyResp); err != nil {
		return "", fmt.Errorf("decode oracle key: %w", err)
	}
	return keyResp.PublicKey, nil
}

// Encrypt obtains a fresh ciphertext for a plaintext scalar.
func (o *HTTPOracle) Encrypt(plain uint64, width confidential.Width) (confidential.Value, error) {
	var out confidential.Value
	err := o.post("/oracle/encrypt", &EncryptRequest{Plain: plain, Width: width}, &out)
	return out, err
}

// Add returns the homomorphic sum of two ciphertexts.
func (o *HTTPOracle) Add(a, b confidential.Value) (confidential.Value, error) {
	var out confidential.Value
	err := o.post("/oracle/add", &BinaryOpRequest{A: a, B: b}, &out)
	return out, err
}

// Resize casts a ciphertext to another width.
func (o *HTTPOracle) Resize(v confidential.Value, width confidential.Width) (confidential.Value, error) {
	var out confidential.Value
	err := o.post("/oracle/resize", &ResizeRequest{Value: v, Width: width}, &out)
	return out, err
}

// Grant extends read capability on a ciphertext to a principal.
func (o *HTTPOracle) Grant(v confidential.Value, principal string) error {
	return o.post("/oracle/grant", &GrantRequest{Value: v, Principal: principal}, nil)
}

// RequestDecrypt issues a fire-and-forget decryption. The oracle delivers
// plaintexts and proof to the tracker's callback endpoint later.
func (o *HTTPOracle) RequestDecrypt(correlationID string, principal string, values []confidential.Value) error {
	return o.post("/oracle/decrypt", &DecryptRequest{
		CorrelationID: correlationID,
		Principal:     principal,
		Values:        values,
	}, nil)
}

func (o *HTTPOracle) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.httpClient.Post(o.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if err := decodeServiceError(msg); err != nil {
			return err
		}
		return fmt.Errorf("oracle %s returned status %d: %s", path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeServiceError recovers a sentinel error from an ErrorResponse body so
// errors.Is works across the HTTP boundary.
func decodeServiceError(body []byte) error {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Kind == "" {
		return nil
	}
	switch e.Kind {
	case "range":
		return fmt.Errorf("%w: %s", confidential.ErrRange, e.Error)
	case "authorization":
		return fmt.Errorf("%w: %s", confidential.ErrDenied, e.Error)
	}
	return nil
}
