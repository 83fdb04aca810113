package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

// ReporterClient submits signed observations to a tracker. The reporter's
// identity is its signing key; the tracker learns nothing else about it.
type ReporterClient struct {
	trackerURL string
	signingKey crypto.PrivateKey
	httpClient *http.Client
}

// NewReporterClient creates a reporter bound to a tracker and a signing key.
func NewReporterClient(trackerURL string, signingKey crypto.PrivateKey) *ReporterClient {
	return &ReporterClient{
		trackerURL: trackerURL,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Principal returns the reporter's public identity string.
func (c *ReporterClient) Principal() (string, error) {
	pub, err := c.signingKey.PublicKey()
	if err != nil {
		return "", err
	}
	return pub.String(), nil
}

// Submit signs and submits one observation for the current period.
func (c *ReporterClient) Submit(symptom, exposure uint64) (*SubmitResponse, error) {
	signed, err := protocol.NewSigned(c.signingKey, &ObservationRequest{
		Symptom:  symptom,
		Exposure: exposure,
	})
	if err != nil {
		return nil, fmt.Errorf("sign observation: %w", err)
	}

	payload, err := protocol.SerializeMessage(signed)
	if err != nil {
		return nil, fmt.Errorf("serialize observation: %w", err)
	}

	resp, err := c.httpClient.Post(c.trackerURL+"/api/observations", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("submit observation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tracker returned status %d: %s", resp.StatusCode, msg)
	}

	return protocol.DecodeMessage[SubmitResponse](resp.Body)
}

// SubmissionStatus fetches the reporter's own submission state for the
// current period.
func (c *ReporterClient) SubmissionStatus() (*protocol.SubmissionStatus, error) {
	principal, err := c.Principal()
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Get(fmt.Sprintf("%s/api/observations/%s/status", c.trackerURL, principal))
	if err != nil {
		return nil, fmt.Errorf("fetch submission status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}
	return protocol.DecodeMessage[protocol.SubmissionStatus](resp.Body)
}

// CurrentSummary fetches the public view of the current period.
func (c *ReporterClient) CurrentSummary() (*protocol.Summary, error) {
	resp, err := c.httpClient.Get(c.trackerURL + "/api/periods/current")
	if err != nil {
		return nil, fmt.Errorf("fetch current summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}
	return protocol.DecodeMessage[protocol.Summary](resp.Body)
}
