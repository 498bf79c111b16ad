// Package gateway holds the thin clients for the two upstream services: the
// abuse-reporting API and the security-bulletin API. Both are treated as
// opaque HTTP services; the clients shape requests, bound them with a fixed
// timeout, and sanitize failures.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/secdesk/abuse-portal/internal/model"
)

// maxBodyBytes is the maximum upstream response body size we'll read.
const maxBodyBytes = 1 << 20 // 1 MiB

// defaultUpstreamTimeout bounds every upstream call; on expiry the call is a
// dispatch failure.
const defaultUpstreamTimeout = 30 * time.Second

// ReportingClient submits abuse reports to the upstream reporting endpoint.
type ReportingClient struct {
	endpoint string
	client   *http.Client
}

// NewReportingClient creates a client for the given report submission
// endpoint URL.
func NewReportingClient(endpoint string) *ReportingClient {
	return &ReportingClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: defaultUpstreamTimeout,
		},
	}
}

// Submit forwards one report as-is with the bearer token in the
// Authorization header and returns the upstream's JSON body. Any non-2xx
// status is a *StatusError carrying only the code.
func (c *ReportingClient) Submit(ctx context.Context, rpt model.AbuseReport, bearer string) (json.RawMessage, error) {
	payload, err := json.Marshal(rpt)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting report: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return json.RawMessage(body), nil
}
