// Package mlclient is the HTTP adapter for the external ML scoring
// service. Every call is bounded by the configured timeout and every
// failure mode (unreachable, non-200, malformed or incomplete body)
// surfaces as ErrUnavailable so callers can fall back to heuristics
// with a single errors.Is check.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// postJSON sends a POST with a JSON body and decodes the JSON response
// into respPtr.
func postJSON(ctx context.Context, client *http.Client, url string, reqBody, respPtr any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: scorer returned %d", ErrUnavailable, resp.StatusCode)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(respPtr); decodeErr != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, decodeErr)
	}

	return nil
}

// getHealth calls GET /health and returns the reported latency.
func getHealth(ctx context.Context, client *http.Client, url string) (latency time.Duration, err error) {
	start := time.Now()

	httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return 0, fmt.Errorf("create request: %w", reqErr)
	}

	resp, doErr := client.Do(httpReq)
	latency = time.Since(start)
	if doErr != nil {
		return latency, fmt.Errorf("%w: %w", ErrUnavailable, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return latency, fmt.Errorf("%w: unhealthy status %d", ErrUnavailable, resp.StatusCode)
	}

	return latency, nil
}
