// Package platforms holds the HTTP clients that pull raw records from the
// connected platforms and refresh their credentials. Each client speaks one
// platform's API and returns opaque records for the normalizer.
package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/internal/domain/platform"
	"github.com/finsight/backend/internal/domain/shared"
)

// maxResponseSize caps how much of a platform response is read (10MB).
const maxResponseSize = 10 * 1024 * 1024

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxRetryDelay     = 8 * time.Second
)

// retryClient wraps an http.Client with bounded exponential-backoff retries.
// Transient failures (network errors, 429, 5xx) are retried; everything else
// fails immediately. Requests are rebuilt per attempt so bodies are fresh.
type retryClient struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetryClient(timeout time.Duration, maxRetries int, logger *zap.Logger) *retryClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &retryClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  defaultBaseDelay,
		logger:     logger,
	}
}

// do executes the request with retries and returns the response body.
func (c *retryClient) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay(attempt - 1)
			c.logger.Debug("retrying platform request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req = req.WithContext(ctx)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", shared.ErrConnectivity, err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: reading response: %v", shared.ErrConnectivity, readErr)
			continue
		}

		switch {
		case resp.StatusCode < 400:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: HTTP %d: %s", shared.ErrAuthentication, resp.StatusCode, truncate(body, 256))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: HTTP %d", shared.ErrConnectivity, resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("%w: HTTP %d: %s", shared.ErrInvalidInput, resp.StatusCode, truncate(body, 256))
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// retryDelay grows baseDelay * 2^(n-1), capped at maxRetryDelay.
func (c *retryClient) retryDelay(retry int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// decodeRecords pulls the array under key out of a JSON object body and
// returns its elements as raw records.
func decodeRecords(body []byte, key string) ([]platform.RawRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", shared.ErrConnectivity, err)
	}
	raw, ok := envelope[key]
	if !ok {
		return nil, nil
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", shared.ErrConnectivity, key, err)
	}
	out := make([]platform.RawRecord, len(records))
	for i, rec := range records {
		out[i] = platform.RawRecord(rec)
	}
	return out, nil
}
