// Package ocr implements the OCR extraction stage. Text recognition runs in
// an HTTP sidecar; this package owns the transport, the circuit breaker and
// the free-text to structured-field parsing.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// ErrSidecarUnavailable wraps transport failures after retries are exhausted.
var ErrSidecarUnavailable = errors.New("ocr sidecar unavailable")

// Config holds the configuration for the OCR sidecar client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
	Languages  []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8500",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		Languages:  []string{"en"},
	}
}

// RecognizeRequest is the sidecar request body.
type RecognizeRequest struct {
	Image     string   `json:"image"`
	Languages []string `json:"languages"`
}

// RecognizeResponse is the sidecar response body.
type RecognizeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Client is the HTTP client for the OCR sidecar. Failed calls retry with
// exponential backoff; a run of failures opens the circuit breaker so a dead
// sidecar does not stall every verification for the full retry budget.
type Client struct {
	httpClient *http.Client
	config     Config
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new sidecar client.
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ocr-sidecar",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Recognize calls POST /ocr and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, imageBytes []byte) (*RecognizeResponse, error) {
	req := RecognizeRequest{
		Image:     base64.StdEncoding.EncodeToString(imageBytes),
		Languages: c.config.Languages,
	}

	operation := func() (*RecognizeResponse, error) {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return out.(*RecognizeResponse), nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.config.MaxRetries), ctx)

	resp, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSidecarUnavailable, err)
	}
	return resp, nil
}

// doRequest executes a single HTTP request.
func (c *Client) doRequest(ctx context.Context, body RecognizeRequest) (*RecognizeResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := c.config.BaseURL + "/ocr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		// Client errors will not improve on retry.
		return nil, backoff.Permanent(fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result RecognizeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return &result, nil
}
