package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/verid-io/verid/internal/domain"
)

// GatewayConfig configures the client for the Inference Gateway.
type GatewayConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// DefaultGatewayConfig returns sensible defaults for a local gateway.
func DefaultGatewayConfig(baseURL string) GatewayConfig {
	return GatewayConfig{
		BaseURL:    baseURL,
		Timeout:    60 * time.Second,
		RetryCount: 2,
	}
}

// GatewayClient calls the Inference Gateway's canonical API.
type GatewayClient struct {
	httpClient *http.Client
	config     GatewayConfig
	logger     *slog.Logger
}

// GatewayError is a structured error response from the gateway.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

func NewGatewayClient(cfg GatewayConfig, logger *slog.Logger) *GatewayClient {
	return &GatewayClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}
}

// imagePart is one file field of the multipart verify request.
type imagePart struct {
	field string
	data  []byte
}

// VerifyKYC re-encodes the decoded document images as multipart form data
// and calls POST /api/v1/kyc/verify. idDocBack may be nil.
func (c *GatewayClient) VerifyKYC(ctx context.Context, idDoc, idDocBack, selfie []byte) (*domain.VerificationVerdict, error) {
	parts := []imagePart{
		{field: "id_document", data: idDoc},
		{field: "selfie_image", data: selfie},
	}
	if idDocBack != nil {
		parts = append(parts, imagePart{field: "id_document_back", data: idDocBack})
	}

	body, contentType, err := encodeMultipart(parts)
	if err != nil {
		return nil, fmt.Errorf("encode multipart request: %w", err)
	}

	respBody, err := c.doRequestWithRetry(ctx, "/api/v1/kyc/verify", body, contentType)
	if err != nil {
		return nil, err
	}

	var verdict domain.VerificationVerdict
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, fmt.Errorf("decode gateway verdict: %w", err)
	}
	return &verdict, nil
}

// Health checks the gateway's readiness endpoint.
func (c *GatewayClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway reported status %d", resp.StatusCode)
	}
	return nil
}

// doRequestWithRetry retries transient failures with exponential backoff.
// Client errors (4xx) and context cancellation are not retried.
func (c *GatewayClient) doRequestWithRetry(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			c.logger.Warn("retrying gateway request",
				"path", path,
				"attempt", attempt,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		respBody, err := c.doRequest(ctx, path, body, contentType)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
			return nil, err
		}
	}

	return nil, fmt.Errorf("gateway request failed after %d attempts: %w", c.config.RetryCount+1, lastErr)
}

func (c *GatewayClient) doRequest(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGatewayError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func decodeGatewayError(statusCode int, body []byte) *GatewayError {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Code == "" {
		return &GatewayError{
			StatusCode: statusCode,
			Code:       "UNKNOWN",
			Message:    fmt.Sprintf("unexpected gateway response (status %d)", statusCode),
		}
	}
	return &GatewayError{
		StatusCode: statusCode,
		Code:       payload.Error.Code,
		Message:    payload.Error.Message,
	}
}

// calculateBackoff returns the exponential backoff delay for the given
// attempt: 1s, 2s, 4s, capped at 30 seconds.
func calculateBackoff(attempt int) time.Duration {
	backoff := time.Duration(1<<uint(attempt-1)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func encodeMultipart(parts []imagePart) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.field+".jpg"))
		h.Set("Content-Type", http.DetectContentType(p.data))
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create form part %s: %w", p.field, err)
		}
		if _, err := part.Write(p.data); err != nil {
			return nil, "", fmt.Errorf("write form part %s: %w", p.field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}
