package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 20))))
	return buf.Bytes()
}

func newTestClient(baseURL string, retries int) *GatewayClient {
	return NewGatewayClient(GatewayConfig{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		RetryCount: retries,
	}, testLogger())
}

func TestGatewayClient_VerifyKYC(t *testing.T) {
	var gotFields []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/kyc/verify", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))
		for field := range r.MultipartForm.File {
			gotFields = append(gotFields, field)
		}

		json.NewEncoder(w).Encode(domain.VerificationVerdict{
			VerificationStatus: domain.StatusApproved,
			ConfidenceScore:    0.9,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	verdict, err := client.VerifyKYC(context.Background(), testPNG(t), nil, testPNG(t))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, verdict.VerificationStatus)
	assert.ElementsMatch(t, []string{"id_document", "selfie_image"}, gotFields)
}

func TestGatewayClient_BackSideIncluded(t *testing.T) {
	var fieldCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		fieldCount = len(r.MultipartForm.File)
		json.NewEncoder(w).Encode(domain.VerificationVerdict{VerificationStatus: domain.StatusApproved})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.VerifyKYC(context.Background(), testPNG(t), testPNG(t), testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, 3, fieldCount)
}

func TestGatewayClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "NO_FACE_IN_ID", "message": "No face detected in ID document"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.VerifyKYC(context.Background(), testPNG(t), nil, testPNG(t))
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "NO_FACE_IN_ID", gwErr.Code)
	assert.Equal(t, 400, gwErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGatewayClient_ServerErrorRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(domain.VerificationVerdict{VerificationStatus: domain.StatusPending})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	verdict, err := client.VerifyKYC(context.Background(), testPNG(t), nil, testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, verdict.VerificationStatus)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGatewayClient_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(server.URL, 5)
	start := time.Now()
	_, err := client.VerifyKYC(ctx, testPNG(t), nil, testPNG(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGatewayClient_MalformedErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.VerifyKYC(context.Background(), testPNG(t), nil, testPNG(t))

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "UNKNOWN", gwErr.Code)
	assert.Equal(t, 404, gwErr.StatusCode)
}

func TestGatewayClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, newTestClient(server.URL, 0).Health(context.Background()))
}

func TestGatewayClient_HealthUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	assert.Error(t, newTestClient(server.URL, 0).Health(context.Background()))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(1))
	assert.Equal(t, 2*time.Second, calculateBackoff(2))
	assert.Equal(t, 4*time.Second, calculateBackoff(3))
	assert.Equal(t, 30*time.Second, calculateBackoff(10))
}
