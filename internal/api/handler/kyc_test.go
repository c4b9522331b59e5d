package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/api/middleware"
	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 20))))
	return buf.Bytes()
}

// verificationStub is a func-backed VerificationService.
type verificationStub struct {
	verify  func(ctx context.Context, idDoc, idDocBack, selfie *imaging.Image) (*domain.VerificationVerdict, error)
	extract func(ctx context.Context, doc *imaging.Image) (*domain.OCRData, error)
}

func (s *verificationStub) Verify(ctx context.Context, idDoc, idDocBack, selfie *imaging.Image) (*domain.VerificationVerdict, error) {
	return s.verify(ctx, idDoc, idDocBack, selfie)
}

func (s *verificationStub) ExtractDocument(ctx context.Context, doc *imaging.Image) (*domain.OCRData, error) {
	return s.extract(ctx, doc)
}

func newKYCApp(service VerificationService, maxUpload int64) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
	h := NewKYCHandler(service, maxUpload, testLogger())
	app.Post("/api/v1/kyc/verify", h.Verify)
	app.Post("/api/v1/kyc/ocr", h.ExtractOCR)
	return app
}

// multipartBody builds a multipart body from field name to file content.
func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+field+`.png"`)
		h.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Error.Code
}

func TestKYCVerify_Success(t *testing.T) {
	var gotBack *imaging.Image
	service := &verificationStub{
		verify: func(_ context.Context, idDoc, idDocBack, selfie *imaging.Image) (*domain.VerificationVerdict, error) {
			gotBack = idDocBack
			require.NotNil(t, idDoc)
			require.NotNil(t, selfie)
			return &domain.VerificationVerdict{
				VerificationStatus: domain.StatusApproved,
				ConfidenceScore:    0.878,
				FaceMatchScore:     0.85,
			}, nil
		},
	}
	app := newKYCApp(service, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document":  pngBytes(t),
		"selfie_image": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Nil(t, gotBack)

	var verdict domain.VerificationVerdict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verdict))
	assert.Equal(t, domain.StatusApproved, verdict.VerificationStatus)
}

func TestKYCVerify_BackSidePassedThrough(t *testing.T) {
	var gotBack *imaging.Image
	service := &verificationStub{
		verify: func(_ context.Context, _, idDocBack, _ *imaging.Image) (*domain.VerificationVerdict, error) {
			gotBack = idDocBack
			return &domain.VerificationVerdict{VerificationStatus: domain.StatusApproved}, nil
		},
	}
	app := newKYCApp(service, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document":      pngBytes(t),
		"id_document_back": pngBytes(t),
		"selfie_image":     pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotNil(t, gotBack)
}

func TestKYCVerify_MissingSelfie(t *testing.T) {
	app := newKYCApp(&verificationStub{}, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "BAD_INPUT", errorCode(t, resp.Body))
}

func TestKYCVerify_OversizeUpload(t *testing.T) {
	app := newKYCApp(&verificationStub{}, 64)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document":  pngBytes(t),
		"selfie_image": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 413, resp.StatusCode)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, resp.Body))
}

func TestKYCVerify_UndecodableImage(t *testing.T) {
	app := newKYCApp(&verificationStub{}, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document":  []byte("definitely not a png"),
		"selfie_image": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "BAD_INPUT", errorCode(t, resp.Body))
}

func TestKYCVerify_NoFaceErrorMapped(t *testing.T) {
	service := &verificationStub{
		verify: func(_ context.Context, _, _, _ *imaging.Image) (*domain.VerificationVerdict, error) {
			return nil, domain.ErrNoFaceInID
		},
	}
	app := newKYCApp(service, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"id_document":  pngBytes(t),
		"selfie_image": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "NO_FACE_IN_ID", errorCode(t, resp.Body))
}

func TestKYCOCR_Success(t *testing.T) {
	name := "JANE DOE"
	service := &verificationStub{
		extract: func(_ context.Context, doc *imaging.Image) (*domain.OCRData, error) {
			require.NotNil(t, doc)
			return &domain.OCRData{
				DocumentType: domain.DocIDCard,
				Confidence:   0.9,
				Fields:       domain.OCRFields{FullName: &name},
			}, nil
		},
	}
	app := newKYCApp(service, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"document": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/ocr", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var wrapper OCRResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrapper))
	require.NotNil(t, wrapper.OCRData)
	assert.Equal(t, domain.DocIDCard, wrapper.OCRData.DocumentType)
	assert.NotEmpty(t, wrapper.Timestamp)
	assert.GreaterOrEqual(t, wrapper.ProcessingTimeMs, int64(0))
}

func TestKYCOCR_NotReadyMapped(t *testing.T) {
	service := &verificationStub{
		extract: func(_ context.Context, _ *imaging.Image) (*domain.OCRData, error) {
			return nil, domain.ErrNotReady
		},
	}
	app := newKYCApp(service, 10<<20)

	body, contentType := multipartBody(t, map[string][]byte{
		"document": pngBytes(t),
	})
	req := httptest.NewRequest("POST", "/api/v1/kyc/ocr", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, "NOT_READY", errorCode(t, resp.Body))
}
