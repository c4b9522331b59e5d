package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// VerificationService interface for the service
type VerificationService interface {
	Verify(ctx context.Context, idDoc, idDocBack, selfie *imaging.Image) (*domain.VerificationVerdict, error)
	ExtractDocument(ctx context.Context, doc *imaging.Image) (*domain.OCRData, error)
}

// KYCHandler handles document verification requests
type KYCHandler struct {
	service        VerificationService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewKYCHandler creates a new KYCHandler instance
func NewKYCHandler(service VerificationService, maxUploadBytes int64, logger *slog.Logger) *KYCHandler {
	return &KYCHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// OCRResponse wraps the standalone OCR endpoint result
type OCRResponse struct {
	OCRData          *domain.OCRData `json:"ocr_data"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	Timestamp        string          `json:"timestamp"`
}

// Verify POST /api/v1/kyc/verify - verify an identity document against a selfie
func (h *KYCHandler) Verify(c *fiber.Ctx) error {
	// 1. Extract required images
	idDoc, err := h.formImage(c, "id_document", true)
	if err != nil {
		return err
	}
	selfie, err := h.formImage(c, "selfie_image", true)
	if err != nil {
		return err
	}

	// 2. Optional document back side
	back, err := h.formImage(c, "id_document_back", false)
	if err != nil {
		return err
	}

	// 3. Run the verification pipeline
	verdict, err := h.service.Verify(c.UserContext(), idDoc, back, selfie)
	if err != nil {
		return err
	}

	// 4. Return verdict
	return c.JSON(verdict)
}

// ExtractOCR POST /api/v1/kyc/ocr - extract document data without verification
func (h *KYCHandler) ExtractOCR(c *fiber.Ctx) error {
	start := time.Now()

	// 1. Extract document image
	doc, err := h.formImage(c, "document", true)
	if err != nil {
		return err
	}

	// 2. Run OCR
	data, err := h.service.ExtractDocument(c.UserContext(), doc)
	if err != nil {
		return err
	}

	// 3. Return wrapped result
	return c.JSON(OCRResponse{
		OCRData:          data,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
}

// formImage extracts and decodes one multipart image field. A missing
// optional field yields a nil image.
func (h *KYCHandler) formImage(c *fiber.Ctx, field string, required bool) (*imaging.Image, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if !required {
			return nil, nil
		}
		return nil, domain.ErrBadInput.WithMessage(field + " is required").WithError(err)
	}

	if file.Size > h.maxUploadBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	if ct := file.Header.Get("Content-Type"); ct != "" && !validImageTypes[ct] {
		return nil, domain.ErrBadInput.WithMessage("unsupported content type for " + field)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrBadInput.WithError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrBadInput.WithError(err)
	}

	return imaging.Decode(data, h.maxUploadBytes)
}
